// Package main is the vaultkeeper command: backup, restore, list and verify
// encrypted Vault secret snapshots, or serve them over an mTLS control API.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atinyakov/vaultkeeper/internal/cli"
	"github.com/fatih/color"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A")))
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, cli.ErrFailures) {
			fmt.Fprintln(os.Stderr, color.RedString("Error: ")+err.Error())
		}
		stop()
		os.Exit(1)
	}
}
