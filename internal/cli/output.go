package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/vaultkeeper/internal/models"
	"github.com/fatih/color"
)

func printResult(w io.Writer, r models.EntryResult) {
	label := color.YellowString(r.Server) + " " + color.CyanString(labelRoot(r.Root))
	if r.Failed() {
		fmt.Fprintln(w, color.RedString("✗")+" "+label+": "+r.Error)
		return
	}
	var notes []string
	notes = append(notes, fmt.Sprintf("%d leaves", r.Leaves))
	if r.Omitted > 0 {
		notes = append(notes, fmt.Sprintf("%d omitted", r.Omitted))
	}
	if r.Abandoned > 0 {
		notes = append(notes, fmt.Sprintf("%d sub-trees abandoned", r.Abandoned))
	}
	mark := color.GreenString("✓")
	if r.Partial() {
		mark = color.YellowString("!")
	}
	fmt.Fprintln(w, mark+" "+label+" → "+r.Artifact+" ("+strings.Join(notes, ", ")+")")
}

func printOK(w io.Writer, msg string) {
	fmt.Fprintln(w, color.GreenString("✓")+" "+msg)
}

func printFail(w io.Writer, err error) {
	fmt.Fprintln(w, color.RedString("✗")+" "+err.Error())
}

func labelRoot(root string) string {
	if root == "" {
		return "(mount root)"
	}
	return root
}
