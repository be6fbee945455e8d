package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newRestoreCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "restore NAME",
		Short: "Decrypt an artifact and print its snapshot as JSON",
		Long: `Fetches the named artifact, checks its integrity tag and decrypts it.
Nothing is decrypted if the tag does not match. With --out the snapshot is
written to a new file readable only by the owner.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(true)
			if err != nil {
				return err
			}
			defer closeSession(s, cmd.ErrOrStderr())

			snap, err := a.restoreService(s).Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out == "" {
				return writeSnapshot(cmd.OutOrStdout(), snap)
			}
			if err := writeSnapshotFile(out, snap); err != nil {
				return err
			}
			printOK(cmd.ErrOrStderr(), fmt.Sprintf("%d secrets from %s %s written to %s", len(snap.Secrets), snap.Server, labelRoot(snap.Root), out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the snapshot to this new file (mode 0600)")
	return cmd
}

func writeSnapshot(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeSnapshotFile writes v to a new 0600 file at path. On any write or
// close error the file is removed so no partial plaintext is left behind.
func writeSnapshotFile(path string, v any) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err := writeSnapshot(f, v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	return nil
}
