package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/atinyakov/vaultkeeper/internal/models"
	"github.com/spf13/cobra"
)

func newBackupCmd(a *app) *cobra.Command {
	var (
		servers []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up every configured entry into one artifact each",
		Long: `Walks each configured (server, root path) entry, captures every readable
secret under it and stores the encrypted snapshot. A failing entry is reported
and skipped; the command exits non-zero if any entry failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := selectEntries(a.opts.Entries, servers)
			if len(entries) == 0 {
				return fmt.Errorf("no entries to back up")
			}
			s, err := a.open(true)
			if err != nil {
				return err
			}
			defer closeSession(s, cmd.ErrOrStderr())

			results := a.backupService(s).BackupAll(cmd.Context(), entries)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					printResult(out, r)
				}
			}
			for _, r := range results {
				if r.Failed() {
					return ErrFailures
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&servers, "server", nil, "only back up entries for these servers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func selectEntries(all []models.Entry, servers []string) []models.Entry {
	if len(servers) == 0 {
		return all
	}
	var out []models.Entry
	for _, e := range all {
		if slices.Contains(servers, e.Server) {
			out = append(out, e)
		}
	}
	return out
}
