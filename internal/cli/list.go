package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var (
		prefix string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored artifacts sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(false)
			if err != nil {
				return err
			}
			defer closeSession(s, cmd.ErrOrStderr())

			p := prefix
			switch {
			case all:
				p = ""
			case p == "":
				p = a.opts.ArtifactPrefix + "."
			}
			infos, err := a.restoreService(s).List(cmd.Context(), p)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tCREATED")
			for _, i := range infos {
				created := "-"
				if !i.CreatedAt.IsZero() {
					created = i.CreatedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", i.Name, i.Size, created)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "name prefix to match (default \"<artifact prefix>.\")")
	cmd.Flags().BoolVar(&all, "all", false, "list every object in the store")
	return cmd
}
