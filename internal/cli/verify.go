package cli

import (
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify NAME...",
		Short: "Check artifact integrity without decrypting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(true)
			if err != nil {
				return err
			}
			defer closeSession(s, cmd.ErrOrStderr())

			svc := a.restoreService(s)
			out := cmd.OutOrStdout()
			failed := false
			for _, name := range args {
				if err := svc.Verify(cmd.Context(), name); err != nil {
					printFail(out, err)
					failed = true
					continue
				}
				printOK(out, name)
			}
			if failed {
				return ErrFailures
			}
			return nil
		},
	}
}
