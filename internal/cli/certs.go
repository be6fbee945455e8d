package cli

import (
	"github.com/atinyakov/vaultkeeper/internal/certgen"
	"github.com/spf13/cobra"
)

func newCertsCmd(a *app) *cobra.Command {
	var (
		hosts     []string
		operators []string
		noServer  bool
	)
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Create the CA, server and operator certificates for serve",
		Long: `Writes ca.crt/ca.key, server.crt/server.key and one <operator>.crt/.key pair
per --operator into --cert-dir. An existing CA is reused, so running again
with --no-server adds operators. Existing files are never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := certgen.Bundle{CAName: "vaultkeeper CA", Operators: operators}
			if !noServer {
				b.ServerHosts = hosts
			}
			written, err := certgen.WriteBundle(a.opts.CertDir, b)
			out := cmd.OutOrStdout()
			for _, p := range written {
				printOK(out, p)
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "server certificate host names and IPs")
	cmd.Flags().StringSliceVar(&operators, "operator", []string{"operator"}, "operator client certificate names")
	cmd.Flags().BoolVar(&noServer, "no-server", false, "skip the server certificate")
	return cmd
}
