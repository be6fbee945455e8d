package cli

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/atinyakov/vaultkeeper/internal/certgen"
	"github.com/atinyakov/vaultkeeper/internal/db"
	"github.com/atinyakov/vaultkeeper/internal/server/handler/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the mTLS control API and prune expired artifacts",
		Long: `Starts an HTTPS server that requires operator client certificates signed by
the CA in --cert-dir. Operators can list and verify artifacts and trigger a
backup of the configured entries. Decrypted content is never served.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := a.log.Log
			s, err := a.open(true)
			if err != nil {
				return err
			}
			defer closeSession(s, cmd.ErrOrStderr())

			tlsConfig, err := serverTLS(a.opts.CertDir)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db.StartArtifactCleaner(ctx, s.store,
				a.opts.CleanInterval.Duration,
				a.opts.Retention.Duration,
				log,
			)

			router := http.NewRouter(
				&http.ArtifactHandler{ArtifactService: a.restoreService(s)},
				&http.BackupHandler{Runner: a.backupService(s), Entries: a.opts.Entries},
				log,
			)
			server := &nethttp.Server{
				Addr:              a.opts.ListenAddr,
				Handler:           router,
				TLSConfig:         tlsConfig,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("starting HTTPS server", zap.String("addr", a.opts.ListenAddr))
				errCh <- server.ListenAndServeTLS("", "")
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("https server: %w", err)
			case <-ctx.Done():
			}

			log.Info("shutting down HTTPS server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if err := <-errCh; err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

// serverTLS loads the server pair and the CA used to verify operators.
// Certificates are verified when given; CertAuth rejects requests without one.
func serverTLS(dir string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(filepath.Join(dir, certgen.ServerCertFile), filepath.Join(dir, certgen.ServerKeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load server TLS cert/key: %w", err)
	}
	caCert, err := os.ReadFile(filepath.Join(dir, certgen.CACertFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to append CA cert to pool")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
