// Package cli wires configuration, storage and the backup engines into the
// vaultkeeper command tree.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/atinyakov/vaultkeeper/internal/config"
	"github.com/atinyakov/vaultkeeper/internal/db"
	"github.com/atinyakov/vaultkeeper/internal/logger"
	"github.com/atinyakov/vaultkeeper/internal/models"
	"github.com/atinyakov/vaultkeeper/internal/repository"
	"github.com/atinyakov/vaultkeeper/internal/service"
	"github.com/atinyakov/vaultkeeper/internal/vault"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrFailures is returned when at least one entry or artifact failed. The
// individual failures have already been printed.
var ErrFailures = errors.New("one or more operations failed")

// artifactStore is what the commands need from an object store.
type artifactStore interface {
	service.ArtifactStore
	db.ArtifactPruner
}

type app struct {
	opts *config.Options
	log  *logger.Logger

	// connect and openStore are replaced in tests.
	connect   func(o *config.Options, log *zap.Logger) service.Connector
	openStore func(o *config.Options) (artifactStore, func() error, error)
}

func newApp() *app {
	return &app{
		opts:      config.Default(),
		log:       logger.New(),
		connect:   vaultConnector,
		openStore: openStore,
	}
}

// NewRootCmd builds the vaultkeeper command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(newApp(), version)
}

func newRootCmd(a *app, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "vaultkeeper",
		Short: "Encrypted, tamper-evident backups of Vault secret trees",
		Long: `vaultkeeper walks configured secret sub-trees, packs each into one encrypted
artifact and stores it in an object store. Artifacts can be listed,
verified and restored with the same passphrase.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(a.opts, cmd.Flags()); err != nil {
				return err
			}
			if err := a.log.Init(a.opts.LogLevel); err != nil {
				return err
			}
			a.log.Log.Debug("configuration loaded",
				zap.String("config", a.opts.Config),
				zap.Int("entries", len(a.opts.Entries)))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Log.Sync()
		},
	}
	config.RegisterFlags(root.PersistentFlags(), a.opts)

	root.AddCommand(
		newBackupCmd(a),
		newRestoreCmd(a),
		newListCmd(a),
		newVerifyCmd(a),
		newServeCmd(a),
		newCertsCmd(a),
	)
	return root
}

// session is the validated state shared by store-backed commands.
type session struct {
	store      artifactStore
	passphrase string
	close      func() error
}

func (a *app) open(needPassphrase bool) (*session, error) {
	if err := a.opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	var pass string
	if needPassphrase {
		p, err := config.ReadPassphrase(a.opts.PassphraseFile)
		if err != nil {
			return nil, err
		}
		pass = p
	}
	store, closeFn, err := a.openStore(a.opts)
	if err != nil {
		return nil, err
	}
	return &session{store: store, passphrase: pass, close: closeFn}, nil
}

func openStore(o *config.Options) (artifactStore, func() error, error) {
	if o.DatabaseDSN != "" {
		sqlDB, err := db.InitPostgres(o.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot init database: %w", err)
		}
		return repository.NewPostgresArtifactRepository(sqlDB), sqlDB.Close, nil
	}
	repo, err := repository.NewFileArtifactRepository(o.StoreDir)
	if err != nil {
		return nil, nil, err
	}
	return repo, func() error { return nil }, nil
}

func vaultConnector(o *config.Options, log *zap.Logger) service.Connector {
	return func(e models.Entry) (service.SecretStore, error) {
		c, err := vault.NewClient(vault.Config{
			Address:   e.Server,
			Mount:     e.Mount,
			KVVersion: e.KVVersion,
			Timeout:   o.RequestTimeout.Duration,
			RetryMax:  o.RetryMax,
			CACert:    o.CACert,
		}, log.With(zap.String("server", e.Server)))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func (a *app) backupService(s *session) *service.BackupService {
	return service.NewBackupService(
		a.connect(a.opts, a.log.Log),
		s.store,
		s.passphrase,
		service.BackupConfig{ArtifactPrefix: a.opts.ArtifactPrefix, Concurrency: a.opts.Concurrency},
		a.log.Log,
	)
}

func (a *app) restoreService(s *session) *service.RestoreService {
	return service.NewRestoreService(s.store, s.passphrase, a.log.Log)
}

func closeSession(s *session, w io.Writer) {
	if err := s.close(); err != nil {
		fmt.Fprintln(w, "warning: closing store:", err)
	}
}
