package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atinyakov/vaultkeeper/internal/artifact"
	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/atinyakov/vaultkeeper/internal/models"
	"github.com/atinyakov/vaultkeeper/internal/walker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultArtifactPrefix is the first field of every artifact name.
const DefaultArtifactPrefix = "vault-backup"

// BackupConfig tunes a BackupService.
type BackupConfig struct {
	// ArtifactPrefix starts every artifact name.
	ArtifactPrefix string
	// Concurrency bounds how many entries run at once; values below 1 mean 1.
	Concurrency int
}

// BackupService captures secret sub-trees into encrypted artifacts.
type BackupService struct {
	connect    Connector
	store      ArtifactStore
	passphrase string
	cfg        BackupConfig
	log        *zap.Logger
	now        func() time.Time
}

// NewBackupService constructs a BackupService. passphrase is held in memory
// only and never logged.
func NewBackupService(connect Connector, store ArtifactStore, passphrase string, cfg BackupConfig, log *zap.Logger) *BackupService {
	if cfg.ArtifactPrefix == "" {
		cfg.ArtifactPrefix = DefaultArtifactPrefix
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BackupService{
		connect:    connect,
		store:      store,
		passphrase: passphrase,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// BackupAll backs up every entry and returns one result per entry, in input
// order. A failing entry never stops the others.
func (s *BackupService) BackupAll(ctx context.Context, entries []models.Entry) []models.EntryResult {
	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID))
	log.Info("backup run started", zap.Int("entries", len(entries)), zap.Int("concurrency", s.cfg.Concurrency))

	results := make([]models.EntryResult, len(entries))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, entry := range entries {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = failed(entry, ctx.Err())
			continue
		}
		wg.Add(1)
		go func(i int, entry models.Entry) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.backupEntry(ctx, entry, log)
		}(i, entry)
	}
	wg.Wait()

	var nFailed, nPartial int
	for _, r := range results {
		switch {
		case r.Failed():
			nFailed++
		case r.Partial():
			nPartial++
		}
	}
	log.Info("backup run finished",
		zap.Int("succeeded", len(results)-nFailed),
		zap.Int("partial", nPartial),
		zap.Int("failed", nFailed))
	return results
}

// BackupEntry backs up a single entry.
func (s *BackupService) BackupEntry(ctx context.Context, entry models.Entry) models.EntryResult {
	return s.backupEntry(ctx, entry, s.log)
}

func (s *BackupService) backupEntry(ctx context.Context, entry models.Entry, log *zap.Logger) models.EntryResult {
	log = log.With(zap.String("server", entry.Server), zap.String("root", entry.RootPath))
	res := models.EntryResult{Server: entry.Server, Root: entry.RootPath}

	fail := func(msg string, err error) models.EntryResult {
		log.Error(msg, zap.Error(err))
		res.Err = err
		res.Error = err.Error()
		return res
	}

	client, err := s.connect(entry)
	if err != nil {
		return fail("entry skipped: cannot build secret store client", fmt.Errorf("connect: %w", err))
	}
	if err := client.Authenticate(ctx, entry.Credentials); err != nil {
		if !errors.Is(err, berrors.ErrAuthenticationFailed) {
			err = fmt.Errorf("%w: %w", berrors.ErrAuthenticationFailed, err)
		}
		return fail("entry skipped: authentication failed", err)
	}
	log.Debug("authenticated", zap.Stringer("credentials", entry.Credentials))

	snap := models.NewSnapshot(entry.Server, entry.RootPath, s.now())
	for p, err := range walker.New(client).Enumerate(ctx, entry.RootPath) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail("entry aborted before upload", ctxErr)
			}
			res.Abandoned++
			log.Warn("sub-tree abandoned", zap.Error(err))
			continue
		}
		content, err := client.Read(ctx, p)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail("entry aborted before upload", ctxErr)
			}
			res.Omitted++
			log.Warn("leaf omitted from snapshot", zap.String("path", p),
				zap.Error(fmt.Errorf("%w: %w", berrors.ErrLeafReadFailed, err)))
			continue
		}
		snap.Secrets[p] = content
	}
	res.Leaves = len(snap.Secrets)

	if res.Leaves == 0 && res.Abandoned+res.Omitted > 0 {
		return fail("entry failed: nothing captured", fmt.Errorf("%w: no leaf under %q could be captured", berrors.ErrEnumerationFailed, entry.RootPath))
	}
	if err := ctx.Err(); err != nil {
		return fail("entry aborted before upload", err)
	}

	plain, err := snap.Encode()
	if err != nil {
		return fail("entry failed: encode snapshot", err)
	}
	packed, err := artifact.Seal(s.passphrase, plain)
	if err != nil {
		return fail("entry failed: seal artifact", err)
	}

	name := artifact.Name(s.cfg.ArtifactPrefix, entry.Server, entry.RootPath, snap.CapturedAt)
	if err := s.store.Put(ctx, name, packed); err != nil {
		return fail("entry failed: upload", fmt.Errorf("%w: %s: %w", berrors.ErrUploadFailed, name, err))
	}

	res.Artifact = name
	res.Size = len(packed)
	log.Info("artifact stored",
		zap.String("artifact", name),
		zap.Int("size", res.Size),
		zap.Int("leaves", res.Leaves),
		zap.Int("omitted", res.Omitted),
		zap.Int("abandoned", res.Abandoned))
	return res
}

func failed(entry models.Entry, err error) models.EntryResult {
	return models.EntryResult{Server: entry.Server, Root: entry.RootPath, Err: err, Error: err.Error()}
}
