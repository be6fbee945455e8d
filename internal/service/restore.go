package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/atinyakov/vaultkeeper/internal/artifact"
	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/atinyakov/vaultkeeper/internal/models"
	"go.uber.org/zap"
)

// RestoreService fetches, verifies and decrypts stored artifacts. It does no
// redaction; display policy belongs to the caller.
type RestoreService struct {
	store      ArtifactStore
	passphrase string
	log        *zap.Logger
}

// NewRestoreService constructs a RestoreService over store.
func NewRestoreService(store ArtifactStore, passphrase string, log *zap.Logger) *RestoreService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RestoreService{store: store, passphrase: passphrase, log: log}
}

// Restore returns the snapshot stored under name. It fails with ErrNotFound,
// ErrDownloadFailed, ErrDecode or ErrTamperDetected.
func (s *RestoreService) Restore(ctx context.Context, name string) (*models.Snapshot, error) {
	packed, err := s.fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	plain, err := artifact.Open(s.passphrase, packed)
	if err != nil {
		s.log.Error("restore refused", zap.String("artifact", name), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	snap, err := models.DecodeSnapshot(plain)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	s.log.Info("artifact restored", zap.String("artifact", name), zap.Int("leaves", len(snap.Secrets)))
	return snap, nil
}

// Verify checks that name exists and its tag matches, without decrypting.
func (s *RestoreService) Verify(ctx context.Context, name string) error {
	packed, err := s.fetch(ctx, name)
	if err != nil {
		return err
	}
	if err := artifact.Verify(s.passphrase, packed); err != nil {
		s.log.Warn("artifact failed verification", zap.String("artifact", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// List returns the stored artifacts starting with prefix, sorted by name.
func (s *RestoreService) List(ctx context.Context, prefix string) ([]models.ArtifactInfo, error) {
	infos, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list %q: %w", berrors.ErrDownloadFailed, prefix, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *RestoreService) fetch(ctx context.Context, name string) ([]byte, error) {
	ok, err := s.store.Head(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: head %s: %w", berrors.ErrDownloadFailed, name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, berrors.ErrNotFound)
	}
	packed, err := s.store.Get(ctx, name)
	if errors.Is(err, berrors.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", berrors.ErrDownloadFailed, name, err)
	}
	return packed, nil
}
