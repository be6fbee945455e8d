package db

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ArtifactPruner lists and removes artifacts past retention.
type ArtifactPruner interface {
	ExpiredArtifacts(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteArtifacts(ctx context.Context, names []string) (int64, error)
}

// StartArtifactCleaner deletes artifacts older than retention every interval
// until ctx is done. A non-positive retention disables it.
func StartArtifactCleaner(
	ctx context.Context,
	store ArtifactPruner,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	if retention <= 0 || interval <= 0 {
		log.Info("artifact retention disabled")
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				PruneOnce(ctx, store, time.Now().Add(-retention), log)
			}
		}
	}()
}

// PruneOnce removes every artifact created before cutoff.
func PruneOnce(ctx context.Context, store ArtifactPruner, cutoff time.Time, log *zap.Logger) {
	names, err := store.ExpiredArtifacts(ctx, cutoff)
	if err != nil {
		log.Error("failed to list expired artifacts", zap.Error(err))
		return
	}
	if len(names) == 0 {
		return
	}
	removed, err := store.DeleteArtifacts(ctx, names)
	if err != nil {
		log.Error("failed to prune artifacts", zap.Error(err), zap.Strings("names", names))
		return
	}
	log.Info("pruned expired artifacts", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
}
