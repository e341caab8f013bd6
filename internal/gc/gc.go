// Package gc prunes archives past their retention from the output directory.
package gc

import (
	"context"
	"fmt"
	"time"

	"volume-backup/internal/logger"
	"volume-backup/internal/store"

	"go.uber.org/zap"
)

// Pruner deletes stored archives (and their metadata sidecars) whose last
// modification is older than the retention period.
type Pruner struct {
	store     *store.LocalStore
	retention time.Duration
	dryRun    bool
}

// NewPruner returns a pruner over st. A non-positive retention disables it.
func NewPruner(st *store.LocalStore, retention time.Duration, dryRun bool) *Pruner {
	return &Pruner{store: st, retention: retention, dryRun: dryRun}
}

// Run scans the store and deletes everything older than the retention
// cutoff. Individual delete failures are collected; the scan keeps going.
func (p *Pruner) Run(ctx context.Context) error {
	if p.retention <= 0 {
		logger.Log.Debug("Retention not configured, skipping prune")
		return nil
	}

	objects, err := p.store.ListObjects(ctx)
	if err != nil {
		return fmt.Errorf("prune failed to list archives: %w", err)
	}
	if len(objects) == 0 {
		return nil
	}

	cutoff := time.Now().Add(-p.retention)
	logger.Log.Info("Pruning archives past retention",
		zap.String("path", p.store.BasePath()),
		zap.Duration("retention", p.retention),
		zap.Time("cutoff", cutoff),
		zap.Bool("dryRun", p.dryRun),
		zap.Int("candidates", len(objects)),
	)

	var (
		deleted   int
		sizeFreed int64
		failed    []string
	)
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			logger.Log.Warn("Prune cancelled",
				zap.Int("deleted", deleted),
				zap.Int("total", len(objects)),
			)
			return err
		}
		if !obj.LastModified.Before(cutoff) {
			continue
		}

		if p.dryRun {
			logger.Log.Info("[DryRun] Would delete archive",
				zap.String("key", obj.Key),
				zap.Int64("size", obj.Size),
				zap.Time("lastModified", obj.LastModified),
			)
			deleted++
			sizeFreed += obj.Size
			continue
		}

		if err := p.store.DeleteObject(ctx, obj.Key); err != nil {
			logger.Log.Error("Failed to prune archive", zap.String("key", obj.Key), zap.Error(err))
			failed = append(failed, obj.Key)
			continue
		}
		logger.Log.Info("Pruned archive",
			zap.String("key", obj.Key),
			zap.Int64("size", obj.Size),
		)
		deleted++
		sizeFreed += obj.Size
	}

	logger.Log.Info("Prune completed",
		zap.Int("deleted", deleted),
		zap.Int64("sizeFreed", sizeFreed),
		zap.Int("failures", len(failed)),
		zap.Bool("dryRun", p.dryRun),
	)

	if len(failed) > 0 {
		return fmt.Errorf("prune completed with %d failures: %v", len(failed), failed)
	}
	return nil
}
