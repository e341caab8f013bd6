// Package fleet drives one backup run across every discovered container.
package fleet

import (
	"context"
	"strings"
	"time"

	"volume-backup/internal/config"
	"volume-backup/internal/gc"
	"volume-backup/internal/logger"
	"volume-backup/internal/model"
	"volume-backup/internal/mounts"
	"volume-backup/internal/store"
	"volume-backup/internal/webhook"

	"github.com/docker/docker/api/types"
	"go.uber.org/zap"
)

// Runtime is the subset of the runtime client the driver needs.
type Runtime interface {
	ListRunningContainers(ctx context.Context) ([]model.Container, error)
	InspectContainer(ctx context.Context, nameOrID string) (*types.ContainerJSON, error)
}

// Sequencer runs one container's stop/backup/start sequence. Satisfied by
// *orchestrator.Orchestrator.
type Sequencer interface {
	BackupContainer(ctx context.Context, c model.Container, m []model.Mount) model.RunResult
}

// Driver iterates the discovered containers in order and collects the final
// run report. One container's failure never stops the run for the others;
// only an unavailable runtime aborts everything.
type Driver struct {
	runtime   Runtime
	seq       Sequencer
	pruner    *gc.Pruner
	notifier  *webhook.Notifier
	outputDir string
}

// NewDriver wires a driver. pruner and notifier may be nil.
func NewDriver(rt Runtime, seq Sequencer, pruner *gc.Pruner, notifier *webhook.Notifier, outputDir string) *Driver {
	return &Driver{
		runtime:   rt,
		seq:       seq,
		pruner:    pruner,
		notifier:  notifier,
		outputDir: outputDir,
	}
}

// Run executes one full backup run. The returned report enumerates every
// container and mount outcome; its Failed method is the authoritative
// pass/fail signal. A non-nil error means the run itself could not proceed
// (runtime unavailable or cancelled), on top of whatever the report records.
func (d *Driver) Run(ctx context.Context) (model.Report, error) {
	report := model.Report{StartedAt: time.Now().UTC()}

	if err := store.CheckDiskSpace(d.outputDir); err != nil {
		logger.Log.Warn("Output directory disk space check failed",
			zap.String("path", d.outputDir),
			zap.Error(err),
		)
	}

	containers, err := d.runtime.ListRunningContainers(ctx)
	if err != nil {
		logger.Log.Error("Failed to list running containers", zap.Error(err))
		report.FinishedAt = time.Now().UTC()
		return report, err
	}

	names := make([]string, 0, len(containers))
	for _, c := range containers {
		names = append(names, c.Name)
	}
	logger.Log.Info("Found running containers", zap.Strings("containers", names))

	for _, c := range containers {
		if err := ctx.Err(); err != nil {
			logger.Log.Warn("Run cancelled, remaining containers skipped",
				zap.String("next", c.Name),
			)
			d.finish(ctx, &report)
			return report, err
		}
		if res, ok := d.backupOne(ctx, c); ok {
			report.Results = append(report.Results, res)
		}
	}

	d.finish(ctx, &report)

	logger.Log.Info("Run completed",
		zap.Int("containers", len(report.Results)),
		zap.Int("archives", report.ArchiveCount()),
		zap.Bool("failed", report.Failed()),
	)
	return report, nil
}

// backupOne inspects a container, resolves its mounts, and drives the
// sequencer. The second return is false when the container is skipped
// without an outcome (a helper container of this very tool).
func (d *Driver) backupOne(ctx context.Context, c model.Container) (model.RunResult, bool) {
	logger.Log.Info("Getting container information", zap.String("container", c.Name))

	insp, err := d.runtime.InspectContainer(ctx, c.ID)
	if err != nil {
		logger.Log.Error("Failed to inspect container, abandoning it",
			zap.String("container", c.Name),
			zap.Error(err),
		)
		return model.RunResult{Container: c, Error: err.Error()}, true
	}

	if isHelper(insp) {
		logger.Log.Info("Skipping backup helper container", zap.String("container", c.Name))
		return model.RunResult{}, false
	}

	eligible := mounts.Resolve(c.Name, insp.Mounts)
	if len(eligible) == 0 {
		logger.Log.Info("Container has no eligible mounts", zap.String("container", c.Name))
		return model.RunResult{Container: c}, true
	}

	res := d.seq.BackupContainer(ctx, c, eligible)
	if res.Failed() {
		logger.Log.Error("Backup of container finished with errors", zap.String("container", c.Name))
	} else {
		logger.Log.Info("Backup of container done", zap.String("container", c.Name))
	}
	return res, true
}

func (d *Driver) finish(ctx context.Context, report *model.Report) {
	report.FinishedAt = time.Now().UTC()
	// Prune and notify run detached: a cancelled run still reports what it
	// did, and housekeeping must not be skipped just because a signal
	// arrived late in the run.
	tail := context.WithoutCancel(ctx)

	if d.pruner != nil {
		if err := d.pruner.Run(tail); err != nil {
			logger.Log.Error("Retention pruning failed", zap.Error(err))
		}
	}
	if d.notifier != nil {
		if err := d.notifier.Send(tail, *report); err != nil {
			logger.Log.Error("Failed to deliver run report", zap.Error(err))
		}
	}
}

func isHelper(insp *types.ContainerJSON) bool {
	if insp.Config == nil {
		return false
	}
	v, ok := insp.Config.Labels[config.HelperLabelKey]
	return ok && strings.EqualFold(v, config.HelperLabelValue)
}
