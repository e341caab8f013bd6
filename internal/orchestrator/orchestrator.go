// Package orchestrator sequences one container's backup: optional stop, the
// per-mount archive steps, and the optional restart.
package orchestrator

import (
	"context"
	"os"
	"time"

	"volume-backup/internal/archiver"
	"volume-backup/internal/logger"
	"volume-backup/internal/model"

	"go.uber.org/zap"
)

// The per-container sequence is an explicit state machine rather than nested
// conditionals, which keeps the "never restart what we did not stop"
// invariant visible in the transitions: phaseRestarting is only ever entered
// from phaseBackingUp when the stop recorded a success.
type phase int

const (
	phaseDiscovered phase = iota
	phaseStopping
	phaseBackingUp
	phaseRestarting
	phaseDone
)

// Controller is the subset of the runtime client the orchestrator needs.
type Controller interface {
	Stop(ctx context.Context, nameOrID string) error
	Start(ctx context.Context, nameOrID string) error
}

// Executor archives one mount. Satisfied by *archiver.Executor.
type Executor interface {
	Backup(ctx context.Context, task model.BackupTask) (string, error)
}

// Orchestrator drives the stop/backup/start sequence for single containers.
type Orchestrator struct {
	ctrl      Controller
	exec      Executor
	stopStart bool
	image     string
	outputDir string
}

// New returns an orchestrator. outputDir must be absolute; the executor bind
// mounts it into helpers.
func New(ctrl Controller, exec Executor, stopStart bool, image, outputDir string) *Orchestrator {
	return &Orchestrator{
		ctrl:      ctrl,
		exec:      exec,
		stopStart: stopStart,
		image:     image,
		outputDir: outputDir,
	}
}

// sequence is the mutable state of one container's run, finalized into an
// immutable RunResult when phaseDone is reached.
type sequence struct {
	ctx       context.Context
	container model.Container
	mounts    []model.Mount
	result    model.RunResult
}

// BackupContainer runs the full sequence for one container and returns its
// finalized result. Mount failures are recorded independently; one mount's
// failure never aborts its siblings.
func (o *Orchestrator) BackupContainer(ctx context.Context, c model.Container, mounts []model.Mount) model.RunResult {
	seq := &sequence{
		ctx:       ctx,
		container: c,
		mounts:    mounts,
		result:    model.RunResult{Container: c},
	}

	for st := phaseDiscovered; st != phaseDone; {
		st = o.step(st, seq)
	}
	return seq.result
}

func (o *Orchestrator) step(st phase, seq *sequence) phase {
	switch st {
	case phaseDiscovered:
		if o.stopStart {
			return phaseStopping
		}
		return phaseBackingUp

	case phaseStopping:
		return o.stepStop(seq)

	case phaseBackingUp:
		o.stepBackup(seq)
		if seq.result.Stopped {
			return phaseRestarting
		}
		return phaseDone

	case phaseRestarting:
		o.stepRestart(seq)
		return phaseDone
	}
	return phaseDone
}

// stepStop stops the container. If the stop fails, every mount is recorded
// as failed and no backup or start is attempted; a still-running container
// never gets a live backup in stop-start mode.
func (o *Orchestrator) stepStop(seq *sequence) phase {
	logger.Log.Info("Stopping container", zap.String("container", seq.container.Name))
	seq.result.StopRequested = true

	if err := o.ctrl.Stop(seq.ctx, seq.container.ID); err != nil {
		logger.Log.Error("Failed to stop container, skipping its backups",
			zap.String("container", seq.container.Name),
			zap.Error(err),
		)
		seq.result.StopError = err.Error()
		for _, m := range seq.mounts {
			seq.result.Mounts = append(seq.result.Mounts, model.MountOutcome{
				Mount: m,
				Error: "backup skipped: " + err.Error(),
			})
		}
		return phaseDone
	}

	seq.result.Stopped = true
	return phaseBackingUp
}

func (o *Orchestrator) stepBackup(seq *sequence) {
	for i, m := range seq.mounts {
		if err := seq.ctx.Err(); err != nil {
			// Cancelled mid-container: the remaining mounts are recorded
			// as failed and, if we stopped the container, the restart
			// step still runs.
			for _, rest := range seq.mounts[i:] {
				seq.result.Mounts = append(seq.result.Mounts, model.MountOutcome{
					Mount: rest,
					Error: "backup cancelled: " + err.Error(),
				})
			}
			return
		}

		task := archiver.NewTask(seq.container, m, o.image, o.outputDir)
		started := time.Now()
		path, err := o.exec.Backup(seq.ctx, task)

		outcome := model.MountOutcome{
			Mount:           m,
			DurationSeconds: time.Since(started).Seconds(),
		}
		if err != nil {
			logger.Log.Error("Mount backup failed",
				zap.String("container", seq.container.Name),
				zap.String("destination", m.Destination),
				zap.Error(err),
			)
			outcome.Error = err.Error()
		} else {
			outcome.Success = true
			outcome.ArchivePath = path
			if info, statErr := os.Stat(path); statErr == nil {
				outcome.BytesWritten = info.Size()
			}
		}
		seq.result.Mounts = append(seq.result.Mounts, outcome)
	}
}

// stepRestart starts the container again. Only reached when this run stopped
// it. Runs on a detached context so a cancelled run never leaves a container
// stopped without at least attempting the restart; the runtime client's own
// per-call timeout still bounds it.
func (o *Orchestrator) stepRestart(seq *sequence) {
	logger.Log.Info("Restarting container", zap.String("container", seq.container.Name))
	seq.result.StartAttempted = true

	if err := o.ctrl.Start(context.WithoutCancel(seq.ctx), seq.container.ID); err != nil {
		// Already-completed backups stand; the failure is only recorded.
		logger.Log.Error("Failed to restart container",
			zap.String("container", seq.container.Name),
			zap.Error(err),
		)
		seq.result.StartError = err.Error()
		return
	}
	seq.result.Started = true
}
