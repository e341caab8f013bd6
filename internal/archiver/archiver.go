// Package archiver executes one mount's backup through an ephemeral helper
// container that tars the mounted host path into the output directory.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"volume-backup/internal/config"
	"volume-backup/internal/docker"
	"volume-backup/internal/logger"
	"volume-backup/internal/model"

	"go.uber.org/zap"
)

// Paths inside the helper container. The task's host path is bind-mounted
// read-only at SourceMount and the host output directory at DestMount.
const (
	SourceMount = "/backupsrc"
	DestMount   = "/backupdest"
)

var (
	// ErrLaunchFailed means the helper container could not be started.
	ErrLaunchFailed = errors.New("helper container launch failed")

	// ErrArchiveFailed means the helper ran but the archive step exited
	// non-zero (a timed-out helper counts as this too).
	ErrArchiveFailed = errors.New("archive failed")
)

// Runner launches a container and blocks until it exits. Satisfied by
// *docker.Client.
type Runner interface {
	RunContainer(ctx context.Context, args ...string) error
}

// Executor archives single mounts through helper containers.
type Executor struct {
	runner Runner
}

// NewExecutor returns an Executor that launches helpers through runner.
func NewExecutor(runner Runner) *Executor {
	return &Executor{runner: runner}
}

// NewTask builds the backup task for one (container, mount) pair.
func NewTask(c model.Container, m model.Mount, image, outputDir string) model.BackupTask {
	return model.BackupTask{
		Container:   c,
		Mount:       m,
		ArchiveName: ArchiveFileName(c.Name, m.Destination),
		Image:       image,
		OutputDir:   outputDir,
	}
}

// ArchiveFileName derives the archive file name from the container name and
// the container-side mount path, so operators can map an archive back to its
// origin without inspecting anything. Distinct mounts of the same container
// differ in destination, so names are unique within a run.
func ArchiveFileName(containerName, destination string) string {
	return sanitize(containerName) + sanitize(destination) + ".tar"
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "/", "_")
}

// Backup archives the task's host path into the output directory and returns
// the final archive path. The helper writes to a temporary name which is
// renamed into place only on success, so a failed run never leaves a file
// that could pass for a complete archive. The helper is removed by the
// runtime regardless of outcome (--rm).
func (e *Executor) Backup(ctx context.Context, task model.BackupTask) (string, error) {
	started := time.Now()

	tmpName := "." + task.ArchiveName + ".partial"
	tmpPath := filepath.Join(task.OutputDir, tmpName)
	finalPath := filepath.Join(task.OutputDir, task.ArchiveName)

	logger.Log.Info("Backing up mount",
		zap.String("container", task.Container.Name),
		zap.String("source", task.Mount.Source),
		zap.String("destination", task.Mount.Destination),
		zap.String("archive", finalPath),
	)

	args := []string{
		"--rm",
		"--label", config.HelperLabelKey + "=" + config.HelperLabelValue,
		"-v", task.Mount.Source + ":" + SourceMount + ":ro",
		"-v", task.OutputDir + ":" + DestMount,
		task.Image,
		"tar", "cf", DestMount + "/" + tmpName, "-C", SourceMount, ".",
	}

	if err := e.runner.RunContainer(ctx, args...); err != nil {
		// A leftover partial would otherwise look like garbage in the
		// output directory on the next run.
		_ = os.Remove(tmpPath)
		return "", classify(err, task)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: finalizing archive for %s %s: %v",
			ErrArchiveFailed, task.Container.Name, task.Mount.Destination, err)
	}

	if err := writeMetadata(finalPath, task, time.Since(started)); err != nil {
		logger.Log.Warn("Failed to write archive metadata",
			zap.String("archive", finalPath),
			zap.Error(err),
		)
	}

	logger.Log.Info("Mount backed up",
		zap.String("container", task.Container.Name),
		zap.String("archive", finalPath),
		zap.Duration("duration", time.Since(started)),
	)
	return finalPath, nil
}

// Docker CLI exit codes that mean the container never ran the archive
// command: 125 daemon/run error, 126 command not invocable, 127 command not
// found.
func launchExitCode(code int) bool {
	return code == 125 || code == 126 || code == 127
}

func classify(err error, task model.BackupTask) error {
	var exitErr *docker.ExitError
	if errors.As(err, &exitErr) {
		if launchExitCode(exitErr.Code) {
			return fmt.Errorf("%w: %s %s: %v",
				ErrLaunchFailed, task.Container.Name, task.Mount.Destination, err)
		}
		return fmt.Errorf("%w: %s %s: %v",
			ErrArchiveFailed, task.Container.Name, task.Mount.Destination, err)
	}
	return fmt.Errorf("%w: %s %s: %v",
		ErrLaunchFailed, task.Container.Name, task.Mount.Destination, err)
}
