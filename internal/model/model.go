package model

import "time"

// Container is a running workload discovered at the start of a run.
// Nothing here is persisted; every run rediscovers the fleet from scratch.
type Container struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

// Mount maps a host filesystem path into a container. Only mounts with a
// resolvable absolute host source are eligible for backup.
type Mount struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
}

// BackupTask pairs one container with one of its mounts plus everything the
// executor needs to archive it. Created by the orchestrator, consumed once.
type BackupTask struct {
	Container   Container
	Mount       Mount
	ArchiveName string
	Image       string
	OutputDir   string
}

// MountOutcome records the result of one mount's backup attempt.
type MountOutcome struct {
	Mount           Mount   `json:"mount"`
	ArchivePath     string  `json:"archive_path,omitempty"`
	Success         bool    `json:"success"`
	Error           string  `json:"error,omitempty"`
	BytesWritten    int64   `json:"bytes_written,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RunResult is the aggregate outcome for one container. It is finalized when
// the container's sequence reaches its terminal state and never mutated after.
type RunResult struct {
	Container      Container      `json:"container"`
	Error          string         `json:"error,omitempty"`
	StopRequested  bool           `json:"stop_requested"`
	Stopped        bool           `json:"stopped"`
	StopError      string         `json:"stop_error,omitempty"`
	Mounts         []MountOutcome `json:"mounts"`
	StartAttempted bool           `json:"start_attempted"`
	Started        bool           `json:"started"`
	StartError     string         `json:"start_error,omitempty"`
}

// Failed reports whether anything in this container's sequence went wrong.
func (r RunResult) Failed() bool {
	if r.Error != "" || r.StopError != "" || r.StartError != "" {
		return true
	}
	for _, m := range r.Mounts {
		if !m.Success {
			return true
		}
	}
	return false
}

// Report is the final record of a whole run.
type Report struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Results    []RunResult `json:"results"`
}

// Failed reports whether any container or any mount backup failed. The
// process exit code is derived from this single signal.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.Failed() {
			return true
		}
	}
	return false
}

// ArchiveCount returns the number of archives written during the run.
func (r Report) ArchiveCount() int {
	n := 0
	for _, res := range r.Results {
		for _, m := range res.Mounts {
			if m.Success {
				n++
			}
		}
	}
	return n
}
