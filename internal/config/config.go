package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Defaults for the flag surface.
const (
	DefaultDockerPath  = "/usr/bin/docker"
	DefaultHelperImage = "ubuntu"
	DefaultOutputDir   = "."
	DefaultLogLevel    = "info"
	DefaultCallTimeout = 10 * time.Minute
)

// HelperLabel marks helper containers launched by this tool so a run never
// tries to back up its own helpers.
const (
	HelperLabelKey   = "volume-backup.role"
	HelperLabelValue = "helper"
)

// Config is the explicit process configuration, threaded through every
// constructor instead of living in package globals.
type Config struct {
	// DockerPath is the runtime executable invoked as a subprocess.
	DockerPath string

	// HelperImage is the image used for the ephemeral archive containers.
	HelperImage string

	// OutputDir is the local directory archives are written to.
	OutputDir string

	// StopStart stops each container before backup and restarts it after.
	StopStart bool

	// CallTimeout bounds every runtime and helper-container invocation.
	CallTimeout time.Duration

	// Retention prunes archives older than this from OutputDir after the
	// run. Zero disables pruning.
	Retention time.Duration

	// GCDryRun logs what pruning would delete without deleting it.
	GCDryRun bool

	// WebhookURL, if set, receives the JSON run report after the run.
	WebhookURL    string
	WebhookSecret string

	LogLevel string
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	var problems []string

	if c.DockerPath == "" {
		problems = append(problems, "runtime executable path must not be empty")
	}
	if c.HelperImage == "" {
		problems = append(problems, "helper image must not be empty")
	}
	if c.OutputDir == "" {
		problems = append(problems, "output directory must not be empty")
	}
	if c.CallTimeout <= 0 {
		problems = append(problems, "call timeout must be positive")
	}
	if c.Retention < 0 {
		problems = append(problems, "retention must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// AbsOutputDir resolves OutputDir against the working directory. The helper
// container bind-mounts it, and docker requires an absolute host path there.
func (c *Config) AbsOutputDir() (string, error) {
	abs, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory %s: %w", c.OutputDir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", abs, err)
	}
	return abs, nil
}

// ParseRetention parses a retention string into a duration. Accepted forms
// are anything time.ParseDuration takes ("72h", "30m"), a day count with a
// "d" suffix ("7d"), or a plain number of days ("7"). Empty means disabled.
func ParseRetention(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("retention must not be negative: %s", value)
		}
		return d, nil
	}

	daysStr := strings.TrimSuffix(value, "d")
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		return 0, fmt.Errorf("invalid retention %q: use a duration like 72h, 7d, or a number of days", value)
	}
	if days < 0 {
		return 0, fmt.Errorf("retention must not be negative: %s", value)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}
