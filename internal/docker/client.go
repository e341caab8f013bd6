package docker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"volume-backup/internal/logger"
	"volume-backup/internal/model"

	"github.com/docker/docker/api/types"
	"go.uber.org/zap"
)

// Client invokes the docker executable as a subprocess, one process per
// call. Every call blocks and is bounded by the configured timeout; retry
// policy, if any, belongs to the caller.
type Client struct {
	binary  string
	timeout time.Duration
}

// NewClient returns a client for the runtime executable at binary. timeout
// bounds each individual invocation; zero means no bound.
func NewClient(binary string, timeout time.Duration) *Client {
	return &Client{binary: binary, timeout: timeout}
}

// psEntry mirrors one line of `docker ps --format=json` (JSON-lines).
type psEntry struct {
	ID     string `json:"ID"`
	Names  string `json:"Names"`
	State  string `json:"State"`
	Labels string `json:"Labels"`
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) command(ctx context.Context, args ...string) *exec.Cmd {
	logger.Log.Debug("Executing runtime command",
		zap.String("binary", c.binary),
		zap.Strings("args", args),
	)
	cmd := exec.CommandContext(ctx, c.binary, args...)
	// Bound Wait after a context kill so orphaned children holding the
	// output pipes cannot stall the run indefinitely.
	cmd.WaitDelay = 10 * time.Second
	return cmd
}

// spawnFailed reports whether err means the process never ran, as opposed to
// running and exiting non-zero. A killed-on-timeout process counts as ran.
func spawnFailed(err error) bool {
	var exitErr *exec.ExitError
	return err != nil && !errors.As(err, &exitErr)
}

// ListRunningContainers lists the currently running containers via
// `ps --format=json`.
func (c *Client) ListRunningContainers(ctx context.Context) ([]model.Container, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var stderr bytes.Buffer
	cmd := c.command(callCtx, "ps", "--format=json")
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if spawnFailed(err) {
			return nil, fmt.Errorf("%w: cannot invoke %s: %v", ErrUnavailable, c.binary, err)
		}
		return nil, fmt.Errorf("%w: ps: %v (stderr: %s)", ErrQueryFailed, err, strings.TrimSpace(stderr.String()))
	}

	var containers []model.Container
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry psEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("%w: unparsable ps output line: %v", ErrQueryFailed, err)
		}
		containers = append(containers, model.Container{
			ID:      entry.ID,
			Name:    entry.Names,
			Running: entry.State == "running",
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading ps output: %v", ErrQueryFailed, err)
	}

	logger.Log.Debug("Listed running containers", zap.Int("count", len(containers)))
	return containers, nil
}

// InspectContainer returns the full inspection snapshot for one container
// via `inspect --format=json`. The snapshot carries the raw mount set and
// the container labels.
func (c *Client) InspectContainer(ctx context.Context, nameOrID string) (*types.ContainerJSON, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var stderr bytes.Buffer
	cmd := c.command(callCtx, "inspect", "--format=json", nameOrID)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if spawnFailed(err) {
			return nil, fmt.Errorf("%w: cannot invoke %s: %v", ErrUnavailable, c.binary, err)
		}
		return nil, fmt.Errorf("%w: inspect %s: %v (stderr: %s)", ErrQueryFailed, nameOrID, err, strings.TrimSpace(stderr.String()))
	}

	var inspected []types.ContainerJSON
	if err := json.Unmarshal(out, &inspected); err != nil {
		return nil, fmt.Errorf("%w: unparsable inspect output for %s: %v", ErrQueryFailed, nameOrID, err)
	}
	if len(inspected) == 0 {
		return nil, fmt.Errorf("%w: inspect %s returned no data", ErrQueryFailed, nameOrID)
	}
	return &inspected[0], nil
}

// Stop stops a container. The call blocks until the runtime reports the
// container stopped or the timeout kills the invocation.
func (c *Client) Stop(ctx context.Context, nameOrID string) error {
	return c.control(ctx, "stop", nameOrID)
}

// Start starts a container.
func (c *Client) Start(ctx context.Context, nameOrID string) error {
	return c.control(ctx, "start", nameOrID)
}

func (c *Client) control(ctx context.Context, verb, nameOrID string) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var stderr bytes.Buffer
	cmd := c.command(callCtx, verb, nameOrID)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if spawnFailed(err) {
			return fmt.Errorf("%w: cannot invoke %s: %v", ErrUnavailable, c.binary, err)
		}
		return fmt.Errorf("%w: %s %s: %v (stderr: %s)", ErrControlFailed, verb, nameOrID, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// RunContainer runs `docker run` with the given arguments. A non-zero exit
// comes back as a *ExitError so the caller can interpret the code; a process
// that could not be spawned comes back wrapping ErrUnavailable.
func (c *Client) RunContainer(ctx context.Context, args ...string) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var stderr bytes.Buffer
	cmd := c.command(callCtx, append([]string{"run"}, args...)...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Code:   exitErr.ExitCode(),
			Stderr: strings.TrimSpace(stderr.String()),
		}
	}
	return fmt.Errorf("%w: cannot invoke %s: %v", ErrUnavailable, c.binary, err)
}
