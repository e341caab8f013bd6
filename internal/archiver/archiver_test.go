package archiver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"volume-backup/internal/docker"
	"volume-backup/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner stands in for the docker client. When err is nil it behaves
// like a helper that wrote its tar file into the bind-mounted output dir.
type fakeRunner struct {
	outDir string
	calls  [][]string
	err    error
}

func (f *fakeRunner) RunContainer(ctx context.Context, args ...string) error {
	f.calls = append(f.calls, args)
	if f.err != nil {
		return f.err
	}
	for i, a := range args {
		if a == "cf" && i+1 < len(args) {
			name := strings.TrimPrefix(args[i+1], DestMount+"/")
			if err := os.WriteFile(filepath.Join(f.outDir, name), []byte("tar-bytes"), 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func testContainer() model.Container {
	return model.Container{ID: "abc123", Name: "web", Running: true}
}

func testMount() model.Mount {
	return model.Mount{Source: "/srv/www", Destination: "/var/www/html", Type: "bind"}
}

func TestArchiveFileName(t *testing.T) {
	tests := []struct {
		container   string
		destination string
		expected    string
	}{
		{"web", "/var/www/html", "web_var_www_html.tar"},
		{"db", "/var/lib/postgresql/data", "db_var_lib_postgresql_data.tar"},
		{"a/b", "/x", "a_b_x.tar"},
	}
	for _, tt := range tests {
		if got := ArchiveFileName(tt.container, tt.destination); got != tt.expected {
			t.Errorf("ArchiveFileName(%q, %q) = %q, want %q", tt.container, tt.destination, got, tt.expected)
		}
	}
}

func TestArchiveFileNameUniquePerMount(t *testing.T) {
	names := map[string]bool{}
	pairs := [][2]string{
		{"web", "/var/www"},
		{"web", "/etc/nginx"},
		{"db", "/var/lib/postgresql/data"},
		{"db", "/etc/postgresql"},
	}
	for _, p := range pairs {
		name := ArchiveFileName(p[0], p[1])
		if names[name] {
			t.Fatalf("archive name %q collides", name)
		}
		names[name] = true
	}
}

func TestBackupSuccess(t *testing.T) {
	outDir := t.TempDir()
	runner := &fakeRunner{outDir: outDir}
	exec := NewExecutor(runner)

	task := NewTask(testContainer(), testMount(), "ubuntu", outDir)
	path, err := exec.Backup(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "web_var_www_html.tar"), path)

	// Final archive in place, temp name gone.
	_, err = os.Stat(path)
	require.NoError(t, err)
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".partial")
	}

	// Metadata sidecar describes the archive.
	meta, err := ReadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, "web", meta.ContainerName)
	assert.Equal(t, "/var/www/html", meta.MountDest)
	assert.Equal(t, int64(len("tar-bytes")), meta.ArchiveSize)
	assert.True(t, strings.HasPrefix(meta.Checksum, "sha256:"))

	// Helper invocation: removed after use, labeled, source read-only.
	require.Len(t, runner.calls, 1)
	args := runner.calls[0]
	assert.Contains(t, args, "--rm")
	assert.Contains(t, args, "volume-backup.role=helper")
	assert.Contains(t, args, "/srv/www:"+SourceMount+":ro")
	assert.Contains(t, args, outDir+":"+DestMount)
}

func TestBackupArchiveFailure(t *testing.T) {
	outDir := t.TempDir()
	runner := &fakeRunner{outDir: outDir, err: &docker.ExitError{Code: 2, Stderr: "tar: error"}}
	exec := NewExecutor(runner)

	_, err := exec.Backup(context.Background(), NewTask(testContainer(), testMount(), "ubuntu", outDir))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArchiveFailed), "want ErrArchiveFailed, got %v", err)
	assert.Contains(t, err.Error(), "web")
	assert.Contains(t, err.Error(), "/var/www/html")

	// No file that could be mistaken for a complete archive.
	entries, readErr := os.ReadDir(outDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestBackupLaunchFailure(t *testing.T) {
	for _, code := range []int{125, 126, 127} {
		runner := &fakeRunner{err: &docker.ExitError{Code: code}}
		exec := NewExecutor(runner)
		_, err := exec.Backup(context.Background(), NewTask(testContainer(), testMount(), "ubuntu", t.TempDir()))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLaunchFailed), "exit %d: want ErrLaunchFailed, got %v", code, err)
	}
}

func TestBackupRuntimeUnavailable(t *testing.T) {
	runner := &fakeRunner{err: docker.ErrUnavailable}
	exec := NewExecutor(runner)
	_, err := exec.Backup(context.Background(), NewTask(testContainer(), testMount(), "ubuntu", t.TempDir()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLaunchFailed))
}
