package archiver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"volume-backup/internal/model"
)

// MetadataSuffix is appended to the archive name for its sidecar file.
const MetadataSuffix = ".metadata.json"

// Metadata is the JSON sidecar written next to each archive, so an archive
// is self-describing without access to the run's logs.
type Metadata struct {
	Timestamp       time.Time `json:"timestamp"`
	ContainerID     string    `json:"container_id"`
	ContainerName   string    `json:"container_name"`
	MountSource     string    `json:"mount_source"`
	MountDest       string    `json:"mount_destination"`
	ArchiveSize     int64     `json:"archive_size_bytes"`
	Checksum        string    `json:"checksum"`
	DurationSeconds float64   `json:"duration_seconds"`
}

func writeMetadata(archivePath string, task model.BackupTask, elapsed time.Duration) error {
	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive %s: %w", archivePath, err)
	}

	checksum, err := fileChecksum(archivePath)
	if err != nil {
		return err
	}

	meta := Metadata{
		Timestamp:       time.Now().UTC(),
		ContainerID:     task.Container.ID,
		ContainerName:   task.Container.Name,
		MountSource:     task.Mount.Source,
		MountDest:       task.Mount.Destination,
		ArchiveSize:     info.Size(),
		Checksum:        checksum,
		DurationSeconds: elapsed.Seconds(),
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(archivePath+MetadataSuffix, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// ReadMetadata loads the sidecar for an archive.
func ReadMetadata(archivePath string) (*Metadata, error) {
	data, err := os.ReadFile(archivePath + MetadataSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata JSON: %w", err)
	}
	return &meta, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for checksum: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
