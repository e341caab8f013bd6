// Package store gives the retention pruner and the fleet preflight a view of
// the archives already sitting in the output directory.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"volume-backup/internal/logger"

	"go.uber.org/zap"
)

// ObjectMeta describes one stored archive or sidecar file.
type ObjectMeta struct {
	Key          string    // path relative to the store root
	LastModified time.Time // last modified timestamp
	Size         int64     // size in bytes
}

// LocalStore lists and deletes files under the output directory. All keys
// are relative to the root; anything resolving outside it is rejected.
type LocalStore struct {
	basePath string
}

// NewLocalStore returns a store rooted at basePath, creating it if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path %s: %w", basePath, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store path %s: %w", abs, err)
	}
	return &LocalStore{basePath: abs}, nil
}

// BasePath returns the absolute store root.
func (s *LocalStore) BasePath() string {
	return s.basePath
}

// ListObjects walks the store and returns every regular file, keyed relative
// to the root.
func (s *LocalStore) ListObjects(ctx context.Context) ([]ObjectMeta, error) {
	var objects []ObjectMeta

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relKey, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}
		objects = append(objects, ObjectMeta{
			Key:          filepath.ToSlash(relKey),
			LastModified: info.ModTime(),
			Size:         info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk store path %s: %w", s.basePath, err)
	}
	return objects, nil
}

// DeleteObject removes one file by its relative key. A missing file counts
// as success. Keys escaping the store root are refused.
func (s *LocalStore) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath := filepath.Join(s.basePath, filepath.FromSlash(key))
	absFilePath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("could not determine absolute path for %s: %w", filePath, err)
	}
	if !strings.HasPrefix(absFilePath, s.basePath+string(os.PathSeparator)) {
		return fmt.Errorf("delete path %s is outside store root %s", absFilePath, s.basePath)
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			logger.Log.Debug("File already gone, treating delete as success", zap.String("key", key))
			return nil
		}
		return fmt.Errorf("failed to delete %s: %w", filePath, err)
	}
	return nil
}

// CheckDiskSpace fails when the filesystem holding path has less than 10%
// free, so a run does not grind through stop/start cycles only to fill the
// disk half way through.
func CheckDiskSpace(path string) error {
	return checkDiskSpaceImpl(path)
}
