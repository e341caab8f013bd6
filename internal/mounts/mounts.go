// Package mounts derives the backup-eligible mount set from a container's
// inspection snapshot.
package mounts

import (
	"path/filepath"

	"volume-backup/internal/logger"
	"volume-backup/internal/model"

	"github.com/docker/docker/api/types"
	"go.uber.org/zap"
)

// Resolve filters a container's raw mount entries down to the ones worth
// backing up. A mount is eligible only if it maps to an absolute host path;
// anonymous and runtime-internal mounts without a resolvable source are
// dropped. Identical host paths are deduplicated and discovery order is
// preserved, so archive naming is reproducible across runs. No side effects.
func Resolve(containerName string, raw []types.MountPoint) []model.Mount {
	var eligible []model.Mount
	seen := make(map[string]struct{}, len(raw))

	for _, mp := range raw {
		if mp.Source == "" || !filepath.IsAbs(mp.Source) {
			logger.Log.Debug("Skipping mount without resolvable host path",
				zap.String("container", containerName),
				zap.String("destination", mp.Destination),
				zap.String("type", string(mp.Type)),
			)
			continue
		}
		if _, dup := seen[mp.Source]; dup {
			logger.Log.Debug("Skipping duplicate host path",
				zap.String("container", containerName),
				zap.String("source", mp.Source),
				zap.String("destination", mp.Destination),
			)
			continue
		}
		seen[mp.Source] = struct{}{}

		eligible = append(eligible, model.Mount{
			Source:      mp.Source,
			Destination: mp.Destination,
			Type:        string(mp.Type),
			Name:        mp.Name,
		})
	}
	return eligible
}
