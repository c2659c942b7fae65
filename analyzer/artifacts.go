package analyzer

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// Retrained snapshots are written as model_YYYYMMDD_HHMMSS directories.
var retrainDirPattern = regexp.MustCompile(`^model_\d{8}_\d{6}$`)

// LatestArtifactDir returns the most recently modified retrained
// snapshot under retrainRoot, falling back to basePath when the root
// is absent or holds no snapshot. Discovery happens once, at scorer
// construction; it is never re-evaluated per call.
func LatestArtifactDir(basePath, retrainRoot string, logger *zap.Logger) string {
	entries, err := os.ReadDir(retrainRoot)
	if err != nil {
		logger.Warn("retrain root not readable, using base model",
			zap.String("retrain_root", retrainRoot), zap.Error(err))
		return basePath
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if !entry.IsDir() || !retrainDirPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(retrainRoot, entry.Name())
			latestMod = info.ModTime()
		}
	}

	if latest == "" {
		logger.Info("no retrained snapshot found, using base model",
			zap.String("base_path", basePath))
		return basePath
	}

	logger.Info("selected latest retrained snapshot", zap.String("path", latest))
	return latest
}
