package jobs

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// GeoDBReloadJob reopens the GeoIP database when the file on disk changes,
// e.g. after geoipupdate replaced it
type GeoDBReloadJob struct {
	path    string
	reload  func()
	logger  *slog.Logger
	modTime time.Time
}

// NewGeoDBReloadJob watches path and calls reload on every change
func NewGeoDBReloadJob(path string, reload func(), logger *slog.Logger) *GeoDBReloadJob {
	j := &GeoDBReloadJob{path: path, reload: reload, logger: logger}
	if info, err := os.Stat(path); err == nil {
		j.modTime = info.ModTime()
	}
	return j
}

// Name implements Job
func (j *GeoDBReloadJob) Name() string { return "geodb_reload" }

// Run implements Job
func (j *GeoDBReloadJob) Run(ctx context.Context) error {
	if j.path == "" {
		return nil
	}
	info, err := os.Stat(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !info.ModTime().After(j.modTime) {
		return nil
	}

	j.modTime = info.ModTime()
	j.logger.Info("GeoIP database changed on disk - reloading", slog.String("path", j.path))
	j.reload()
	return nil
}
