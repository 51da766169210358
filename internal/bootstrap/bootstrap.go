// Package bootstrap seeds a new session from durable storage and the
// backend's default output folder.
package bootstrap

import (
	"context"

	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/persist"
	"image-compressor-go/internal/session"

	"github.com/sirupsen/logrus"
)

// FolderSource supplies the platform default output folder.
type FolderSource interface {
	GetDefaultOutputFolder(ctx context.Context) (string, error)
}

// Report describes what Seed applied.
type Report struct {
	StorageAvailable bool
	Loaded           persist.Loaded
	// DefaultFolder is set when the output folder came from the backend.
	DefaultFolder string
	// FolderErr is the backend failure, if the default folder query failed.
	FolderErr error
}

// Seed applies stored settings to sess. When no output folder was stored
// the backend default is used instead; failing to get it leaves the folder
// unchanged. Nothing happens when storage is unavailable. Seeded values are
// not written back.
func Seed(ctx context.Context, sess *session.Session, store *persist.Adapter, folders FolderSource, log *logrus.Logger) Report {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := logger.WithSession(log, sess.ID())

	var rep Report
	if store == nil || !store.Available() {
		entry.Debug("Settings storage unavailable, keeping defaults")
		return rep
	}
	rep.StorageAvailable = true

	loaded := store.Load(ctx)
	rep.Loaded = loaded

	settings := sess.Settings()
	if loaded.Quality != nil {
		settings.Quality = *loaded.Quality
	}
	if loaded.SizeRatio != nil {
		settings.SizeRatio = *loaded.SizeRatio
	}
	if loaded.ThreadCount != nil {
		settings.ThreadCount = *loaded.ThreadCount
	}

	if loaded.OutputFolder != nil {
		settings.OutputFolder = *loaded.OutputFolder
	} else if folders != nil {
		folder, err := folders.GetDefaultOutputFolder(ctx)
		if err != nil {
			rep.FolderErr = err
			entry.WithError(err).Error("Failed to get default output folder")
		} else {
			settings.OutputFolder = folder
			rep.DefaultFolder = folder
		}
	}

	sess.ApplySettings(settings)
	return rep
}
