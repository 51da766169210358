package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"
)

// MetadataWriter carries EXIF data from a source JPEG onto its compressed
// copy and stamps the compressor marker.
type MetadataWriter interface {
	CopyAndMark(src, dst string) error
	Close() error
}

// copiedTags are the EXIF tags carried over to compressed outputs.
var copiedTags = []string{
	"Make", "Model", "LensModel",
	"DateTimeOriginal", "CreateDate", "OffsetTimeOriginal",
	"ExposureTime", "FNumber", "ISO", "FocalLength",
	"GPSLatitude", "GPSLatitudeRef", "GPSLongitude", "GPSLongitudeRef", "GPSAltitude",
	"Artist", "Copyright", "ImageDescription",
}

// ExiftoolWriter uses a long-running exiftool process. It starts on first
// use; if exiftool is not installed every call fails with the start error.
type ExiftoolWriter struct {
	marker string
	log    *logrus.Logger

	once    sync.Once
	mu      sync.Mutex
	et      *exiftool.Exiftool
	initErr error
}

// NewExiftoolWriter returns a writer stamping "<marker> Compressed".
func NewExiftoolWriter(marker string, log *logrus.Logger) *ExiftoolWriter {
	return &ExiftoolWriter{marker: marker, log: log}
}

func (w *ExiftoolWriter) init() {
	w.et, w.initErr = exiftool.NewExiftool()
	if w.initErr != nil {
		w.log.WithError(w.initErr).Warn("exiftool unavailable, metadata will not be copied")
	}
}

func (w *ExiftoolWriter) CopyAndMark(src, dst string) error {
	w.once.Do(w.init)
	if w.initErr != nil {
		return fmt.Errorf("exiftool unavailable: %w", w.initErr)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.et == nil {
		return errors.New("exiftool closed")
	}

	metas := w.et.ExtractMetadata(src)
	if len(metas) == 0 {
		return fmt.Errorf("no metadata read from %s", src)
	}
	if metas[0].Err != nil {
		return fmt.Errorf("exiftool read failed: %w", metas[0].Err)
	}

	out := exiftool.EmptyFileMetadata()
	out.File = dst
	for _, tag := range copiedTags {
		if v, err := metas[0].GetString(tag); err == nil && v != "" {
			out.SetString(tag, v)
		}
	}
	out.SetString("Software", w.marker+" Compressed")

	batch := []exiftool.FileMetadata{out}
	w.et.WriteMetadata(batch)
	if batch[0].Err != nil {
		return fmt.Errorf("exiftool write failed: %w", batch[0].Err)
	}
	return nil
}

func (w *ExiftoolWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.et == nil {
		return nil
	}
	err := w.et.Close()
	w.et = nil
	return err
}

type noopMetadata struct{}

func (noopMetadata) CopyAndMark(string, string) error { return nil }
func (noopMetadata) Close() error                     { return nil }
