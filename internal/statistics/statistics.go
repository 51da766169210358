// Package statistics accumulates counters for a compression run and turns
// them into the result reported back to the session.
package statistics

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"image-compressor-go/internal/session"
)

// Statistics contains the counters of one compression run.
// Counters are safe for concurrent use by workers.
type Statistics struct {
	TotalFiles     int64
	FilesProcessed int64
	FilesSucceeded int64
	FilesFailed    int64
	FilesSkipped   int64

	BytesIn    int64
	BytesOut   int64
	BytesSaved int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	FormatStats map[string]int64
	Errors      []session.ImageError

	mutex sync.RWMutex
}

// NewStatistics returns a Statistics with the clock started.
func NewStatistics(total int) *Statistics {
	return &Statistics{
		TotalFiles:  int64(total),
		StartTime:   time.Now(),
		FormatStats: make(map[string]int64),
		Errors:      make([]session.ImageError, 0),
	}
}

// RecordSuccess counts a file written to the output folder.
func (s *Statistics) RecordSuccess(originalSize, compressedSize int64) {
	atomic.AddInt64(&s.FilesProcessed, 1)
	atomic.AddInt64(&s.FilesSucceeded, 1)
	atomic.AddInt64(&s.BytesIn, originalSize)
	atomic.AddInt64(&s.BytesOut, compressedSize)
	if saved := originalSize - compressedSize; saved > 0 {
		atomic.AddInt64(&s.BytesSaved, saved)
	}
}

// RecordSkipped counts a file left alone because it was already compressed.
// Skipped files count as successful with nothing saved.
func (s *Statistics) RecordSkipped() {
	atomic.AddInt64(&s.FilesProcessed, 1)
	atomic.AddInt64(&s.FilesSucceeded, 1)
	atomic.AddInt64(&s.FilesSkipped, 1)
}

// RecordError counts a failed file and keeps its error.
func (s *Statistics) RecordError(path, errorMsg string) {
	atomic.AddInt64(&s.FilesProcessed, 1)
	atomic.AddInt64(&s.FilesFailed, 1)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Errors = append(s.Errors, session.ImageError{
		Path:     path,
		Filename: filepath.Base(path),
		Error:    errorMsg,
	})
}

// IncrementFormat counts one input of the given format tag.
func (s *Statistics) IncrementFormat(format string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FormatStats[format]++
}

// Processed returns the number of files finished so far.
func (s *Statistics) Processed() int {
	return int(atomic.LoadInt64(&s.FilesProcessed))
}

// Finalize stops the clock.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// Result converts the counters into a CompressResult.
func (s *Statistics) Result() session.CompressResult {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	errs := make([]session.ImageError, len(s.Errors))
	copy(errs, s.Errors)
	return session.CompressResult{
		Total:      int(atomic.LoadInt64(&s.TotalFiles)),
		Successful: int(atomic.LoadInt64(&s.FilesSucceeded)),
		Failed:     int(atomic.LoadInt64(&s.FilesFailed)),
		SavedBytes: atomic.LoadInt64(&s.BytesSaved),
		Errors:     errs,
		DurationMs: s.Duration.Milliseconds(),
	}
}

// Skipped returns the number of files copied unchanged.
func (s *Statistics) Skipped() int {
	return int(atomic.LoadInt64(&s.FilesSkipped))
}

// SavingsPercent is the share of input bytes saved by the files that were
// compressed. Skipped and failed files are not counted.
func (s *Statistics) SavingsPercent() float64 {
	return CalculateSavings(atomic.LoadInt64(&s.BytesIn), atomic.LoadInt64(&s.BytesOut))
}

// GetFormatBreakdown returns the input formats as "JPEG=3 PNG=1", sorted by tag.
func (s *Statistics) GetFormatBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	formats := make([]string, 0, len(s.FormatStats))
	for format := range s.FormatStats {
		formats = append(formats, format)
	}
	sort.Strings(formats)

	parts := make([]string, len(formats))
	for i, format := range formats {
		parts[i] = fmt.Sprintf("%s=%d", format, s.FormatStats[format])
	}
	return strings.Join(parts, " ")
}
