package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCannotCompress is returned by Compress when CanCompress is false.
var ErrCannotCompress = errors.New("compression cannot start: no selection, no output folder or a run is in progress")

// Analyzer turns input paths into image records. onProgress, when not nil,
// is invoked on the caller's goroutine.
type Analyzer interface {
	AnalyzeImages(ctx context.Context, paths []string, onProgress func(AnalysisProgress)) ([]ImageRecord, error)
}

// Compressor runs a compression batch. onProgress, when not nil, is invoked
// on the caller's goroutine.
type Compressor interface {
	CompressImages(ctx context.Context, cfg CompressionConfig, onProgress func(CompressProgress)) (CompressResult, error)
}

// Analyze runs an analysis and appends the records whose paths are not
// already selected. The analyzing flag is cleared however the call ends.
func (s *Session) Analyze(ctx context.Context, a Analyzer, paths []string) ([]ImageRecord, error) {
	log := s.log.WithFields(logrus.Fields{"session": s.id, "operation": "analyze"})

	s.BeginAnalysis()
	defer s.EndAnalysis()

	started := time.Now()
	records, err := a.AnalyzeImages(ctx, paths, s.SetAnalysisProgress)
	if err != nil {
		log.WithError(err).Warn("Analysis failed")
		return nil, fmt.Errorf("analyze images: %w", err)
	}

	seen := make(map[string]struct{}, len(s.images)+len(records))
	for _, img := range s.images {
		seen[img.Path] = struct{}{}
	}
	added := make([]ImageRecord, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.Path]; dup {
			continue
		}
		seen[rec.Path] = struct{}{}
		added = append(added, rec)
	}
	s.AddImages(added...)

	log.WithFields(logrus.Fields{
		"requested": len(paths),
		"analyzed":  len(records),
		"added":     len(added),
		"duration":  time.Since(started),
	}).Info("Analysis completed")
	return added, nil
}

// Compress builds the request from the current state, runs it and stores the
// result. The compressing flag is cleared on success, failure and cancellation.
func (s *Session) Compress(ctx context.Context, c Compressor) (CompressResult, error) {
	if !s.CanCompress() {
		return CompressResult{}, ErrCannotCompress
	}
	log := s.log.WithFields(logrus.Fields{"session": s.id, "operation": "compress"})

	cfg := s.BuildConfig()
	s.BeginCompression()
	defer s.EndCompression()

	log.WithFields(logrus.Fields{
		"images":        len(cfg.SourcePaths),
		"output_folder": cfg.OutputFolder,
		"quality":       cfg.Quality,
		"size_ratio":    cfg.SizeRatio,
		"threads":       cfg.ThreadCount,
	}).Info("Starting compression")

	res, err := c.CompressImages(ctx, cfg, s.SetProgress)
	if err != nil {
		log.WithError(err).Warn("Compression failed")
		return CompressResult{}, fmt.Errorf("compress images: %w", err)
	}

	s.SetResult(res)
	log.WithFields(logrus.Fields{
		"successful":  res.Successful,
		"failed":      res.Failed,
		"saved_bytes": res.SavedBytes,
		"duration_ms": res.DurationMs,
	}).Info("Compression completed")
	return res, nil
}
