package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/session"
	"image-compressor-go/internal/statistics"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

const maxNameAttempts = 10000

// CompressImages writes a JPEG copy of every supported file under
// cfg.SourcePaths into cfg.OutputFolder using cfg.ThreadCount workers.
// Per-file failures are reported in the result. emit receives progress on
// the calling goroutine.
func (e *Engine) CompressImages(ctx context.Context, cfg session.CompressionConfig, emit func(session.CompressProgress)) (session.CompressResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return session.CompressResult{}, err
	}
	if err := os.MkdirAll(cfg.OutputFolder, 0755); err != nil {
		return session.CompressResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	files := e.collectImageFiles(cfg.SourcePaths)
	if len(files) == 0 {
		return session.CompressResult{}, ErrNoImages
	}

	log := e.log.WithFields(logrus.Fields{
		"operation": "compress",
		"files":     len(files),
		"quality":   cfg.Quality,
		"ratio":     cfg.SizeRatio,
		"workers":   cfg.ThreadCount,
	})
	log.Info("Compression started")

	stats := statistics.NewStatistics(len(files))
	names := newNameReserver()

	numWorkers := min(cfg.ThreadCount, len(files))
	jobs := make(chan string, len(files))
	results := make(chan string, len(files))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for path := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				e.processFile(path, cfg, names, stats, log)
				results <- path
			}
		}()
	}
	for _, path := range files {
		jobs <- path
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for path := range results {
		if emit != nil {
			emit(session.NewCompressProgress(stats.Processed(), len(files), filepath.Base(path)))
		}
	}
	stats.Finalize()

	if err := ctx.Err(); err != nil {
		log.WithField("processed", stats.Processed()).Warn("Compression cancelled")
		return stats.Result(), err
	}

	res := stats.Result()
	log.WithFields(logrus.Fields{
		"successful":  res.Successful,
		"failed":      res.Failed,
		"skipped":     stats.Skipped(),
		"saved_bytes": res.SavedBytes,
		"savings_pct": stats.SavingsPercent(),
		"formats":     stats.GetFormatBreakdown(),
		"duration_ms": res.DurationMs,
	}).Info("Compression finished")
	return res, nil
}

// processFile compresses one file and records the outcome in stats.
func (e *Engine) processFile(path string, cfg session.CompressionConfig, names *nameReserver, stats *statistics.Statistics, log *logrus.Entry) {
	flog := log.WithField("file", path)
	stats.IncrementFormat(DetectFormat(path))

	outPath, err := names.reserve(outputPath(path, cfg.OutputFolder, cfg.PreserveStructure, cfg.SourcePaths))
	if err == nil {
		err = os.MkdirAll(filepath.Dir(outPath), 0755)
	}
	if err != nil {
		stats.RecordError(path, fmt.Sprintf("failed to prepare output path: %v", err))
		flog.WithError(err).Error("Failed to prepare output path")
		return
	}

	if e.opts.SkipMarked && isJPEG(path) && e.hasMarker(path) {
		if err := copyFile(path, outPath); err != nil {
			stats.RecordError(path, fmt.Sprintf("failed to copy already compressed file: %v", err))
			return
		}
		stats.RecordSkipped()
		flog.Debug("Already compressed, copied unchanged")
		return
	}

	origSize, compSize, err := e.compressOne(path, outPath, cfg.Quality, cfg.SizeRatio)
	if err != nil {
		stats.RecordError(path, err.Error())
		flog.WithError(err).Error("Failed to compress")
		return
	}
	stats.RecordSuccess(origSize, compSize)
	flog.WithFields(logrus.Fields{
		"output":     outPath,
		"saved":      max(origSize-compSize, 0),
		"compressed": compSize,
	}).Debug("Compressed")
}

// compressOne resizes src by ratio, encodes it as JPEG into dst and returns
// the original and compressed sizes.
func (e *Engine) compressOne(src, dst string, quality, ratio float64) (int64, int64, error) {
	if err := e.IsValidImageFile(src); err != nil {
		return 0, 0, err
	}
	info, err := os.Stat(src)
	if err != nil {
		return 0, 0, fmt.Errorf("stat error: %w", err)
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, fmt.Errorf("open error: %w", err)
	}
	if ratio < 1 {
		b := img.Bounds()
		w := max(int(math.Round(float64(b.Dx())*ratio)), 1)
		h := max(int(math.Round(float64(b.Dy())*ratio)), 1)
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	q := min(max(int(math.Round(quality)), 1), 100)
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return 0, 0, fmt.Errorf("encode error: %w", err)
	}

	tmpPath := dst + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return 0, 0, fmt.Errorf("write tmp file error: %w", err)
	}
	if isJPEG(src) {
		if err := e.meta.CopyAndMark(src, tmpPath); err != nil {
			logger.WithFile(e.log, src).WithError(err).Warn("EXIF not copied")
		}
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return 0, 0, fmt.Errorf("rename error: %w", err)
	}

	out, err := os.Stat(dst)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read compressed file size: %w", err)
	}
	return info.Size(), out.Size(), nil
}

// hasMarker reports whether the EXIF Software tag of a JPEG carries the
// engine's marker.
func (e *Engine) hasMarker(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return false
	}
	tag, err := x.Get(exif.Software)
	if err != nil {
		return false
	}
	val, err := tag.StringVal()
	if err != nil {
		return false
	}
	return strings.Contains(val, e.opts.Marker)
}

func isJPEG(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jpg" || ext == ".jpeg"
}

// outputPath maps an input file to its place in the output folder. With
// preserve set, files found under a source directory keep their path
// relative to it. The extension is always .jpg.
func outputPath(file, outputDir string, preserve bool, sources []string) string {
	rel := filepath.Base(file)
	if preserve {
		if root, ok := sourceRoot(file, sources); ok {
			if r, err := filepath.Rel(root, file); err == nil {
				rel = r
			}
		}
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".jpg"
	return filepath.Join(outputDir, rel)
}

// sourceRoot returns the first source directory containing file.
func sourceRoot(file string, sources []string) (string, bool) {
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil || !info.IsDir() {
			continue
		}
		clean := filepath.Clean(src)
		if strings.HasPrefix(file, clean+string(filepath.Separator)) {
			return clean, true
		}
	}
	return "", false
}

// nameReserver hands out output paths that neither exist on disk nor were
// given to another worker in the same run.
type nameReserver struct {
	mu    sync.Mutex
	taken map[string]struct{}
}

func newNameReserver() *nameReserver {
	return &nameReserver{taken: make(map[string]struct{})}
}

func (n *nameReserver) reserve(path string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.free(path) {
		n.taken[path] = struct{}{}
		return path, nil
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	for i := 1; i <= maxNameAttempts; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if n.free(candidate) {
			n.taken[candidate] = struct{}{}
			return candidate, nil
		}
	}
	candidate := filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, uuid.NewString(), ext))
	if !n.free(candidate) {
		return "", errors.New("no free output file name")
	}
	n.taken[candidate] = struct{}{}
	return candidate, nil
}

func (n *nameReserver) free(path string) bool {
	if _, ok := n.taken[path]; ok {
		return false
	}
	_, err := os.Stat(path)
	return errors.Is(err, os.ErrNotExist)
}

// copyFile copies file src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
