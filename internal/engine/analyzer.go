package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"image-compressor-go/internal/backend"
	"image-compressor-go/internal/estimate"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/session"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

const (
	defaultQuality   = 85.0
	defaultSizeRatio = 0.8
)

var formatByExt = map[string]string{
	".jpg":  "JPEG",
	".jpeg": "JPEG",
	".png":  "PNG",
	".bmp":  "BMP",
	".gif":  "GIF",
	".webp": "WEBP",
	".tiff": "TIFF",
	".tif":  "TIFF",
	".ico":  "ICO",
}

// DetectFormat returns the format tag for path based on its extension.
func DetectFormat(path string) string {
	if f, ok := formatByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return "UNKNOWN"
}

// HasValidExtension reports whether path has a supported extension.
func (e *Engine) HasValidExtension(path string) bool {
	_, ok := e.extSet[strings.ToLower(filepath.Ext(path))]
	return ok
}

// AnalyzeImages inspects every supported file under args.Paths. Files that
// cannot be decoded are left out. emit receives progress on the calling
// goroutine.
func (e *Engine) AnalyzeImages(ctx context.Context, args backend.AnalyzeArgs, emit func(session.AnalysisProgress)) ([]session.ImageRecord, error) {
	quality, ratio := defaultQuality, defaultSizeRatio
	if args.Quality != nil {
		quality = *args.Quality
	}
	if args.SizeRatio != nil {
		ratio = *args.SizeRatio
	}
	if err := validateFactors(quality, ratio); err != nil {
		return nil, err
	}
	if len(args.Paths) == 0 {
		return nil, ErrNoPaths
	}

	files := e.collectImageFiles(args.Paths)
	log := e.log.WithFields(logrus.Fields{"operation": "analyze", "files": len(files)})
	log.Debug("Analysing images")

	type job struct {
		index int
		path  string
	}
	type result struct {
		index int
		rec   session.ImageRecord
		err   error
	}

	jobs := make(chan job, len(files))
	results := make(chan result, len(files))

	numWorkers := min(e.opts.AnalysisWorkers, max(len(files), 1))
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				rec, err := e.analyzeImage(j.path, quality, ratio)
				results <- result{index: j.index, rec: rec, err: err}
			}
		}()
	}
	for i, path := range files {
		jobs <- job{index: i, path: path}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	recs := make([]*session.ImageRecord, len(files))
	done := 0
	for r := range results {
		done++
		if r.err != nil {
			log.WithField("file", files[r.index]).WithError(r.err).Debug("Skipping file")
		} else {
			rec := r.rec
			recs[r.index] = &rec
		}
		if emit != nil {
			emit(session.NewAnalysisProgress(done, len(files)))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]session.ImageRecord, 0, len(files))
	for _, rec := range recs {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoImages
	}
	return out, nil
}

// analyzeImage reads one image's metadata and builds its thumbnail.
func (e *Engine) analyzeImage(path string, quality, ratio float64) (session.ImageRecord, error) {
	if err := e.IsValidImageFile(path); err != nil {
		return session.ImageRecord{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return session.ImageRecord{}, fmt.Errorf("failed to read file metadata: %w", err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return session.ImageRecord{}, fmt.Errorf("failed to open image: %w", err)
	}
	bounds := img.Bounds()

	rec := session.ImageRecord{
		Path:          path,
		Filename:      filepath.Base(path),
		OriginalSize:  info.Size(),
		EstimatedSize: estimate.Size(info.Size(), quality, ratio),
		Format:        DetectFormat(path),
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
	}

	// A missing thumbnail does not fail the analysis.
	if thumb, err := e.thumbnail(img); err == nil {
		rec.Thumbnail = thumb
	} else {
		logger.WithFile(e.log, path).WithError(err).Debug("Thumbnail generation failed")
	}
	return rec, nil
}

// thumbnail scales img into the thumbnail box and returns it as a PNG data URI.
func (e *Engine) thumbnail(img image.Image) (string, error) {
	size := e.opts.ThumbnailSize
	thumb := imaging.Fit(img, size, size, imaging.Linear)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// collectImageFiles expands paths into the supported files they name.
// Directories are walked recursively; unreadable entries are skipped.
func (e *Engine) collectImageFiles(paths []string) []string {
	var files []string
	seen := make(map[string]struct{})
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			e.log.WithField("path", root).WithError(err).Debug("Path not accessible")
			continue
		}
		if !info.IsDir() {
			if e.HasValidExtension(root) {
				add(root)
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && e.HasValidExtension(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			e.log.WithField("path", root).WithError(err).Warn("Failed to walk directory")
		}
	}
	return files
}
