package engine

import (
	"errors"
	"fmt"
	"image"
	"os"

	"image-compressor-go/internal/backend"
	"image-compressor-go/internal/session"
)

var (
	ErrNoPaths            = errors.New("no source paths provided")
	ErrNoOutputFolder     = errors.New("no output folder specified")
	ErrNoImages           = errors.New("no valid images found in the provided paths")
	ErrInvalidQuality     = errors.New("quality must be between 0 and 100")
	ErrInvalidSizeRatio   = errors.New("size ratio must be between 0 and 1")
	ErrInvalidThreadCount = errors.New("thread count must be at least 1")
)

// ValidateConfig checks a compression request before any file is touched.
func ValidateConfig(cfg session.CompressionConfig) error {
	if len(cfg.SourcePaths) == 0 {
		return ErrNoPaths
	}
	if cfg.OutputFolder == "" {
		return ErrNoOutputFolder
	}
	if err := validateFactors(cfg.Quality, cfg.SizeRatio); err != nil {
		return err
	}
	if cfg.ThreadCount < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidThreadCount, cfg.ThreadCount)
	}
	return nil
}

func validateFactors(quality, ratio float64) error {
	if quality < 0 || quality > 100 {
		return fmt.Errorf("%w, got %g", ErrInvalidQuality, quality)
	}
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("%w, got %g", ErrInvalidSizeRatio, ratio)
	}
	return nil
}

// IsValidImageFile checks that path is a readable file of a supported
// format whose header decodes.
func (e *Engine) IsValidImageFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("path is not a file: %s", path)
	}
	if !e.HasValidExtension(path) {
		return fmt.Errorf("unsupported file extension: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("invalid image format: %w", err)
	}
	return nil
}

// ValidatePaths reports for every input whether it is a usable image or a
// directory holding at least one.
func (e *Engine) ValidatePaths(paths []string) []session.PathValidation {
	out := make([]session.PathValidation, 0, len(paths))
	for _, p := range paths {
		v := session.PathValidation{Path: p}
		info, err := os.Stat(p)
		switch {
		case err != nil:
			v.Error = "Path does not exist"
		case info.IsDir():
			if len(e.collectImageFiles([]string{p})) > 0 {
				v.IsValid = true
			} else {
				v.Error = "No valid images in directory"
			}
		default:
			if err := e.IsValidImageFile(p); err != nil {
				v.Error = err.Error()
			} else {
				v.IsValid = true
			}
		}
		out = append(out, v)
	}
	return out
}

// CheckPathExists describes what, if anything, lives at path.
func CheckPathExists(path string) backend.PathInfo {
	pi := backend.PathInfo{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		return pi
	}
	pi.Exists = true
	pi.IsFile = info.Mode().IsRegular()
	pi.IsDirectory = info.IsDir()
	return pi
}

// EnsureDirectoryExists creates path and its parents when missing.
func EnsureDirectoryExists(path string) error {
	if path == "" {
		return errors.New("empty directory path")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}
