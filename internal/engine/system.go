package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"image-compressor-go/internal/backend"
	"image-compressor-go/internal/estimate"
	"image-compressor-go/internal/session"
)

// DefaultOutputFolder returns <home>/Documents/CompressedImages. The
// folder is not created.
func DefaultOutputFolder() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find Documents directory: %w", err)
	}
	return filepath.Join(home, "Documents", "CompressedImages"), nil
}

// SystemInfo reports the CPU count and the worker count to suggest,
// which leaves one core free.
func SystemInfo() backend.SystemInfo {
	cores := runtime.NumCPU()
	return backend.SystemInfo{
		CPUCores:               cores,
		RecommendedThreadCount: max(cores-1, 1),
	}
}

// DefaultConfig returns the compression request defaults.
func DefaultConfig() session.CompressionConfig {
	return session.CompressionConfig{
		SourcePaths: []string{},
		Quality:     defaultQuality,
		SizeRatio:   defaultSizeRatio,
		ThreadCount: max(runtime.NumCPU(), 1),
	}
}

// EstimateSavings totals the estimated output of every valid image under
// args.Paths without decoding pixel data.
func (e *Engine) EstimateSavings(args backend.EstimateArgs) (backend.SavingsEstimate, error) {
	if err := validateFactors(args.Quality, args.SizeRatio); err != nil {
		return backend.SavingsEstimate{}, err
	}
	if len(args.Paths) == 0 {
		return backend.SavingsEstimate{}, ErrNoPaths
	}

	var sizes []int64
	for _, path := range e.collectImageFiles(args.Paths) {
		if err := e.IsValidImageFile(path); err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		sizes = append(sizes, info.Size())
	}
	if len(sizes) == 0 {
		return backend.SavingsEstimate{}, ErrNoImages
	}

	var original int64
	for _, s := range sizes {
		original += s
	}
	estimated := estimate.Total(sizes, args.Quality, args.SizeRatio)
	saved := max(original-estimated, 0)

	out := backend.SavingsEstimate{
		TotalOriginal:    original,
		TotalEstimated:   estimated,
		EstimatedSavings: saved,
		FileCount:        len(sizes),
	}
	if original > 0 {
		out.SavingsPercentage = float64(saved) / float64(original) * 100
	}
	return out, nil
}

// Close releases the metadata writer.
func (e *Engine) Close() error {
	return e.meta.Close()
}
