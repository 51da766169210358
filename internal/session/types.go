package session

import "fmt"

// ImageRecord is one selected file. Path is the key within a session.
//
// EstimatedSize is the hint computed at analysis time; totals are always
// recomputed from the current settings instead.
type ImageRecord struct {
	Path          string `json:"path"`
	Filename      string `json:"filename"`
	OriginalSize  int64  `json:"original_size"`
	EstimatedSize int64  `json:"estimated_size"`
	Format        string `json:"format"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Thumbnail     string `json:"thumbnail,omitempty"`
}

// Settings is the active compression configuration.
type Settings struct {
	Quality           float64 `json:"quality"`
	SizeRatio         float64 `json:"size_ratio"`
	OutputFolder      string  `json:"output_folder"`
	ThreadCount       int     `json:"thread_count"`
	PreserveStructure bool    `json:"preserve_structure"`
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings() Settings {
	return Settings{
		Quality:     85,
		SizeRatio:   0.8,
		ThreadCount: 4,
	}
}

// AnalysisProgress reports how far an analysis run has got.
type AnalysisProgress struct {
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// CompressProgress reports how far a compression run has got.
type CompressProgress struct {
	Current     int     `json:"current"`
	Total       int     `json:"total"`
	CurrentFile string  `json:"current_file"`
	Percent     float64 `json:"percent"`
}

// NewCompressProgress fills Percent from current and total.
func NewCompressProgress(current, total int, file string) CompressProgress {
	return CompressProgress{
		Current:     current,
		Total:       total,
		CurrentFile: file,
		Percent:     percentOf(current, total),
	}
}

// NewAnalysisProgress fills Percent from current and total.
func NewAnalysisProgress(current, total int) AnalysisProgress {
	return AnalysisProgress{Current: current, Total: total, Percent: percentOf(current, total)}
}

func percentOf(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}

// ImageError is a per-item compression failure.
type ImageError struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// CompressResult is the outcome of one compression run.
// Successful+Failed may be lower than Total if the run stopped early.
type CompressResult struct {
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	SavedBytes int64        `json:"saved_bytes"`
	Errors     []ImageError `json:"errors"`
	DurationMs int64        `json:"duration_ms"`
}

// CompressionConfig is the request consumed by the compress command.
type CompressionConfig struct {
	SourcePaths       []string `json:"source_paths"`
	OutputFolder      string   `json:"output_folder"`
	Quality           float64  `json:"quality"`
	SizeRatio         float64  `json:"size_ratio"`
	ThreadCount       int      `json:"thread_count"`
	PreserveStructure bool     `json:"preserve_structure"`
}

// PathValidation is the result of checking one input path.
type PathValidation struct {
	Path    string `json:"path"`
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error,omitempty"`
}

// SortOrder selects the presentation order of the selection.
type SortOrder string

const (
	SortNameAsc  SortOrder = "name-asc"
	SortNameDesc SortOrder = "name-desc"
	SortSizeAsc  SortOrder = "size-asc"
	SortSizeDesc SortOrder = "size-desc"
)

// SortOrders lists the valid orders.
var SortOrders = []SortOrder{SortNameAsc, SortNameDesc, SortSizeAsc, SortSizeDesc}

// ParseSortOrder converts a string such as "size-desc" to a SortOrder.
func ParseSortOrder(s string) (SortOrder, error) {
	for _, o := range SortOrders {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("invalid sort order %q (valid: name-asc, name-desc, size-asc, size-desc)", s)
}
