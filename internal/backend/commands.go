// Package backend is the typed facade over the compression backend's
// command boundary. Every call is one round trip through an Invoker; the
// facade never retries.
package backend

import "image-compressor-go/internal/session"

// Command names understood by the backend.
const (
	CmdSelectFolder           = "select_folder"
	CmdSelectFiles            = "select_files"
	CmdAnalyzeImages          = "analyze_images"
	CmdCompressImages         = "compress_images"
	CmdOpenInExplorer         = "open_in_explorer"
	CmdGetDefaultOutputFolder = "get_default_output_folder"
	CmdValidatePaths          = "validate_paths"
	CmdEstimateSavings        = "estimate_savings"
	CmdGetDefaultConfig       = "get_default_config"
	CmdGetSystemInfo          = "get_system_info"
	CmdEnsureDirectoryExists  = "ensure_directory_exists"
	CmdCheckPathExists        = "check_path_exists"
)

// StreamingCommands emit progress events before their result.
var StreamingCommands = map[string]bool{
	CmdAnalyzeImages:  true,
	CmdCompressImages: true,
}

// PathsArgs carries a list of paths.
type PathsArgs struct {
	Paths []string `json:"paths"`
}

// PathArgs carries a single path.
type PathArgs struct {
	Path string `json:"path"`
}

// AnalyzeArgs is the request of analyze_images. Nil settings use the
// backend defaults for the analysis-time estimate.
type AnalyzeArgs struct {
	Paths     []string `json:"paths"`
	Quality   *float64 `json:"quality,omitempty"`
	SizeRatio *float64 `json:"size_ratio,omitempty"`
}

// CompressArgs is the request of compress_images.
type CompressArgs struct {
	Config session.CompressionConfig `json:"config"`
}

// EstimateArgs is the request of estimate_savings.
type EstimateArgs struct {
	Paths     []string `json:"paths"`
	Quality   float64  `json:"quality"`
	SizeRatio float64  `json:"size_ratio"`
}

// SavingsEstimate is the response of estimate_savings.
type SavingsEstimate struct {
	TotalOriginal     int64   `json:"total_original"`
	TotalEstimated    int64   `json:"total_estimated"`
	EstimatedSavings  int64   `json:"estimated_savings"`
	SavingsPercentage float64 `json:"savings_percentage"`
	FileCount         int     `json:"file_count"`
}

// SystemInfo is the response of get_system_info.
type SystemInfo struct {
	CPUCores               int `json:"cpu_cores"`
	RecommendedThreadCount int `json:"recommended_thread_count"`
}

// PathInfo is the response of check_path_exists.
type PathInfo struct {
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
	IsFile      bool   `json:"is_file"`
	IsDirectory bool   `json:"is_directory"`
}
