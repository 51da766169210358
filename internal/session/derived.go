package session

import (
	"cmp"
	"slices"

	"image-compressor-go/internal/estimate"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Derived values are recomputed on every call from primary state.

// SelectedCount returns the number of selected images.
func (s *Session) SelectedCount() int { return len(s.images) }

// HasSelection reports whether at least one image is selected.
func (s *Session) HasSelection() bool { return len(s.images) > 0 }

// TotalOriginalSize sums the original sizes of the selection.
func (s *Session) TotalOriginalSize() int64 { return totalOriginal(s.images) }

// TotalEstimatedSize sums the estimates of the selection under the current
// settings. Estimates stored on the records are ignored.
func (s *Session) TotalEstimatedSize() int64 { return totalEstimated(s.images, s.settings) }

// EstimatedBytesSaved may be negative.
func (s *Session) EstimatedBytesSaved() int64 {
	return s.TotalOriginalSize() - s.TotalEstimatedSize()
}

// EstimatedSavingsPercent is 0 for an empty selection and may be negative.
func (s *Session) EstimatedSavingsPercent() float64 {
	return savingsPercent(s.TotalOriginalSize(), s.EstimatedBytesSaved())
}

// CanCompress reports whether a compression run may start: something is
// selected, no run is in flight and an output folder is set. A running
// analysis does not block compression of the records already selected.
func (s *Session) CanCompress() bool {
	return canCompress(len(s.images), s.compressing, s.settings)
}

// SortedImages returns a copy of the selection in the current sort order.
func (s *Session) SortedImages() []ImageRecord {
	return sortImages(s.images, s.sortBy, s.collate)
}

// Snapshot is an immutable copy of a session's primary state.
type Snapshot struct {
	ID               string
	Images           []ImageRecord
	IsAnalyzing      bool
	IsCompressing    bool
	AnalysisProgress *AnalysisProgress
	Progress         *CompressProgress
	Result           *CompressResult
	Settings         Settings
	ShowResults      bool
	SortBy           SortOrder

	collate language.Tag
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:               s.id,
		Images:           s.Images(),
		IsAnalyzing:      s.analyzing,
		IsCompressing:    s.compressing,
		AnalysisProgress: s.AnalysisProgress(),
		Progress:         s.Progress(),
		Result:           s.Result(),
		Settings:         s.settings,
		ShowResults:      s.showResults,
		SortBy:           s.sortBy,
		collate:          s.collate,
	}
}

func (v Snapshot) SelectedCount() int       { return len(v.Images) }
func (v Snapshot) HasSelection() bool       { return len(v.Images) > 0 }
func (v Snapshot) TotalOriginalSize() int64 { return totalOriginal(v.Images) }
func (v Snapshot) TotalEstimatedSize() int64 {
	return totalEstimated(v.Images, v.Settings)
}
func (v Snapshot) EstimatedBytesSaved() int64 {
	return v.TotalOriginalSize() - v.TotalEstimatedSize()
}
func (v Snapshot) EstimatedSavingsPercent() float64 {
	return savingsPercent(v.TotalOriginalSize(), v.EstimatedBytesSaved())
}
func (v Snapshot) CanCompress() bool {
	return canCompress(len(v.Images), v.IsCompressing, v.Settings)
}
func (v Snapshot) SortedImages() []ImageRecord {
	return sortImages(v.Images, v.SortBy, v.collate)
}

func totalOriginal(images []ImageRecord) int64 {
	var total int64
	for _, img := range images {
		total += img.OriginalSize
	}
	return total
}

func totalEstimated(images []ImageRecord, settings Settings) int64 {
	var total int64
	for _, img := range images {
		total += estimate.Size(img.OriginalSize, settings.Quality, settings.SizeRatio)
	}
	return total
}

func savingsPercent(original, saved int64) float64 {
	if original == 0 {
		return 0
	}
	return float64(saved) / float64(original) * 100
}

func canCompress(selected int, compressing bool, settings Settings) bool {
	return selected > 0 && !compressing && settings.OutputFolder != ""
}

func sortImages(images []ImageRecord, order SortOrder, tag language.Tag) []ImageRecord {
	out := slices.Clone(images)

	switch order {
	case SortNameAsc, SortNameDesc:
		c := collate.New(tag)
		desc := order == SortNameDesc
		slices.SortStableFunc(out, func(a, b ImageRecord) int {
			if desc {
				a, b = b, a
			}
			return c.CompareString(a.Filename, b.Filename)
		})
	case SortSizeAsc:
		slices.SortStableFunc(out, func(a, b ImageRecord) int {
			return cmp.Compare(a.OriginalSize, b.OriginalSize)
		})
	case SortSizeDesc:
		slices.SortStableFunc(out, func(a, b ImageRecord) int {
			return cmp.Compare(b.OriginalSize, a.OriginalSize)
		})
	}
	return out
}
