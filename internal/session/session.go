// Package session holds the state of one compression workflow: the selected
// images, processing flags, progress, results and settings.
//
// A Session is owned by a single goroutine. It does no locking; progress
// produced elsewhere must be handed to the owner and applied there.
package session

import (
	"context"
	"slices"

	"image-compressor-go/internal/persist"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

// Session is the single source of truth for a compression workflow.
type Session struct {
	id string

	images []ImageRecord

	analyzing   bool
	compressing bool

	analysisProgress *AnalysisProgress
	progress         *CompressProgress

	result *CompressResult

	settings Settings

	showResults bool

	sortBy SortOrder

	store   *persist.Adapter
	log     *logrus.Logger
	collate language.Tag
}

// Option configures a Session.
type Option func(*Session)

// WithPersistence sets the adapter SaveSettings writes through.
func WithPersistence(a *persist.Adapter) Option {
	return func(s *Session) { s.store = a }
}

// WithLogger sets the session logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithCollationLanguage sets the language used to order filenames.
func WithCollationLanguage(tag language.Tag) Option {
	return func(s *Session) { s.collate = tag }
}

// WithSettings replaces the default starting settings.
func WithSettings(settings Settings) Option {
	return func(s *Session) { s.settings = settings }
}

// New returns a Session with default settings and an empty selection.
func New(opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		settings: DefaultSettings(),
		sortBy:   SortNameAsc,
		collate:  language.Und,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = persist.NewAdapter(nil, s.log)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Close flushes the settings one last time.
func (s *Session) Close() persist.Result {
	return s.SaveSettings()
}

// AddImages appends records in order. Duplicate paths are not rejected.
func (s *Session) AddImages(records ...ImageRecord) {
	s.images = append(s.images, records...)
}

// RemoveImage drops every record with the given path.
func (s *Session) RemoveImage(path string) {
	s.images = slices.DeleteFunc(s.images, func(img ImageRecord) bool {
		return img.Path == path
	})
}

// ClearImages empties the selection.
func (s *Session) ClearImages() {
	s.images = nil
}

// SetSortBy changes the order SortedImages uses.
func (s *Session) SetSortBy(order SortOrder) {
	s.sortBy = order
}

// ResetState returns the session to an empty selection ready for another
// batch. Settings and the sort order are kept.
func (s *Session) ResetState() {
	s.images = nil
	s.analyzing = false
	s.compressing = false
	s.analysisProgress = nil
	s.progress = nil
	s.result = nil
	s.showResults = false
}

// BuildConfig projects the selection and settings into a compress request.
// It has no preconditions; check CanCompress first.
func (s *Session) BuildConfig() CompressionConfig {
	paths := make([]string, len(s.images))
	for i, img := range s.images {
		paths[i] = img.Path
	}
	return CompressionConfig{
		SourcePaths:       paths,
		OutputFolder:      s.settings.OutputFolder,
		Quality:           s.settings.Quality,
		SizeRatio:         s.settings.SizeRatio,
		ThreadCount:       s.settings.ThreadCount,
		PreserveStructure: s.settings.PreserveStructure,
	}
}

// SaveSettings persists quality, size ratio, output folder and thread count.
// It never panics; the outcome is reported in the returned Result.
func (s *Session) SaveSettings() persist.Result {
	return s.store.Save(context.Background(), persist.Stored{
		Quality:      s.settings.Quality,
		SizeRatio:    s.settings.SizeRatio,
		OutputFolder: s.settings.OutputFolder,
		ThreadCount:  s.settings.ThreadCount,
	})
}

// Settings returns a copy of the current settings.
func (s *Session) Settings() Settings { return s.settings }

// ApplySettings replaces the settings without persisting them.
func (s *Session) ApplySettings(settings Settings) {
	s.settings = settings
}

// SetQuality updates the quality and persists the settings.
func (s *Session) SetQuality(q float64) persist.Result {
	s.settings.Quality = q
	return s.SaveSettings()
}

// SetSizeRatio updates the size ratio and persists the settings.
func (s *Session) SetSizeRatio(r float64) persist.Result {
	s.settings.SizeRatio = r
	return s.SaveSettings()
}

// SetOutputFolder updates the output folder and persists the settings.
func (s *Session) SetOutputFolder(folder string) persist.Result {
	s.settings.OutputFolder = folder
	return s.SaveSettings()
}

// SetThreadCount updates the worker count and persists the settings.
func (s *Session) SetThreadCount(n int) persist.Result {
	s.settings.ThreadCount = n
	return s.SaveSettings()
}

// SetPreserveStructure toggles folder structure preservation.
// The flag is not part of the persisted subset.
func (s *Session) SetPreserveStructure(preserve bool) {
	s.settings.PreserveStructure = preserve
}

// Images returns a copy of the selection in insertion order.
func (s *Session) Images() []ImageRecord {
	return slices.Clone(s.images)
}

func (s *Session) IsAnalyzing() bool   { return s.analyzing }
func (s *Session) IsCompressing() bool { return s.compressing }
func (s *Session) ShowResults() bool   { return s.showResults }
func (s *Session) SortBy() SortOrder   { return s.sortBy }

// BeginAnalysis marks an analysis run as started.
func (s *Session) BeginAnalysis() {
	s.analyzing = true
	s.analysisProgress = nil
}

// EndAnalysis clears the analyzing flag.
func (s *Session) EndAnalysis() {
	s.analyzing = false
}

// BeginCompression marks a compression run as started and drops the
// previous run's progress and result.
func (s *Session) BeginCompression() {
	s.compressing = true
	s.progress = nil
	s.result = nil
	s.showResults = false
}

// EndCompression clears the compressing flag.
func (s *Session) EndCompression() {
	s.compressing = false
}

// SetAnalysisProgress replaces the analysis snapshot.
func (s *Session) SetAnalysisProgress(p AnalysisProgress) {
	s.analysisProgress = &p
}

// SetProgress replaces the compression snapshot.
func (s *Session) SetProgress(p CompressProgress) {
	s.progress = &p
}

// AnalysisProgress returns the latest analysis snapshot, or nil.
func (s *Session) AnalysisProgress() *AnalysisProgress {
	if s.analysisProgress == nil {
		return nil
	}
	p := *s.analysisProgress
	return &p
}

// Progress returns the latest compression snapshot, or nil.
func (s *Session) Progress() *CompressProgress {
	if s.progress == nil {
		return nil
	}
	p := *s.progress
	return &p
}

// SetResult stores the outcome of a run and shows the results view.
func (s *Session) SetResult(r CompressResult) {
	r.Errors = slices.Clone(r.Errors)
	s.result = &r
	s.showResults = true
}

// Result returns the last run's result, or nil.
func (s *Session) Result() *CompressResult {
	if s.result == nil {
		return nil
	}
	r := *s.result
	r.Errors = slices.Clone(s.result.Errors)
	return &r
}

// SetShowResults toggles the results view.
func (s *Session) SetShowResults(show bool) {
	s.showResults = show
}
