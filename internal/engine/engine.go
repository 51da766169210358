// Package engine is the reference compression backend. It analyses and
// compresses images on the local machine and serves the command surface
// used by the backend facade, either in process or behind internal/web.
package engine

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options configures an Engine.
type Options struct {
	// SupportedExtensions lists accepted input extensions with leading dots.
	SupportedExtensions []string
	// ThumbnailSize is the bounding box of generated thumbnails in pixels.
	ThumbnailSize int
	// SkipMarked leaves JPEG inputs alone when their EXIF Software tag
	// carries Marker.
	SkipMarked bool
	// CopyMetadata copies selected EXIF tags onto JPEG outputs and stamps
	// Marker when exiftool is installed.
	CopyMetadata bool
	// Marker is written to and looked for in the EXIF Software tag.
	Marker string
	// AnalysisWorkers bounds concurrent decodes during analysis.
	AnalysisWorkers int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		SupportedExtensions: []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp", ".tiff", ".tif", ".ico"},
		ThumbnailSize:       64,
		SkipMarked:          true,
		CopyMetadata:        true,
		Marker:              "ImageCompressor",
		AnalysisWorkers:     runtime.NumCPU(),
	}
}

// Engine implements the backend commands.
type Engine struct {
	opts    Options
	log     *logrus.Logger
	extSet  map[string]struct{}
	dialogs Dialogs
	opener  Opener
	meta    MetadataWriter
}

// Option customises an Engine's collaborators.
type Option func(*Engine)

// WithDialogs replaces the native pickers.
func WithDialogs(d Dialogs) Option {
	return func(e *Engine) { e.dialogs = d }
}

// WithOpener replaces the file manager launcher.
func WithOpener(o Opener) Option {
	return func(e *Engine) { e.opener = o }
}

// WithMetadataWriter replaces the exiftool-backed metadata writer.
func WithMetadataWriter(m MetadataWriter) Option {
	return func(e *Engine) { e.meta = m }
}

// New returns an Engine.
func New(opts Options, log *logrus.Logger, options ...Option) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	def := DefaultOptions()
	if len(opts.SupportedExtensions) == 0 {
		opts.SupportedExtensions = def.SupportedExtensions
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = def.ThumbnailSize
	}
	if opts.Marker == "" {
		opts.Marker = def.Marker
	}
	if opts.AnalysisWorkers <= 0 {
		opts.AnalysisWorkers = max(def.AnalysisWorkers, 1)
	}

	e := &Engine{
		opts:    opts,
		log:     log,
		extSet:  make(map[string]struct{}, len(opts.SupportedExtensions)),
		dialogs: ZenityDialogs{},
		opener:  SystemOpener{},
	}
	for _, ext := range opts.SupportedExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		e.extSet[ext] = struct{}{}
	}
	for _, o := range options {
		o(e)
	}
	if e.meta == nil {
		if opts.CopyMetadata {
			e.meta = NewExiftoolWriter(opts.Marker, log)
		} else {
			e.meta = noopMetadata{}
		}
	}
	return e
}
