// Package persist round-trips the durable subset of the compression
// settings through a key-value store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Storage keys. The values are string encoded.
const (
	KeyQuality      = "compressionQuality"
	KeySizeRatio    = "compressionSizeRatio"
	KeyOutputFolder = "compressionOutputFolder"
	KeyThreadCount  = "compressionThreadCount"
)

// Keys lists every key the adapter reads or writes.
var Keys = []string{KeyQuality, KeySizeRatio, KeyOutputFolder, KeyThreadCount}

// KV is a durable string key-value store.
//
// Available reports whether the store can be used in the current runtime.
// Adapters never call Get or Set on an unavailable store.
type KV interface {
	Available() bool
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Stored is the persisted subset of the session settings.
type Stored struct {
	Quality      float64
	SizeRatio    float64
	OutputFolder string
	ThreadCount  int
}

// Loaded holds the values found in storage. A nil field means the key was
// absent or its value could not be decoded.
type Loaded struct {
	Quality      *float64
	SizeRatio    *float64
	OutputFolder *string
	ThreadCount  *int
}

// Empty reports whether nothing was loaded.
func (l Loaded) Empty() bool {
	return l.Quality == nil && l.SizeRatio == nil && l.OutputFolder == nil && l.ThreadCount == nil
}

// Status describes the outcome of a save.
type Status int

const (
	StatusSaved Status = iota
	StatusUnavailable
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusUnavailable:
		return "unavailable"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is returned by Save instead of an error so callers can ignore it.
type Result struct {
	Status Status
	Err    error
}

// OK reports whether the settings reached storage.
func (r Result) OK() bool {
	return r.Status == StatusSaved
}

// Adapter encodes settings to and from a KV.
type Adapter struct {
	kv  KV
	log *logrus.Logger
}

// NewAdapter returns an Adapter backed by kv. A nil kv behaves like NoopKV.
func NewAdapter(kv KV, log *logrus.Logger) *Adapter {
	if kv == nil {
		kv = NoopKV{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{kv: kv, log: log}
}

// Available reports whether the underlying store can be used.
func (a *Adapter) Available() bool {
	return a.kv.Available()
}

// Save writes all four settings. Individual write failures do not stop the
// remaining writes; they are joined into the returned Result.
func (a *Adapter) Save(ctx context.Context, s Stored) Result {
	if !a.kv.Available() {
		return Result{Status: StatusUnavailable}
	}

	values := map[string]string{
		KeyQuality:      formatFloat(s.Quality),
		KeySizeRatio:    formatFloat(s.SizeRatio),
		KeyOutputFolder: s.OutputFolder,
		KeyThreadCount:  strconv.Itoa(s.ThreadCount),
	}

	var errs []error
	for _, key := range Keys {
		if err := a.kv.Set(ctx, key, values[key]); err != nil {
			errs = append(errs, fmt.Errorf("set %s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		a.log.WithField("operation", "save_settings").WithError(err).Warn("Failed to persist settings")
		return Result{Status: StatusFailed, Err: err}
	}

	a.log.WithFields(logrus.Fields{
		"operation":     "save_settings",
		"quality":       s.Quality,
		"size_ratio":    s.SizeRatio,
		"output_folder": s.OutputFolder,
		"thread_count":  s.ThreadCount,
	}).Debug("Settings persisted")
	return Result{Status: StatusSaved}
}

// Load reads the stored settings. Missing, empty and malformed values are
// all reported as absent.
func (a *Adapter) Load(ctx context.Context) Loaded {
	var out Loaded
	if !a.kv.Available() {
		return out
	}

	if raw, ok := a.get(ctx, KeyQuality); ok {
		if v, err := parseFloat(raw); err == nil {
			out.Quality = &v
		} else {
			a.malformed(KeyQuality, raw, err)
		}
	}
	if raw, ok := a.get(ctx, KeySizeRatio); ok {
		if v, err := parseFloat(raw); err == nil {
			out.SizeRatio = &v
		} else {
			a.malformed(KeySizeRatio, raw, err)
		}
	}
	if raw, ok := a.get(ctx, KeyThreadCount); ok {
		if v, err := parseThreadCount(raw); err == nil {
			out.ThreadCount = &v
		} else {
			a.malformed(KeyThreadCount, raw, err)
		}
	}
	if raw, ok := a.get(ctx, KeyOutputFolder); ok {
		out.OutputFolder = &raw
	}

	return out
}

func (a *Adapter) get(ctx context.Context, key string) (string, bool) {
	raw, ok, err := a.kv.Get(ctx, key)
	if err != nil {
		a.log.WithFields(logrus.Fields{"operation": "load_settings", "key": key}).
			WithError(err).Warn("Failed to read stored setting")
		return "", false
	}
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

func (a *Adapter) malformed(key, raw string, err error) {
	a.log.WithFields(logrus.Fields{
		"operation": "load_settings",
		"key":       key,
		"value":     raw,
	}).WithError(err).Warn("Ignoring malformed stored setting")
}

// parseFloat accepts finite numbers only; NaN and infinities are malformed.
func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", raw)
	}
	return v, nil
}

func parseThreadCount(raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, fmt.Errorf("thread count must be positive, got %d", v)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
