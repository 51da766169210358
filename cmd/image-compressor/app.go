package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"image-compressor-go/internal/backend"
	"image-compressor-go/internal/bootstrap"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/engine"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/persist"
	"image-compressor-go/internal/session"
	"image-compressor-go/internal/statistics"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// app wires one CLI invocation: config, logger, settings storage, backend
// and a seeded session.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *persist.Adapter
	storeKV persist.KV
	engine  *engine.Engine
	client  *backend.Client
	session *session.Session
	boot    bootstrap.Report

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)

	a := &app{cfg: cfg, log: log}

	kv, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.storeKV = kv
	a.store = persist.NewAdapter(kv, log)

	inv, err := a.openBackend()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = backend.NewClient(inv, log)

	a.session = session.New(
		session.WithLogger(log),
		session.WithPersistence(a.store),
		session.WithCollationLanguage(cfg.CollationTag()),
		session.WithSettings(cfg.Settings()),
	)
	a.boot = bootstrap.Seed(ctx, a.session, a.store, a.client, log)
	return a, nil
}

func (a *app) openStore() (persist.KV, error) {
	switch a.cfg.Storage.Backend {
	case "memory":
		return persist.NewMemoryKV(), nil
	case "none":
		return persist.NoopKV{}, nil
	case "redis":
		r := a.cfg.Storage.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
		})
		kv := persist.NewRedisKV(client, r.Prefix)
		a.closers = append(a.closers, kv.Close)
		return kv, nil
	default:
		path := a.cfg.Storage.Path
		if path == "" {
			p, err := persist.DefaultFilePath()
			if err != nil {
				a.log.WithError(err).Warn("No settings file location, settings will not be kept")
				return persist.NoopKV{}, nil
			}
			path = p
		}
		kv, err := persist.NewFileKV(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open settings file: %w", err)
		}
		return kv, nil
	}
}

func (a *app) openBackend() (backend.Invoker, error) {
	if a.cfg.Backend.Mode == "remote" {
		inv, err := backend.NewHTTPInvoker(a.cfg.Backend.URL, a.cfg.Backend.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to configure remote backend: %w", err)
		}
		return inv, nil
	}
	a.engine = newEngine(a.cfg, a.log)
	a.closers = append(a.closers, a.engine.Close)
	return engine.NewLocalInvoker(a.engine), nil
}

func newEngine(cfg *config.Config, log *logrus.Logger) *engine.Engine {
	return engine.New(engine.Options{
		SupportedExtensions: cfg.Analysis.SupportedExtensions,
		ThumbnailSize:       cfg.Analysis.ThumbnailSize,
		SkipMarked:          cfg.Analysis.SkipMarked,
		CopyMetadata:        cfg.Analysis.CopyMetadata,
		Marker:              cfg.Analysis.Marker,
		AnalysisWorkers:     cfg.Analysis.Workers,
	}, log)
}

// Close flushes nothing; settings are saved as they change.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Debug("Close failed")
		}
	}
}

// reportSave prints a warning when a settings change could not be kept.
func (a *app) reportSave(res persist.Result) {
	switch res.Status {
	case persist.StatusFailed:
		fmt.Fprintf(os.Stderr, "Warning: settings not saved: %v\n", res.Err)
	case persist.StatusUnavailable:
		logger.WithSession(a.log, a.session.ID()).Debug("Settings storage unavailable")
	}
}

// progressAnalyzer prints analysis progress while delegating to the backend.
type progressAnalyzer struct {
	inner session.Analyzer
	out   io.Writer
}

func (p progressAnalyzer) AnalyzeImages(ctx context.Context, paths []string, onProgress func(session.AnalysisProgress)) ([]session.ImageRecord, error) {
	recs, err := p.inner.AnalyzeImages(ctx, paths, func(pr session.AnalysisProgress) {
		fmt.Fprintf(p.out, "\rAnalyzing %d/%d (%.0f%%)", pr.Current, pr.Total, pr.Percent)
		if onProgress != nil {
			onProgress(pr)
		}
	})
	fmt.Fprintln(p.out)
	return recs, err
}

// progressCompressor prints compression progress while delegating to the backend.
type progressCompressor struct {
	inner session.Compressor
	out   io.Writer
}

func (p progressCompressor) CompressImages(ctx context.Context, cfg session.CompressionConfig, onProgress func(session.CompressProgress)) (session.CompressResult, error) {
	res, err := p.inner.CompressImages(ctx, cfg, func(pr session.CompressProgress) {
		fmt.Fprintf(p.out, "\rCompressing %d/%d (%.0f%%) %-40.40s", pr.Current, pr.Total, pr.Percent, pr.CurrentFile)
		if onProgress != nil {
			onProgress(pr)
		}
	})
	fmt.Fprintln(p.out)
	return res, err
}

func progressWriter() io.Writer {
	if quiet {
		return io.Discard
	}
	return os.Stderr
}

func printSelection(w io.Writer, snap session.Snapshot) {
	fmt.Fprintf(w, "Selected images:   %d\n", snap.SelectedCount())
	fmt.Fprintf(w, "Original size:     %s\n", statistics.FormatBytes(snap.TotalOriginalSize(), 2))
	fmt.Fprintf(w, "Estimated size:    %s\n", statistics.FormatBytes(snap.TotalEstimatedSize(), 2))
	fmt.Fprintf(w, "Estimated savings: %s (%.1f%%)\n",
		statistics.FormatBytes(snap.EstimatedBytesSaved(), 2), snap.EstimatedSavingsPercent())
}
