package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"image-compressor-go/internal/config"
	"image-compressor-go/internal/persist"
	"image-compressor-go/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
)

func testApp(cfg *config.Config) *app {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &app{cfg: cfg, log: log}
}

func TestOpenStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name      string
		mut       func(*config.Config)
		available bool
	}{
		{"memory", func(c *config.Config) { c.Storage.Backend = "memory" }, true},
		{"none", func(c *config.Config) { c.Storage.Backend = "none" }, false},
		{"file", func(c *config.Config) {
			c.Storage.Backend = "file"
			c.Storage.Path = filepath.Join(t.TempDir(), "settings.yaml")
		}, true},
		{"redis", func(c *config.Config) {
			c.Storage.Backend = "redis"
			c.Storage.Redis.Addr = mr.Addr()
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mut(cfg)
			a := testApp(cfg)
			defer a.Close()

			kv, err := a.openStore()
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			if kv.Available() != tt.available {
				t.Errorf("Available() = %v, want %v", kv.Available(), tt.available)
			}
		})
	}
}

func TestOpenStoreFileKeepsValues(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "settings.yaml")

	kv, err := testApp(cfg).openStore()
	if err != nil {
		t.Fatal(err)
	}
	if res := persist.NewAdapter(kv, nil).Save(context.Background(), persist.Stored{Quality: 60, SizeRatio: 0.7, ThreadCount: 2}); !res.OK() {
		t.Fatalf("save: %v", res.Err)
	}

	kv2, err := testApp(cfg).openStore()
	if err != nil {
		t.Fatal(err)
	}
	loaded := persist.NewAdapter(kv2, nil).Load(context.Background())
	if loaded.Quality == nil || *loaded.Quality != 60 {
		t.Errorf("loaded = %+v", loaded)
	}
}

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzeImages(_ context.Context, paths []string, onProgress func(session.AnalysisProgress)) ([]session.ImageRecord, error) {
	for i := range paths {
		onProgress(session.NewAnalysisProgress(i+1, len(paths)))
	}
	return []session.ImageRecord{{Path: paths[0], Filename: "a.png", OriginalSize: 100}}, nil
}

func TestProgressAnalyzerForwards(t *testing.T) {
	var out bytes.Buffer
	var seen []session.AnalysisProgress
	recs, err := progressAnalyzer{inner: stubAnalyzer{}, out: &out}.AnalyzeImages(context.Background(), []string{"/a", "/b"}, func(p session.AnalysisProgress) {
		seen = append(seen, p)
	})
	if err != nil || len(recs) != 1 {
		t.Fatalf("recs = %v, err = %v", recs, err)
	}
	if len(seen) != 2 || seen[1].Current != 2 {
		t.Errorf("progress = %+v", seen)
	}
	if !strings.Contains(out.String(), "Analyzing 2/2 (100%)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrintSelection(t *testing.T) {
	s := session.New()
	s.AddImages(session.ImageRecord{Path: "/a", OriginalSize: 1_000_000})
	var out bytes.Buffer
	printSelection(&out, s.Snapshot())
	if !strings.Contains(out.String(), "Selected images:   1") {
		t.Errorf("output = %q", out.String())
	}
}
