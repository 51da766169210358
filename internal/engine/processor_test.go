package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"image-compressor-go/internal/session"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func compressConfig(out string, sources ...string) session.CompressionConfig {
	return session.CompressionConfig{
		SourcePaths:  sources,
		OutputFolder: out,
		Quality:      80,
		SizeRatio:    0.5,
		ThreadCount:  2,
	}
}

func TestCompressImages(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeImage(t, filepath.Join(src, "wide.png"), 200, 100)
	writeImage(t, filepath.Join(src, "photo.jpg"), 64, 64)

	var progress []session.CompressProgress
	res, err := newTestEngine().CompressImages(context.Background(), compressConfig(out, src), func(p session.CompressProgress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("CompressImages: %v", err)
	}
	if res.Total != 2 || res.Successful != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(progress) != 2 || progress[1].Current != 2 || progress[1].Total != 2 {
		t.Errorf("progress = %+v", progress)
	}

	img, err := imaging.Open(filepath.Join(out, "wide.jpg"))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("output size = %dx%d, want 100x50", b.Dx(), b.Dy())
	}
	if _, err := os.Stat(filepath.Join(out, "photo.jpg")); err != nil {
		t.Errorf("photo.jpg not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "photo.jpg.tmp")); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

func TestCompressImagesLogsRunSummary(t *testing.T) {
	src := t.TempDir()
	writeImage(t, filepath.Join(src, "a.png"), 40, 40)
	writeImage(t, filepath.Join(src, "b.png"), 40, 40)
	writeImage(t, filepath.Join(src, "c.jpg"), 40, 40)

	log, hook := test.NewNullLogger()
	opts := DefaultOptions()
	opts.CopyMetadata = false
	e := New(opts, log)

	if _, err := e.CompressImages(context.Background(), compressConfig(filepath.Join(t.TempDir(), "out"), src), nil); err != nil {
		t.Fatalf("CompressImages: %v", err)
	}

	var summary *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Compression finished" {
			summary = entry
		}
	}
	if summary == nil {
		t.Fatal("no completion log entry")
	}
	if got := summary.Data["formats"]; got != "JPEG=1 PNG=2" {
		t.Errorf("formats = %v", got)
	}
	if got := summary.Data["skipped"]; got != 0 {
		t.Errorf("skipped = %v", got)
	}
	if _, ok := summary.Data["savings_pct"].(float64); !ok {
		t.Errorf("savings_pct = %v", summary.Data["savings_pct"])
	}
}

func TestCompressImagesPerItemFailure(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeImage(t, filepath.Join(src, "good.png"), 20, 20)
	writeFile(t, filepath.Join(src, "bad.jpg"), "garbage")

	res, err := newTestEngine().CompressImages(context.Background(), compressConfig(out, src), nil)
	if err != nil {
		t.Fatalf("CompressImages: %v", err)
	}
	if res.Successful != 1 || res.Failed != 1 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Errors[0].Filename != "bad.jpg" || res.Errors[0].Error == "" {
		t.Errorf("error = %+v", res.Errors[0])
	}
}

func TestCompressImagesPreserveStructure(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeImage(t, filepath.Join(src, "a", "one.png"), 10, 10)
	writeImage(t, filepath.Join(src, "b", "one.png"), 10, 10)

	cfg := compressConfig(out, src)
	cfg.PreserveStructure = true
	res, err := newTestEngine().CompressImages(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Successful != 2 {
		t.Fatalf("result = %+v", res)
	}
	for _, p := range []string{"a/one.jpg", "b/one.jpg"} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(p))); err != nil {
			t.Errorf("%s missing: %v", p, err)
		}
	}
}

func TestCompressImagesUniqueNames(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeImage(t, filepath.Join(src, "pic.png"), 10, 10)
	writeImage(t, filepath.Join(src, "pic.bmp"), 10, 10)
	writeImage(t, filepath.Join(out, "pic.jpg"), 5, 5)

	res, err := newTestEngine().CompressImages(context.Background(), compressConfig(out, src), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Successful != 2 {
		t.Fatalf("result = %+v", res)
	}
	for _, name := range []string{"pic.jpg", "pic_1.jpg", "pic_2.jpg"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

func TestCompressImagesValidation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		mut  func(*session.CompressionConfig)
		want error
	}{
		{"no paths", func(c *session.CompressionConfig) { c.SourcePaths = nil }, ErrNoPaths},
		{"no output", func(c *session.CompressionConfig) { c.OutputFolder = "" }, ErrNoOutputFolder},
		{"quality", func(c *session.CompressionConfig) { c.Quality = -1 }, ErrInvalidQuality},
		{"ratio", func(c *session.CompressionConfig) { c.SizeRatio = 1.5 }, ErrInvalidSizeRatio},
		{"threads", func(c *session.CompressionConfig) { c.ThreadCount = 0 }, ErrInvalidThreadCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := compressConfig(dir, dir)
			tt.mut(&cfg)
			if _, err := e.CompressImages(ctx, cfg, nil); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	writeFile(t, filepath.Join(dir, "a.txt"), "x")
	if _, err := e.CompressImages(ctx, compressConfig(filepath.Join(dir, "out"), dir), nil); !errors.Is(err, ErrNoImages) {
		t.Errorf("empty source: err = %v", err)
	}
}

func TestCompressImagesCancelled(t *testing.T) {
	src := t.TempDir()
	writeImage(t, filepath.Join(src, "a.png"), 10, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine().CompressImages(ctx, compressConfig(t.TempDir(), src), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOutputPath(t *testing.T) {
	src := t.TempDir()
	file := filepath.Join(src, "sub", "x.PNG")
	out := filepath.Join("out")

	if got, want := outputPath(file, out, false, []string{src}), filepath.Join(out, "x.jpg"); got != want {
		t.Errorf("flat: got %q, want %q", got, want)
	}
	if got, want := outputPath(file, out, true, []string{src}), filepath.Join(out, "sub", "x.jpg"); got != want {
		t.Errorf("preserve: got %q, want %q", got, want)
	}
	if got, want := outputPath(file, out, true, []string{file}), filepath.Join(out, "x.jpg"); got != want {
		t.Errorf("file source: got %q, want %q", got, want)
	}
}

type recordingMeta struct {
	calls []string
}

func (m *recordingMeta) CopyAndMark(src, dst string) error {
	m.calls = append(m.calls, filepath.Base(src))
	return errors.New("exiftool missing")
}

func (m *recordingMeta) Close() error { return nil }

func TestCompressImagesMetadataOnlyForJPEG(t *testing.T) {
	src := t.TempDir()
	writeImage(t, filepath.Join(src, "a.jpg"), 10, 10)
	writeImage(t, filepath.Join(src, "b.png"), 10, 10)

	meta := &recordingMeta{}
	cfg := compressConfig(t.TempDir(), src)
	cfg.ThreadCount = 1
	res, err := newTestEngine(WithMetadataWriter(meta)).CompressImages(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Successful != 2 {
		t.Errorf("metadata failure must not fail the file: %+v", res)
	}
	if len(meta.calls) != 1 || meta.calls[0] != "a.jpg" {
		t.Errorf("metadata calls = %v", meta.calls)
	}
}
