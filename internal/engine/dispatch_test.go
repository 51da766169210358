package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"image-compressor-go/internal/backend"
	"image-compressor-go/internal/session"
)

type fakeDialogs struct {
	folder string
	files  []string
	err    error
}

func (f fakeDialogs) SelectFolder() (string, bool, error) {
	return f.folder, f.folder != "", f.err
}

func (f fakeDialogs) SelectFiles([]string) ([]string, error) {
	return f.files, f.err
}

type fakeOpener struct {
	opened *[]string
}

func (f fakeOpener) Open(path string) error {
	*f.opened = append(*f.opened, path)
	return nil
}

func newTestClient(options ...Option) *backend.Client {
	return backend.NewClient(NewLocalInvoker(newTestEngine(options...)), testLogger())
}

func TestLocalInvokerSelectFolder(t *testing.T) {
	ctx := context.Background()

	folder, ok, err := newTestClient(WithDialogs(fakeDialogs{})).SelectFolder(ctx)
	if err != nil || ok || folder != "" {
		t.Errorf("cancelled picker: %q %v %v", folder, ok, err)
	}

	folder, ok, err = newTestClient(WithDialogs(fakeDialogs{folder: "/pics"})).SelectFolder(ctx)
	if err != nil || !ok || folder != "/pics" {
		t.Errorf("picked: %q %v %v", folder, ok, err)
	}

	_, _, err = newTestClient(WithDialogs(fakeDialogs{err: errors.New("no display")})).SelectFolder(ctx)
	var opErr *backend.OperationError
	if !errors.As(err, &opErr) || opErr.Command != backend.CmdSelectFolder {
		t.Errorf("err = %v, want OperationError for select_folder", err)
	}
}

func TestLocalInvokerSelectFiles(t *testing.T) {
	files, err := newTestClient(WithDialogs(fakeDialogs{})).SelectFiles(context.Background())
	if err != nil || files == nil || len(files) != 0 {
		t.Errorf("cancelled picker: %v %v", files, err)
	}
	files, err = newTestClient(WithDialogs(fakeDialogs{files: []string{"a.png", "b.jpg"}})).SelectFiles(context.Background())
	if err != nil || len(files) != 2 {
		t.Errorf("picked: %v %v", files, err)
	}
}

func TestLocalInvokerOpenInExplorer(t *testing.T) {
	var opened []string
	c := newTestClient(WithOpener(fakeOpener{opened: &opened}))
	dir := t.TempDir()

	if err := c.OpenInExplorer(context.Background(), dir); err != nil {
		t.Fatal(err)
	}
	if len(opened) != 1 || opened[0] != dir {
		t.Errorf("opened = %v", opened)
	}
	if err := c.OpenInExplorer(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestLocalInvokerCompress(t *testing.T) {
	src := t.TempDir()
	writeImage(t, filepath.Join(src, "a.png"), 30, 30)
	writeImage(t, filepath.Join(src, "b.png"), 30, 30)

	var last session.CompressProgress
	res, err := newTestClient().CompressImages(context.Background(), compressConfig(t.TempDir(), src), func(p session.CompressProgress) {
		last = p
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Successful != 2 {
		t.Errorf("result = %+v", res)
	}
	if last.Current != 2 || last.Total != 2 {
		t.Errorf("last progress = %+v", last)
	}
}

func TestLocalInvokerAnalyze(t *testing.T) {
	src := t.TempDir()
	writeImage(t, filepath.Join(src, "a.png"), 30, 30)

	recs, err := newTestClient().AnalyzeImages(context.Background(), []string{src}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Filename != "a.png" {
		t.Errorf("records = %+v", recs)
	}

	_, err = newTestClient().AnalyzeImages(context.Background(), nil, nil)
	if !errors.Is(err, ErrNoPaths) {
		t.Errorf("err = %v, want ErrNoPaths", err)
	}
}

func TestLocalInvokerMiscCommands(t *testing.T) {
	ctx := context.Background()
	c := newTestClient()

	info, err := c.GetSystemInfo(ctx)
	if err != nil || info.CPUCores < 1 {
		t.Errorf("system info = %+v, %v", info, err)
	}
	cfg, err := c.GetDefaultConfig(ctx)
	if err != nil || cfg.Quality != 85 || cfg.SizeRatio != 0.8 || cfg.ThreadCount < 1 {
		t.Errorf("default config = %+v, %v", cfg, err)
	}

	dir := filepath.Join(t.TempDir(), "made")
	if err := c.EnsureDirectoryExists(ctx, dir); err != nil {
		t.Fatal(err)
	}
	pi, err := c.CheckPathExists(ctx, dir)
	if err != nil || !pi.Exists || !pi.IsDirectory {
		t.Errorf("path info = %+v, %v", pi, err)
	}
	if _, err := c.GetDefaultOutputFolder(ctx); err != nil {
		t.Errorf("default folder: %v", err)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	_, err := newTestEngine().Dispatch(context.Background(), "format_disk", nil, nil)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("err = %v", err)
	}
}

func TestDispatchBadArguments(t *testing.T) {
	_, err := newTestEngine().Dispatch(context.Background(), backend.CmdValidatePaths, []byte(`{"paths": 3}`), nil)
	if err == nil {
		t.Error("expected decode error")
	}
}
