package session

import (
	"context"
	"errors"
	"testing"
)

type fakeAnalyzer struct {
	records []ImageRecord
	err     error
	sawFlag bool
	s       *Session
}

func (f *fakeAnalyzer) AnalyzeImages(_ context.Context, paths []string, onProgress func(AnalysisProgress)) ([]ImageRecord, error) {
	f.sawFlag = f.s.IsAnalyzing()
	for i := range paths {
		onProgress(NewAnalysisProgress(i+1, len(paths)))
	}
	return f.records, f.err
}

type fakeCompressor struct {
	result  CompressResult
	err     error
	gotCfg  CompressionConfig
	sawFlag bool
	s       *Session
}

func (f *fakeCompressor) CompressImages(ctx context.Context, cfg CompressionConfig, onProgress func(CompressProgress)) (CompressResult, error) {
	f.gotCfg = cfg
	f.sawFlag = f.s.IsCompressing()
	for i, p := range cfg.SourcePaths {
		onProgress(NewCompressProgress(i+1, len(cfg.SourcePaths), p))
	}
	if err := ctx.Err(); err != nil {
		return CompressResult{}, err
	}
	return f.result, f.err
}

func TestAnalyze_AddsNewRecords(t *testing.T) {
	s := newTestSession()
	s.AddImages(rec("/a.png", "a.png", 1))
	a := &fakeAnalyzer{s: s, records: []ImageRecord{
		rec("/a.png", "a.png", 1),
		rec("/b.png", "b.png", 2),
		rec("/b.png", "b.png", 2),
	}}

	added, err := s.Analyze(context.Background(), a, []string{"/a.png", "/b.png"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(added) != 1 || added[0].Path != "/b.png" {
		t.Fatalf("added = %+v", added)
	}
	if s.SelectedCount() != 2 {
		t.Fatalf("count = %d; want 2", s.SelectedCount())
	}
	if !a.sawFlag {
		t.Fatalf("analyzing flag not set during the call")
	}
	if s.IsAnalyzing() {
		t.Fatalf("analyzing flag left set")
	}
	p := s.AnalysisProgress()
	if p == nil || p.Current != 2 || p.Percent != 100 {
		t.Fatalf("last progress = %+v", p)
	}
}

func TestAnalyze_FailureClearsFlag(t *testing.T) {
	s := newTestSession()
	a := &fakeAnalyzer{s: s, err: errors.New("backend down")}
	if _, err := s.Analyze(context.Background(), a, []string{"/x"}); err == nil {
		t.Fatalf("expected error")
	}
	if s.IsAnalyzing() {
		t.Fatalf("analyzing flag stuck after failure")
	}
	if s.HasSelection() {
		t.Fatalf("failed analysis added images")
	}
}

func TestCompress_Success(t *testing.T) {
	s := newTestSession()
	s.AddImages(rec("/1", "1", 10), rec("/2", "2", 20))
	s.SetOutputFolder("/out")
	c := &fakeCompressor{s: s, result: CompressResult{Total: 2, Successful: 1, Failed: 1, SavedBytes: 5,
		Errors: []ImageError{{Path: "/2", Filename: "2", Error: "bad"}}}}

	res, err := s.Compress(context.Background(), c)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !c.sawFlag {
		t.Fatalf("compressing flag not set during the call")
	}
	if s.IsCompressing() {
		t.Fatalf("compressing flag left set")
	}
	if len(c.gotCfg.SourcePaths) != 2 || c.gotCfg.OutputFolder != "/out" {
		t.Fatalf("config = %+v", c.gotCfg)
	}
	if res.Failed != 1 || s.Result() == nil || s.Result().SavedBytes != 5 {
		t.Fatalf("result not stored: %+v", s.Result())
	}
	if !s.ShowResults() {
		t.Fatalf("results view not shown")
	}
	if p := s.Progress(); p == nil || p.CurrentFile != "/2" {
		t.Fatalf("progress = %+v", p)
	}
}

func TestCompress_Gated(t *testing.T) {
	s := newTestSession()
	s.AddImages(rec("/1", "1", 10))
	c := &fakeCompressor{s: s}
	if _, err := s.Compress(context.Background(), c); !errors.Is(err, ErrCannotCompress) {
		t.Fatalf("err = %v; want ErrCannotCompress", err)
	}
}

func TestCompress_CancelClearsFlag(t *testing.T) {
	s := newTestSession()
	s.AddImages(rec("/1", "1", 10))
	s.SetOutputFolder("/out")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Compress(ctx, &fakeCompressor{s: s})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if s.IsCompressing() {
		t.Fatalf("compressing flag stuck after cancellation")
	}
	if s.Result() != nil {
		t.Fatalf("cancelled run stored a result")
	}
}
