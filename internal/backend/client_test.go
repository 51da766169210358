package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"image-compressor-go/internal/session"

	"github.com/sirupsen/logrus"
)

// fakeInvoker answers commands from canned JSON.
type fakeInvoker struct {
	responses map[string]string
	events    map[string][]string
	errs      map[string]error
	calls     []string
	args      []any
}

func (f *fakeInvoker) Invoke(ctx context.Context, command string, args, out any) error {
	return f.Stream(ctx, command, args, out, nil)
}

func (f *fakeInvoker) Stream(ctx context.Context, command string, args, out any, onEvent func(json.RawMessage)) error {
	f.calls = append(f.calls, command)
	f.args = append(f.args, args)
	for _, ev := range f.events[command] {
		if onEvent != nil {
			onEvent(json.RawMessage(ev))
		}
	}
	if err := f.errs[command]; err != nil {
		return err
	}
	if resp, ok := f.responses[command]; ok && out != nil {
		return json.Unmarshal([]byte(resp), out)
	}
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSelectFolder(t *testing.T) {
	tests := []struct {
		name   string
		resp   string
		want   string
		wantOK bool
	}{
		{"picked", `"/photos"`, "/photos", true},
		{"cancelled", `null`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&fakeInvoker{responses: map[string]string{CmdSelectFolder: tt.resp}}, quietLogger())
			got, ok, err := c.SelectFolder(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCallFailuresAreWrapped(t *testing.T) {
	cause := errors.New("permission denied")
	inv := &fakeInvoker{errs: map[string]error{CmdValidatePaths: cause}}
	c := NewClient(inv, quietLogger())

	_, err := c.ValidatePaths(context.Background(), []string{"/x"})
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("err = %v, want *OperationError", err)
	}
	if opErr.Command != CmdValidatePaths || !errors.Is(err, cause) {
		t.Errorf("err = %v", err)
	}
	if len(inv.calls) != 1 {
		t.Errorf("calls = %v; failures must not be retried", inv.calls)
	}
}

func TestCommandArguments(t *testing.T) {
	inv := &fakeInvoker{}
	c := NewClient(inv, quietLogger())
	ctx := context.Background()

	_ = c.OpenInExplorer(ctx, "/out")
	_, _ = c.ValidatePaths(ctx, []string{"/a"})
	_ = c.EnsureDirectoryExists(ctx, "/new")

	want := []any{PathArgs{Path: "/out"}, PathsArgs{Paths: []string{"/a"}}, PathArgs{Path: "/new"}}
	for i, w := range want {
		gotJSON, _ := json.Marshal(inv.args[i])
		wantJSON, _ := json.Marshal(w)
		if string(gotJSON) != string(wantJSON) {
			t.Errorf("call %d (%s) args = %s, want %s", i, inv.calls[i], gotJSON, wantJSON)
		}
	}
}

func TestCompressImagesForwardsProgress(t *testing.T) {
	inv := &fakeInvoker{
		events: map[string][]string{CmdCompressImages: {
			`{"current":1,"total":2,"current_file":"a.png","percent":50}`,
			`not json`,
			`{"current":2,"total":2,"current_file":"b.png","percent":100}`,
		}},
		responses: map[string]string{CmdCompressImages: `{"total":2,"successful":2,"failed":0,"saved_bytes":10,"errors":[],"duration_ms":3}`},
	}
	c := NewClient(inv, quietLogger())

	var seen []session.CompressProgress
	res, err := c.CompressImages(context.Background(), session.CompressionConfig{}, func(p session.CompressProgress) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Successful != 2 || res.SavedBytes != 10 {
		t.Errorf("result = %+v", res)
	}
	// Latest-wins delivery may skip intermediate snapshots but never the last.
	if len(seen) == 0 || seen[len(seen)-1].Current != 2 {
		t.Errorf("progress = %+v", seen)
	}
}

func TestAnalyzeImagesFailure(t *testing.T) {
	inv := &fakeInvoker{errs: map[string]error{CmdAnalyzeImages: errors.New("no valid images")}}
	c := NewClient(inv, quietLogger())

	_, err := c.AnalyzeImages(context.Background(), []string{"/x"}, nil)
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Command != CmdAnalyzeImages {
		t.Errorf("err = %v", err)
	}
}

func TestRunLatestWins(t *testing.T) {
	r := newRun[int, string]()
	for i := 1; i <= 5; i++ {
		r.offer(i)
	}
	r.finish("done", nil)

	var got []int
	for p := range r.Progress() {
		got = append(got, p)
	}
	if len(got) != 1 || got[0] != 5 {
		t.Errorf("progress = %v, want [5]", got)
	}
	res, err := r.Wait()
	if res != "done" || err != nil {
		t.Errorf("Wait() = %q, %v", res, err)
	}
	select {
	case <-r.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestRunFinishOnce(t *testing.T) {
	r := newRun[int, int]()
	r.finish(1, nil)
	r.finish(2, errors.New("late"))
	if res, err := r.Wait(); res != 1 || err != nil {
		t.Errorf("Wait() = %d, %v", res, err)
	}
}

func TestNewHTTPInvokerRejectsScheme(t *testing.T) {
	if _, err := NewHTTPInvoker("ftp://example.com", 0); err == nil {
		t.Error("expected error for ftp scheme")
	}
	inv, err := NewHTTPInvoker("https://example.com/", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := inv.streamURL(CmdCompressImages); got != "wss://example.com/api/commands/compress_images/stream" {
		t.Errorf("stream url = %s", got)
	}
	if got := inv.commandURL(CmdGetSystemInfo); got != "https://example.com/api/commands/get_system_info" {
		t.Errorf("command url = %s", got)
	}
}
