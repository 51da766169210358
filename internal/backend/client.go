package backend

import (
	"context"
	"encoding/json"

	"image-compressor-go/internal/session"

	"github.com/sirupsen/logrus"
)

// Client exposes the backend commands as typed methods.
type Client struct {
	inv Invoker
	log *logrus.Logger
}

// NewClient returns a Client calling through inv.
func NewClient(inv Invoker, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{inv: inv, log: log}
}

func (c *Client) call(ctx context.Context, command string, args, out any) error {
	c.log.WithField("operation", command).Debug("Invoking backend command")
	if err := c.inv.Invoke(ctx, command, args, out); err != nil {
		return wrap(command, err)
	}
	return nil
}

// SelectFolder opens a folder picker. ok is false when nothing was selected.
func (c *Client) SelectFolder(ctx context.Context) (folder string, ok bool, err error) {
	var out *string
	if err := c.call(ctx, CmdSelectFolder, nil, &out); err != nil {
		return "", false, err
	}
	if out == nil {
		return "", false, nil
	}
	return *out, true, nil
}

// SelectFiles opens a multi-file picker restricted to image files.
func (c *Client) SelectFiles(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.call(ctx, CmdSelectFiles, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartAnalysis begins analysing paths and returns the in-flight run.
func (c *Client) StartAnalysis(ctx context.Context, args AnalyzeArgs) *Run[session.AnalysisProgress, []session.ImageRecord] {
	return startRun[session.AnalysisProgress, []session.ImageRecord](ctx, c, CmdAnalyzeImages, args)
}

// AnalyzeImages analyses paths, forwarding progress to onProgress on the
// calling goroutine.
func (c *Client) AnalyzeImages(ctx context.Context, paths []string, onProgress func(session.AnalysisProgress)) ([]session.ImageRecord, error) {
	return c.StartAnalysis(ctx, AnalyzeArgs{Paths: paths}).drain(onProgress)
}

// StartCompression begins a compression run. Cancelling ctx cancels the run.
func (c *Client) StartCompression(ctx context.Context, cfg session.CompressionConfig) *Run[session.CompressProgress, session.CompressResult] {
	return startRun[session.CompressProgress, session.CompressResult](ctx, c, CmdCompressImages, CompressArgs{Config: cfg})
}

// CompressImages runs a compression batch, forwarding progress to
// onProgress on the calling goroutine.
func (c *Client) CompressImages(ctx context.Context, cfg session.CompressionConfig, onProgress func(session.CompressProgress)) (session.CompressResult, error) {
	return c.StartCompression(ctx, cfg).drain(onProgress)
}

// OpenInExplorer reveals path in the system file manager.
func (c *Client) OpenInExplorer(ctx context.Context, path string) error {
	return c.call(ctx, CmdOpenInExplorer, PathArgs{Path: path}, nil)
}

// GetDefaultOutputFolder returns the platform default output folder.
func (c *Client) GetDefaultOutputFolder(ctx context.Context) (string, error) {
	var out string
	if err := c.call(ctx, CmdGetDefaultOutputFolder, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// ValidatePaths checks that each path exists and is, or contains, an image.
func (c *Client) ValidatePaths(ctx context.Context, paths []string) ([]session.PathValidation, error) {
	var out []session.PathValidation
	if err := c.call(ctx, CmdValidatePaths, PathsArgs{Paths: paths}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EstimateSavings analyses paths and totals the estimated savings.
func (c *Client) EstimateSavings(ctx context.Context, args EstimateArgs) (SavingsEstimate, error) {
	var out SavingsEstimate
	err := c.call(ctx, CmdEstimateSavings, args, &out)
	return out, err
}

// GetDefaultConfig returns the backend's default compression config.
func (c *Client) GetDefaultConfig(ctx context.Context) (session.CompressionConfig, error) {
	var out session.CompressionConfig
	err := c.call(ctx, CmdGetDefaultConfig, nil, &out)
	return out, err
}

// GetSystemInfo returns CPU information used to pick a thread count.
func (c *Client) GetSystemInfo(ctx context.Context) (SystemInfo, error) {
	var out SystemInfo
	err := c.call(ctx, CmdGetSystemInfo, nil, &out)
	return out, err
}

// EnsureDirectoryExists creates path if needed.
func (c *Client) EnsureDirectoryExists(ctx context.Context, path string) error {
	return c.call(ctx, CmdEnsureDirectoryExists, PathArgs{Path: path}, nil)
}

// CheckPathExists reports whether path exists and what it is.
func (c *Client) CheckPathExists(ctx context.Context, path string) (PathInfo, error) {
	var out PathInfo
	err := c.call(ctx, CmdCheckPathExists, PathArgs{Path: path}, &out)
	return out, err
}

func startRun[P, R any](ctx context.Context, c *Client, command string, args any) *Run[P, R] {
	run := newRun[P, R]()
	log := c.log.WithField("operation", command)

	go func() {
		var result R
		err := c.inv.Stream(ctx, command, args, &result, func(raw json.RawMessage) {
			var p P
			if err := json.Unmarshal(raw, &p); err != nil {
				log.WithError(err).Warn("Dropping undecodable progress event")
				return
			}
			run.offer(p)
		})
		if err != nil {
			run.finish(result, wrap(command, err))
			return
		}
		run.finish(result, nil)
	}()

	return run
}

// Ensure Client satisfies the session orchestration interfaces.
var (
	_ session.Analyzer   = (*Client)(nil)
	_ session.Compressor = (*Client)(nil)
)
