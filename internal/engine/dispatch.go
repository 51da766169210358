package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"image-compressor-go/internal/backend"
	"image-compressor-go/internal/session"
)

// ErrUnknownCommand is returned by Dispatch for names it does not serve.
var ErrUnknownCommand = errors.New("unknown command")

// Dispatch runs command with its JSON-encoded args and returns the value to
// encode as the response. Streaming commands pass each progress snapshot to
// emit, which may be nil.
func (e *Engine) Dispatch(ctx context.Context, command string, raw json.RawMessage, emit func(any)) (any, error) {
	if emit == nil {
		emit = func(any) {}
	}

	switch command {
	case backend.CmdSelectFolder:
		return e.SelectFolder()

	case backend.CmdSelectFiles:
		return e.SelectFiles()

	case backend.CmdAnalyzeImages:
		var args backend.AnalyzeArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return e.AnalyzeImages(ctx, args, func(p session.AnalysisProgress) { emit(p) })

	case backend.CmdCompressImages:
		var args backend.CompressArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return e.CompressImages(ctx, args.Config, func(p session.CompressProgress) { emit(p) })

	case backend.CmdOpenInExplorer:
		var args backend.PathArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return nil, e.OpenInExplorer(args.Path)

	case backend.CmdGetDefaultOutputFolder:
		return DefaultOutputFolder()

	case backend.CmdValidatePaths:
		var args backend.PathsArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return e.ValidatePaths(args.Paths), nil

	case backend.CmdEstimateSavings:
		var args backend.EstimateArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return e.EstimateSavings(args)

	case backend.CmdGetDefaultConfig:
		return DefaultConfig(), nil

	case backend.CmdGetSystemInfo:
		return SystemInfo(), nil

	case backend.CmdEnsureDirectoryExists:
		var args backend.PathArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return nil, EnsureDirectoryExists(args.Path)

	case backend.CmdCheckPathExists:
		var args backend.PathArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return CheckPathExists(args.Path), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// LocalInvoker serves backend commands from an in-process Engine. Values
// still cross a JSON boundary so callers see the same shapes as over HTTP.
type LocalInvoker struct {
	engine *Engine
}

// NewLocalInvoker returns an Invoker backed by e.
func NewLocalInvoker(e *Engine) *LocalInvoker {
	return &LocalInvoker{engine: e}
}

func (l *LocalInvoker) Invoke(ctx context.Context, command string, args, out any) error {
	return l.Stream(ctx, command, args, out, nil)
}

func (l *LocalInvoker) Stream(ctx context.Context, command string, args, out any, onEvent func(json.RawMessage)) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}

	var emit func(any)
	if onEvent != nil {
		emit = func(p any) {
			data, err := json.Marshal(p)
			if err != nil {
				return
			}
			onEvent(data)
		}
	}

	res, err := l.engine.Dispatch(ctx, command, raw, emit)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

var _ backend.Invoker = (*LocalInvoker)(nil)
