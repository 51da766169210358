package backend

import (
	"context"
	"encoding/json"
	"fmt"
)

// Invoker performs one call across the backend boundary. args is encoded as
// JSON and the response is decoded into out, which may be nil.
//
// Stream behaves like Invoke for commands that report progress; onEvent
// receives each raw progress payload in emission order and may be called
// from another goroutine.
type Invoker interface {
	Invoke(ctx context.Context, command string, args, out any) error
	Stream(ctx context.Context, command string, args, out any, onEvent func(json.RawMessage)) error
}

// OperationError wraps any failure of a backend command.
type OperationError struct {
	Command string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("backend command %s failed: %v", e.Command, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func wrap(command string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Command: command, Err: err}
}
