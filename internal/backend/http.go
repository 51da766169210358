package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope is the JSON body every command endpoint answers with.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StreamMessage is one frame of a streamed command.
type StreamMessage struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Stream frame types.
const (
	StreamProgress = "progress"
	StreamResult   = "result"
	StreamError    = "error"
)

// HTTPInvoker calls a backend served by internal/web.
type HTTPInvoker struct {
	baseURL *url.URL
	client  *http.Client
	dialer  *websocket.Dialer
}

// NewHTTPInvoker returns an invoker for the server at baseURL.
func NewHTTPInvoker(baseURL string, timeout time.Duration) (*HTTPInvoker, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}
	return &HTTPInvoker{
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

func (h *HTTPInvoker) commandURL(command string) string {
	return h.baseURL.String() + "/api/commands/" + url.PathEscape(command)
}

func (h *HTTPInvoker) streamURL(command string) string {
	u := *h.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String() + "/api/commands/" + url.PathEscape(command) + "/stream"
}

// Invoke posts args to the command endpoint.
func (h *HTTPInvoker) Invoke(ctx context.Context, command string, args, out any) error {
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.commandURL(command), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return errors.New(env.Error)
	}
	return decodeInto(env.Data, out)
}

// Stream opens a websocket for the command, sends args and reads frames
// until a result or error frame arrives. Cancelling ctx closes the socket,
// which cancels the run on the server.
func (h *HTTPInvoker) Stream(ctx context.Context, command string, args, out any, onEvent func(json.RawMessage)) error {
	conn, _, err := h.dialer.DialContext(ctx, h.streamURL(command), nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "cancelled"),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	if err := conn.WriteJSON(args); err != nil {
		return fmt.Errorf("send args: %w", err)
	}

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read stream: %w", err)
		}
		switch msg.Type {
		case StreamProgress:
			if onEvent != nil {
				onEvent(msg.Data)
			}
		case StreamResult:
			return decodeInto(msg.Data, out)
		case StreamError:
			return errors.New(msg.Error)
		default:
			return fmt.Errorf("unexpected stream frame %q", msg.Type)
		}
	}
}

func decodeInto(data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
