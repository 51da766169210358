// Package web serves the engine's commands over HTTP so a remote client
// can drive a compression backend through backend.HTTPInvoker.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"image-compressor-go/internal/backend"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/engine"
	"image-compressor-go/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Dispatcher executes one backend command.
type Dispatcher interface {
	Dispatch(ctx context.Context, command string, args json.RawMessage, emit func(any)) (any, error)
}

type Server struct {
	cfg        config.ServerConfig
	log        *logrus.Logger
	dispatcher Dispatcher
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	runMutex sync.RWMutex
	runs     map[string]RunInfo
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RunInfo describes a streamed command in flight.
type RunInfo struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg config.ServerConfig, d Dispatcher, log *logrus.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		log:        log,
		dispatcher: d,
		router:     mux.NewRouter(),
		wsClients:  make(map[*websocket.Conn]bool),
		runs:       make(map[string]RunInfo),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/commands/{name}", s.handleCommand).Methods("POST")
	api.HandleFunc("/commands/{name}/stream", s.handleStream).Methods("GET")

	// Run events for observers
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs := s.activeRuns()
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running": len(runs) > 0,
			"runs":    runs,
		},
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	log := logger.WithOperation(s.log, name)
	log.Debug("Command received")

	result, err := s.dispatcher.Dispatch(r.Context(), name, body, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrUnknownCommand) {
			status = http.StatusNotFound
		}
		log.WithError(err).Warn("Command failed")
		s.writeError(w, err.Error(), status)
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    result,
	})
}

// handleStream runs one command over a websocket. The first client frame
// carries the arguments; closing the socket cancels the run.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	_, args, err := conn.ReadMessage()
	if err != nil {
		s.log.WithError(err).Debug("Stream closed before arguments arrived")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Any read error, including a close frame, cancels the run.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	run := s.beginRun(name)
	defer s.endRun(run.ID)
	log := logger.WithRun(s.log, name, run.ID)
	log.Info("Run started")
	s.broadcastWSMessage("run_started", run)

	emit := func(p any) {
		data, err := json.Marshal(p)
		if err != nil {
			return
		}
		if err := conn.WriteJSON(backend.StreamMessage{Type: backend.StreamProgress, Data: data}); err != nil {
			log.WithError(err).Debug("Failed to write progress frame")
		}
		s.broadcastWSMessage("run_progress", map[string]interface{}{
			"id":       run.ID,
			"progress": p,
		})
	}

	result, err := s.dispatcher.Dispatch(ctx, name, args, emit)
	if err != nil {
		log.WithError(err).Warn("Run failed")
		_ = conn.WriteJSON(backend.StreamMessage{Type: backend.StreamError, Error: err.Error()})
		s.broadcastWSMessage("run_error", map[string]interface{}{
			"id":    run.ID,
			"error": err.Error(),
		})
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		_ = conn.WriteJSON(backend.StreamMessage{Type: backend.StreamError, Error: err.Error()})
		return
	}
	if err := conn.WriteJSON(backend.StreamMessage{Type: backend.StreamResult, Data: data}); err != nil {
		log.WithError(err).Debug("Failed to write result frame")
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	log.Info("Run completed")
	s.broadcastWSMessage("run_completed", map[string]interface{}{
		"id":     run.ID,
		"result": result,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (s *Server) beginRun(command string) RunInfo {
	run := RunInfo{ID: uuid.NewString(), Command: command, StartedAt: time.Now()}
	s.runMutex.Lock()
	s.runs[run.ID] = run
	s.runMutex.Unlock()
	return run
}

func (s *Server) endRun(id string) {
	s.runMutex.Lock()
	delete(s.runs, id)
	s.runMutex.Unlock()
}

func (s *Server) activeRuns() []RunInfo {
	s.runMutex.RLock()
	defer s.runMutex.RUnlock()
	runs := make([]RunInfo, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs
}

// broadcastWSMessage writes to every observer. Writes are serialised
// because several runs may broadcast at once.
func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
