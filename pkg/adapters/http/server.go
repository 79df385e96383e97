// Package http exposes the orchestrator command API over HTTP with chi.
//
// Commands that execute a step wait up to the configured command wait for it to
// finish. An action step waiting for its interaction outlives that window: the
// request then returns 202 and the outcome can be followed on GET /events.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/wayfinder"
	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/domain"
	"github.com/aretw0/wayfinder/pkg/event"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultCommandWait is how long a request waits for its command.
const DefaultCommandWait = 2 * time.Second

var _ Engine = (*wayfinder.Orchestrator)(nil)

// Engine is the part of the orchestrator the server drives.
type Engine interface {
	State() domain.RunState
	Busy() bool
	Guides() []domain.Guide
	Descriptor() (domain.StepDescriptor, bool)
	Stats() domain.Metrics

	StartGuide(ctx context.Context, id string) (bool, error)
	NextStep(ctx context.Context) error
	PreviousStep(ctx context.Context) error
	JumpToStep(ctx context.Context, i int) error
	PauseGuide(ctx context.Context) error
	ResumeGuide(ctx context.Context) error
	SkipGuide(ctx context.Context) error
	CompleteGuide(ctx context.Context) error
	ResetGuide(ctx context.Context, id string) error
	ResetAll(ctx context.Context) error

	On(t domain.EventType, handler event.Handler) string
	Off(id string) bool
}

// Server serves the HTTP surface of one Engine.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	wait     time.Duration
	interact func(elementID, kind string) bool
	metrics  http.Handler
	logger   *slog.Logger
	version  string
}

// Option configures the Server.
type Option func(*Server)

// WithCommandWait bounds how long a request waits for its command.
func WithCommandWait(d time.Duration) Option {
	return func(s *Server) { s.wait = d }
}

// WithInteractor enables POST /interact, delivering simulated interactions to the host.
func WithInteractor(fn func(elementID, kind string) bool) Option {
	return func(s *Server) { s.interact = fn }
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewHandler creates the HTTP handler for engine. The returned stop function
// detaches the event stream from the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, func()) {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		wait:    DefaultCommandWait,
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger

	subID := engine.On(domain.EventWildcard, s.broadcast)
	stop := func() {
		engine.Off(subID)
		s.Streams.CloseAll()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/state", s.GetState)
	r.Get("/stats", s.GetStats)
	r.Get("/events", s.SubscribeEvents)

	r.Get("/guides", s.ListGuides)
	r.Post("/guides/{id}/start", s.StartGuide)
	r.Post("/guides/{id}/reset", s.ResetGuide)
	r.Post("/reset", s.command(engine.ResetAll))

	r.Post("/next", s.command(engine.NextStep))
	r.Post("/previous", s.command(engine.PreviousStep))
	r.Post("/jump/{index}", s.JumpToStep)
	r.Post("/pause", s.command(engine.PauseGuide))
	r.Post("/resume", s.command(engine.ResumeGuide))
	r.Post("/skip", s.command(engine.SkipGuide))
	r.Post("/complete", s.command(engine.CompleteGuide))

	if s.interact != nil {
		r.Post("/interact", s.Interact)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r), stop
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StateResponse is the body of GET /state and of successful commands.
type StateResponse struct {
	CurrentGuide    string                 `json:"currentGuide,omitempty"`
	CurrentStep     int                    `json:"currentStep"`
	IsActive        bool                   `json:"isActive"`
	IsPaused        bool                   `json:"isPaused"`
	Busy            bool                   `json:"busy"`
	CompletedGuides []string               `json:"completedGuides"`
	SkippedGuides   []string               `json:"skippedGuides"`
	Step            *domain.StepDescriptor `json:"step,omitempty"`
	// Started is set by POST /guides/{id}/start.
	Started *bool `json:"started,omitempty"`
	// Pending reports a command still running when the response was written.
	Pending bool `json:"pending,omitempty"`
}

// GuideSummary is one entry of GET /guides.
type GuideSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
	Status      string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) snapshot() StateResponse {
	st := s.Engine.State()
	resp := StateResponse{
		CurrentGuide:    st.CurrentGuideID,
		CurrentStep:     st.CurrentStepIndex,
		IsActive:        st.IsActive,
		IsPaused:        st.IsPaused,
		Busy:            s.Engine.Busy(),
		CompletedGuides: st.CompletedGuides.Slice(),
		SkippedGuides:   st.SkippedGuides.Slice(),
	}
	if d, ok := s.Engine.Descriptor(); ok {
		resp.Step = &d
	}
	return resp
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"app": "wayfinder-http", "version": s.version})
}

// GetState handles the GET /state request.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.snapshot())
}

// GetStats handles the GET /stats request.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.Engine.Stats())
}

// ListGuides handles the GET /guides request.
func (s *Server) ListGuides(w http.ResponseWriter, r *http.Request) {
	st := s.Engine.State()
	guides := s.Engine.Guides()
	out := make([]GuideSummary, 0, len(guides))
	for _, g := range guides {
		status := "available"
		switch {
		case st.IsActive && st.CurrentGuideID == g.ID && st.IsPaused:
			status = "paused"
		case st.IsActive && st.CurrentGuideID == g.ID:
			status = "active"
		case st.CompletedGuides.Has(g.ID):
			status = "completed"
		case st.SkippedGuides.Has(g.ID):
			status = "skipped"
		}
		out = append(out, GuideSummary{ID: g.ID, Name: g.Name, Description: g.Description, Steps: len(g.Steps), Status: status})
	}
	writeJSON(w, s.logger, http.StatusOK, out)
}

// StartGuide handles the POST /guides/{id}/start request.
func (s *Server) StartGuide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var started bool
	s.run(w, r, func(ctx context.Context) error {
		var err error
		started, err = s.Engine.StartGuide(ctx, id)
		return err
	}, func(resp *StateResponse) { resp.Started = &started })
}

// ResetGuide handles the POST /guides/{id}/reset request.
func (s *Server) ResetGuide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.run(w, r, func(ctx context.Context) error { return s.Engine.ResetGuide(ctx, id) }, nil)
}

// JumpToStep handles the POST /jump/{index} request.
func (s *Server) JumpToStep(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, s.logger, http.StatusBadRequest, errorResponse{Error: "step index must be an integer"})
		return
	}
	s.run(w, r, func(ctx context.Context) error { return s.Engine.JumpToStep(ctx, i) }, nil)
}

type interactRequest struct {
	ElementID string `json:"elementId"`
	Kind      string `json:"kind"`
}

// Interact handles the POST /interact request.
func (s *Server) Interact(w http.ResponseWriter, r *http.Request) {
	var body interactRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ElementID == "" {
		writeJSON(w, s.logger, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if body.Kind == "" {
		body.Kind = "click"
	}
	if !s.interact(body.ElementID, body.Kind) {
		writeJSON(w, s.logger, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("nothing is waiting for %s on %q", body.Kind, body.ElementID)})
		return
	}
	writeJSON(w, s.logger, http.StatusAccepted, map[string]bool{"delivered": true})
}

func (s *Server) command(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, fn, nil)
	}
}

// run executes fn detached from the request, so a client disconnect never
// interrupts a command, and waits for it up to the command wait.
func (s *Server) run(w http.ResponseWriter, r *http.Request, fn func(context.Context) error, decorate func(*StateResponse)) {
	done := make(chan error, 1)
	ctx := context.WithoutCancel(r.Context())
	go func() { done <- fn(ctx) }()

	timer := time.NewTimer(s.wait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := s.snapshot()
		if decorate != nil {
			decorate(&resp)
		}
		writeJSON(w, s.logger, http.StatusOK, resp)
	case <-timer.C:
		resp := s.snapshot()
		resp.Pending = true
		writeJSON(w, s.logger, http.StatusAccepted, resp)
	}
}

// StatusFor maps an engine error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrPrecondition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGuideNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("command failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("command rejected", "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, s.logger, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) broadcast(ev domain.Event) {
	if ev.Type == domain.EventTrackerAutosave {
		return
	}
	payload, err := json.Marshal(streamEvent{Event: ev, Error: ev.ErrorString()})
	if err != nil {
		s.logger.Debug("event encode failed", "type", ev.Type, "err", err)
		return
	}
	s.Streams.Broadcast(string(ev.Type), string(payload))
}

type streamEvent struct {
	domain.Event
	Error string `json:"error,omitempty"`
}

type streamMessage struct {
	eventType string
	data      string
}

// StreamManager fans bus events out to SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan streamMessage]map[string]struct{} // channel -> type filter (empty = all)
	logger      *slog.Logger
}

// NewStreamManager creates a manager with no clients.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan streamMessage]map[string]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a connection interested in types (all when empty).
func (sm *StreamManager) Subscribe(types ...string) (<-chan streamMessage, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan streamMessage, 16)
	filter := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			filter[t] = struct{}{}
		}
	}
	sm.subscribers[ch] = filter

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast sends an event to every connected client.
func (sm *StreamManager) Broadcast(eventType, data string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	msg := streamMessage{eventType: eventType, data: data}
	for ch, filter := range sm.subscribers {
		if len(filter) > 0 {
			if _, ok := filter[eventType]; !ok {
				continue
			}
		}
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: client buffer full, dropping event", "type", eventType)
		}
	}
}

// CloseAll ends every stream.
func (sm *StreamManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers {
		close(ch)
		delete(sm.subscribers, ch)
	}
}

// Count returns the number of open streams.
func (sm *StreamManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// SubscribeEvents handles the GET /events request (SSE). The optional "types"
// query parameter is a comma-separated event type filter.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, s.logger, http.StatusInternalServerError, errorResponse{Error: "streaming not supported"})
		return
	}

	var types []string
	if q := r.URL.Query().Get("types"); q != "" {
		types = strings.Split(q, ",")
	}
	ch, cancel := s.Streams.Subscribe(types...)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.eventType, msg.data)
			flusher.Flush()
		}
	}
}
