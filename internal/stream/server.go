// Package stream serves simulation frames to an external renderer over
// HTTP and WebSocket, and exposes the playback controls as a small REST API.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/litescript/ls-orrery/internal/astro"
	"github.com/litescript/ls-orrery/internal/logging"
	"github.com/litescript/ls-orrery/internal/playback"
	"github.com/litescript/ls-orrery/internal/state"
	"github.com/litescript/ls-orrery/internal/version"
)

// Axis conventions a frame can be encoded in.
const (
	AxesYUp      = "y-up"
	AxesEcliptic = "ecliptic"
)

// Config holds server settings.
type Config struct {
	FrameInterval time.Duration
	WriteTimeout  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FrameInterval: 50 * time.Millisecond,
		WriteTimeout:  5 * time.Second,
	}
}

// Server bridges a state.Manager to HTTP clients.
type Server struct {
	mgr      *state.Manager
	cfg      Config
	logger   *log.Logger
	router   chi.Router
	upgrader websocket.Upgrader

	// poll tracks time skips for /api/frame callers that send no ?since.
	poll *state.Cursor
}

// NewServer builds the router. A nil logger discards output.
func NewServer(mgr *state.Manager, cfg Config, logger *log.Logger) *Server {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultConfig().FrameInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		mgr:    mgr,
		cfg:    cfg,
		logger: logger,
		poll:   mgr.NewCursor(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/frame", s.handleFrame)
		r.Get("/events", s.handleEvents)
		r.Get("/bodies/{name}", s.handleBody)
		r.Post("/speed", s.handleSpeed)
		r.Post("/time", s.handleTime)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/toggle", s.handleToggle)
	})
	r.Get("/ws", s.handleWS)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http", "url", "http://"+displayAddr(addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

// FrameMessage wraps a frame with the axis convention it is encoded in.
type FrameMessage struct {
	Type  string      `json:"type"`
	Axes  string      `json:"axes"`
	Frame state.Frame `json:"frame"`
}

// EncodeFrame returns f in the requested axis convention. For AxesYUp
// every vector is swapped to (x, z, -y); the manager's frame is untouched.
func EncodeFrame(f state.Frame, axes string) FrameMessage {
	axes = normalizeAxes(axes)
	if axes == AxesYUp {
		bodies := make([]state.BodyState, len(f.Bodies))
		for i, b := range f.Bodies {
			b.Position = astro.ToYUp(b.Position)
			b.Velocity = astro.ToYUp(b.Velocity)
			if b.HasOrientation {
				b.Pole = astro.ToYUp(b.Pole)
			}
			if b.SunDirection != nil {
				d := astro.ToYUp(*b.SunDirection)
				b.SunDirection = &d
			}
			bodies[i] = b
		}
		f.Bodies = bodies
	}
	return FrameMessage{Type: "frame", Axes: axes, Frame: f}
}

// normalizeAxes defaults anything but AxesEcliptic to AxesYUp.
func normalizeAxes(axes string) string {
	if axes == AxesEcliptic {
		return AxesEcliptic
	}
	return AxesYUp
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Ready   bool   `json:"ready"`
	Bodies  int    `json:"bodies"`
	Served  uint64 `json:"framesServed"`
	Skipped uint64 `json:"framesSkipped"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	served, skipped := s.mgr.FrameStats()
	resp := healthResponse{
		Status:  "ok",
		Version: version.Version,
		Ready:   s.mgr.Ready(),
		Bodies:  len(s.mgr.BodyNames()),
		Served:  served,
		Skipped: skipped,
	}
	if !resp.Ready {
		resp.Status = "loading"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFrame serves one frame. A client passing ?since=<skipCount from
// its previous frame> gets timeSkipped relative to that count; without it
// the server's shared poll cursor is used.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	cur := s.poll
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, badRequest(fmt.Errorf("since must be a skip count, got %q", v)))
			return
		}
		cur = state.NewCursorAt(since)
	}
	f, err := s.mgr.FrameNowFor(cur)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EncodeFrame(f, r.URL.Query().Get("axes")))
}

func (s *Server) handleBody(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.mgr.Body(name); err != nil {
		writeError(w, err)
		return
	}
	f, err := s.mgr.FrameNowFor(nil)
	if err != nil {
		writeError(w, err)
		return
	}
	msg := EncodeFrame(f, r.URL.Query().Get("axes"))
	b, _ := msg.Frame.Body(name)
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := 20
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, badRequest(fmt.Errorf("n must be a positive integer, got %q", v)))
			return
		}
		n = parsed
	}
	events := s.mgr.RecentEvents(n)
	if events == nil {
		events = []state.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ControlRequest is the body accepted by the control endpoints and the
// WebSocket control channel.
type ControlRequest struct {
	Action     string   `json:"action,omitempty"`
	Multiplier *float64 `json:"multiplier,omitempty"`
	Slider     *float64 `json:"slider,omitempty"`
	EpochMs    *float64 `json:"epochMs,omitempty"`
	RFC3339    string   `json:"rfc3339,omitempty"`
}

// ControlResponse reports playback state after a control request.
type ControlResponse struct {
	SimulatedTimeMs float64 `json:"simulatedTimeMs"`
	Speed           float64 `json:"speed"`
	SpeedLabel      string  `json:"speedLabel"`
	Slider          float64 `json:"slider"`
	Paused          bool    `json:"paused"`
}

func (s *Server) controlState() ControlResponse {
	snap := s.mgr.Clock().Snapshot()
	return ControlResponse{
		SimulatedTimeMs: snap.SimMs,
		Speed:           snap.Speed,
		SpeedLabel:      playback.Label(snap.Speed),
		Slider:          s.mgr.Slider(),
		Paused:          snap.Paused,
	}
}

// apply executes one control request against the manager.
func (s *Server) apply(req ControlRequest) error {
	switch req.Action {
	case "speed":
		switch {
		case req.Multiplier != nil:
			_, err := s.mgr.SetPlaybackSpeed(*req.Multiplier)
			return err
		case req.Slider != nil:
			_, err := s.mgr.SetPlaybackSlider(*req.Slider)
			return err
		default:
			return badRequest(errors.New("speed needs multiplier or slider"))
		}
	case "time":
		switch {
		case req.EpochMs != nil:
			return s.mgr.SetTimeAbsolute(*req.EpochMs)
		case req.RFC3339 != "":
			t, err := time.Parse(time.RFC3339, req.RFC3339)
			if err != nil {
				return badRequest(fmt.Errorf("rfc3339: %w", err))
			}
			return s.mgr.SetTime(t)
		default:
			return badRequest(errors.New("time needs epochMs or rfc3339"))
		}
	case "pause":
		s.mgr.Pause()
	case "resume":
		s.mgr.Resume()
	case "toggle":
		s.mgr.TogglePause()
	default:
		return badRequest(fmt.Errorf("unknown action %q", req.Action))
	}
	return nil
}

func (s *Server) control(action string, decode bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ControlRequest
		if decode {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, badRequest(fmt.Errorf("decode body: %w", err)))
				return
			}
		}
		req.Action = action
		if err := s.apply(req); err != nil {
			writeError(w, err)
			return
		}
		s.logger.Info("control", "action", action, "speed", s.mgr.SpeedLabel(), "paused", s.mgr.Paused())
		writeJSON(w, http.StatusOK, s.controlState())
	}
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	s.control("speed", true)(w, r)
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	s.control("time", true)(w, r)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.control("pause", false)(w, r)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.control("resume", false)(w, r)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.control("toggle", false)(w, r)
}

type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, playback.ErrInvalidSpeed),
		errors.Is(err, state.ErrInvalidTime):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrUnknownBody):
		return http.StatusNotFound
	case errors.Is(err, state.ErrClockNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
