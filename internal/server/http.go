package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/khan2a/agent-conversation/internal/audio"
	"github.com/khan2a/agent-conversation/internal/config"
	"github.com/khan2a/agent-conversation/internal/metrics"
	"github.com/khan2a/agent-conversation/internal/ncco"
	"github.com/khan2a/agent-conversation/internal/stream"
	"github.com/khan2a/agent-conversation/internal/transcode"
	"github.com/khan2a/agent-conversation/internal/webhook"
)

// Server exposes the HTTP and WebSocket surface of the relay: NCCO and
// callback endpoints, monitoring, and the two websocket session entry points.
type Server struct {
	server     *http.Server
	logger     *slog.Logger
	config     *config.Config
	metrics    *metrics.Metrics
	registry   *stream.Registry
	store      *webhook.Store
	transcoder *transcode.Transcoder
	upgrader   websocket.Upgrader
}

// New creates the server with all routes configured.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics,
	registry *stream.Registry, store *webhook.Store, transcoder *transcode.Transcoder) *Server {

	s := &Server{
		logger:     logger,
		config:     cfg,
		metrics:    m,
		registry:   registry,
		store:      store,
		transcoder: transcoder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Telephony media endpoints do not send browser origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port),
		Handler:      s.router(),
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: 0, // websocket sessions outlive any fixed write window
	}

	return s
}

// Handler returns the configured route handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.withMetrics)

		r.Get("/", s.handleHealth)
		r.HandleFunc("/callback", s.handleCallback)
		r.Get("/callbacks", s.handleCallbackSearch)
		r.Get("/ncco/talk", s.handleNCCOTalk)
		r.Get("/ncco/connect", s.handleNCCOConnect)
		r.Get("/sessions", s.handleSessions)
	})

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// WebSocket endpoints stay outside the metrics middleware: a hijacked
	// connection has no meaningful response status or duration.
	r.Get("/ws/audio", s.handleEchoSocket)
	r.Get("/ws/play/{filename}", s.handlePlaySocket)

	return r
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", slog.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server stopping")
	return s.server.Shutdown(ctx)
}

// withMetrics records request count and duration per route pattern.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		s.metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(ww.statusCode),
			time.Since(start).Seconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCallback receives call-event webhooks. Payloads are logged and
// stored; a malformed body is logged but still acknowledged, because the
// voice API retries on anything but success.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.logger.Error("Failed to read callback body", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !json.Valid(body) {
			s.logger.Error("Received malformed callback JSON", slog.Int("bytes", len(body)))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		entry := s.store.Add(r.Method, body)
		s.metrics.CallbacksReceived.Inc()
		s.logger.Info("Received callback",
			slog.String("entry_id", entry.ID),
			slog.String("payload", string(body)),
		)

	case http.MethodGet:
		s.store.Add(r.Method, nil)
		s.metrics.CallbacksReceived.Inc()
		s.logger.Info("Received GET callback", slog.String("query", r.URL.RawQuery))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCallbackSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	entries := s.store.Search(query)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) handleNCCOTalk(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ncco.Talk("This is a sample Vonage NCCO talk action."))
}

func (s *Server) handleNCCOConnect(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "endpoint query parameter is required",
		})
		return
	}

	eventURL := strings.TrimRight(s.config.Server.HostName, "/") + "/callback"
	actions, err := ncco.Connect(endpoint, eventURL)
	if err != nil {
		s.logger.Error("Unsupported connect endpoint", slog.String("endpoint", endpoint))
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("Generated connect NCCO",
		slog.String("endpoint", endpoint),
		slog.String("event_url", eventURL),
	)
	s.writeJSON(w, http.StatusOK, actions)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"active":        s.registry.ActiveCount(),
		"total_started": s.registry.TotalStarted(),
		"sessions":      s.registry.Snapshot(),
	})
}

// handleEchoSocket upgrades the connection and relays binary frames back to
// the peer until it disconnects.
func (s *Server) handleEchoSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := newEchoConn(ws, s.config.Server.GetWriteTimeout())
	session := stream.NewEchoSession(conn, s.logger)

	s.registry.Add(stream.SessionInfo{
		ID:         session.ID,
		Kind:       "echo",
		RemoteAddr: r.RemoteAddr,
		StartTime:  time.Now(),
	})
	s.metrics.ActiveSessions.Inc()
	s.metrics.SessionsStarted.WithLabelValues("echo").Inc()
	start := time.Now()

	defer func() {
		conn.Close(stream.CloseNormal, "")
		s.registry.Remove(session.ID)
		s.metrics.ActiveSessions.Dec()
		s.metrics.SessionsFinished.WithLabelValues("echo", "completed").Inc()
		s.metrics.SessionDuration.Observe(time.Since(start).Seconds())
		s.metrics.EchoFramesRelayed.Add(float64(session.FramesEchoed()))
		s.metrics.EchoBytesRelayed.Add(float64(session.BytesEchoed()))
		s.metrics.EchoTextsRejected.Add(float64(session.TextsRejected()))
	}()

	session.Run(r.Context())
}

// handlePlaySocket upgrades the connection and streams the requested audio
// resource at its wall-clock rate.
func (s *Server) handlePlaySocket(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := newPlaybackConn(ws, s.config.Server.GetWriteTimeout())
	session := stream.NewPlaybackSession(conn, filename, s.playbackConfig(), s.logger)

	s.registry.Add(stream.SessionInfo{
		ID:         session.ID,
		Kind:       "playback",
		Resource:   filename,
		RemoteAddr: r.RemoteAddr,
		StartTime:  time.Now(),
	})
	s.metrics.ActiveSessions.Inc()
	s.metrics.SessionsStarted.WithLabelValues("playback").Inc()
	start := time.Now()

	runErr := session.Run(r.Context())

	s.registry.Remove(session.ID)
	s.metrics.ActiveSessions.Dec()
	s.metrics.SessionsFinished.WithLabelValues("playback", playbackOutcome(runErr)).Inc()
	s.metrics.SessionDuration.Observe(time.Since(start).Seconds())
	s.metrics.BytesStreamed.Add(float64(session.BytesSent()))
	s.metrics.ChunksStreamed.Add(float64(session.ChunksSent()))

	var tErr *transcode.Error
	if session.Transcoded() || errors.As(runErr, &tErr) {
		s.metrics.TranscodeRequests.Inc()
		s.metrics.TranscodeDuration.Observe(session.TranscodeTime().Seconds())
		if tErr != nil {
			s.metrics.TranscodeFailures.Inc()
		}
	}
}

func (s *Server) playbackConfig() stream.PlaybackConfig {
	return stream.PlaybackConfig{
		AudioRoot: s.config.Audio.RootDir,
		Pacing: audio.PacingParams{
			ChunkDuration: s.config.Audio.GetChunkDuration(),
			MinDelay:      s.config.Audio.GetMinChunkDelay(),
			DefaultRate:   s.config.Audio.DefaultSampleRate,
		},
		Transcoder: s.transcoder,
	}
}

// playbackOutcome maps a session result to a metrics label.
func playbackOutcome(err error) string {
	var tErr *transcode.Error

	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, stream.ErrPathViolation),
		errors.Is(err, stream.ErrResourceNotFound),
		errors.Is(err, stream.ErrUnsupportedFormat):
		return "rejected"
	case errors.As(err, &tErr):
		return "transcode_failed"
	default:
		return "error"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}

// responseWriter captures the status code for metrics
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
