package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/khan2a/agent-conversation/internal/audio"
	"github.com/khan2a/agent-conversation/internal/config"
	"github.com/khan2a/agent-conversation/internal/metrics"
	"github.com/khan2a/agent-conversation/internal/ncco"
	"github.com/khan2a/agent-conversation/internal/stream"
	"github.com/khan2a/agent-conversation/internal/transcode"
	"github.com/khan2a/agent-conversation/internal/webhook"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	root := t.TempDir()

	// A 160-sample mono file at 8 kHz: 320 bytes of PCM after the header.
	wav, err := audio.EncodeWAV(make([]int16, 160), 8000)
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "tone.wav"), wav, 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("not audio"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         8000,
			BindAddress:  "127.0.0.1",
			HostName:     "https://relay.example.com",
			ReadTimeout:  5,
			WriteTimeout: 5,
		},
		Audio: config.AudioConfig{
			RootDir:           root,
			DefaultSampleRate: 8000,
			ChunkDuration:     0.002,
			MinChunkDelay:     0.001,
		},
		Transcode: config.TranscodeConfig{FFmpegPath: "ffmpeg", Timeout: 5},
		Webhook:   config.WebhookConfig{MaxStored: 100},
		Logging:   config.LoggingConfig{Level: "error", Format: "text"},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transcoder := transcode.New(cfg.Transcode.FFmpegPath, cfg.Transcode.GetTimeoutDuration(), "", logger)
	s := New(cfg, logger, metrics.NewMetrics(), stream.NewRegistry(logger),
		webhook.NewStore(cfg.Webhook.MaxStored), transcoder)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, path), nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Status field = %q, want ok", body["status"])
	}
}

func TestCallbackLifecycle(t *testing.T) {
	_, ts := newTestServer(t)

	// A valid event payload is acknowledged and stored.
	resp, err := http.Post(ts.URL+"/callback", "application/json",
		strings.NewReader(`{"status":"answered","uuid":"abc-123"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("POST status = %d, want 204", resp.StatusCode)
	}

	// A malformed payload is still acknowledged but not stored.
	resp, err = http.Post(ts.URL+"/callback", "application/json",
		strings.NewReader(`{"status": broken`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Malformed POST status = %d, want 204", resp.StatusCode)
	}

	// GET callbacks are recorded without a payload.
	resp, err = http.Get(ts.URL + "/callback?status=ringing")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("GET status = %d, want 204", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/callbacks?q=answered")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		Count   int             `json:"count"`
		Entries []webhook.Entry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode search result: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("Search matched %d entries, want 1", result.Count)
	}
	if !strings.Contains(string(result.Entries[0].Payload), "abc-123") {
		t.Errorf("Unexpected entry payload: %s", result.Entries[0].Payload)
	}
}

func TestNCCOTalk(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ncco/talk")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var actions []ncco.Action
	if err := json.NewDecoder(resp.Body).Decode(&actions); err != nil {
		t.Fatalf("Failed to decode NCCO: %v", err)
	}
	if len(actions) != 1 || actions[0].Action != "talk" || actions[0].Text == "" {
		t.Errorf("Unexpected NCCO: %+v", actions)
	}
}

func TestNCCOConnect(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ncco/connect?endpoint=wss://media.example.com/ws/audio")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var actions []ncco.Action
	if err := json.NewDecoder(resp.Body).Decode(&actions); err != nil {
		t.Fatalf("Failed to decode NCCO: %v", err)
	}
	if len(actions) != 1 || len(actions[0].Endpoint) != 1 {
		t.Fatalf("Unexpected NCCO: %+v", actions)
	}
	if actions[0].Endpoint[0].Type != "websocket" {
		t.Errorf("Endpoint type = %q, want websocket", actions[0].Endpoint[0].Type)
	}
	if len(actions[0].EventURL) != 1 || actions[0].EventURL[0] != "https://relay.example.com/callback" {
		t.Errorf("Unexpected eventUrl: %v", actions[0].EventURL)
	}
}

func TestNCCOConnectRejectsBadInput(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/ncco/connect", "/ncco/connect?endpoint=not-an-endpoint"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestSessionsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/sessions")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Active       int `json:"active"`
		TotalStarted int `json:"total_started"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Active != 0 || body.TotalStarted != 0 {
		t.Errorf("Fresh server reports active=%d total=%d", body.Active, body.TotalStarted)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "relay_") {
		t.Error("Metrics exposition should contain relay_ series")
	}
}

func TestEchoSocket(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "/ws/audio")

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if messageType != websocket.BinaryMessage || !bytes.Equal(data, payload) {
		t.Errorf("Echo mismatch: type=%d data=%v", messageType, data)
	}

	// Text frames get a rejection message and the session stays up.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	messageType, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("Expected text rejection, got type %d", messageType)
	}
	if string(data) != "Error: Only binary audio data is supported." {
		t.Errorf("Unexpected rejection message: %q", data)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, data, err = conn.ReadMessage(); err != nil || !bytes.Equal(data, payload) {
		t.Errorf("Echo after rejection failed: %v %v", err, data)
	}
}

func TestPlaySocketStreamsFile(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, "/ws/play/tone.wav")

	var total int
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				t.Fatalf("Read failed: %v", err)
			}
			if closeErr.Code != websocket.CloseNormalClosure {
				t.Errorf("Close code = %d, want 1000", closeErr.Code)
			}
			break
		}
		if messageType != websocket.BinaryMessage {
			t.Fatalf("Unexpected message type %d", messageType)
		}
		total += len(data)
	}

	// The 44-byte header is skipped; only PCM data is relayed.
	if total != 320 {
		t.Errorf("Streamed %d bytes, want 320", total)
	}
}

func TestPlaySocketRejections(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"missing file", "/ws/play/absent.wav", stream.CloseNotFound},
		{"unsupported format", "/ws/play/notes.txt", stream.CloseUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t)
			conn := dialWS(t, ts, tt.path)

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err := conn.ReadMessage()
			if err == nil {
				t.Fatal("Expected the session to close without data")
			}

			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				t.Fatalf("Expected a close frame, got %v", err)
			}
			if closeErr.Code != tt.wantCode {
				t.Errorf("Close code = %d, want %d", closeErr.Code, tt.wantCode)
			}
		})
	}
}
