package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/history"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/metrics"
	"git.home.luguber.info/inful/docpages/internal/trigger"
)

// maxWebhookBody matches the forge payload cap (GitHub documents 25 MB).
const maxWebhookBody = 25 << 20

// Server exposes the webhook endpoint plus health, status and metrics.
type Server struct {
	cfg      config.DaemonConfig
	queue    *RunQueue
	store    *history.Store // nil disables run history in status
	registry *prom.Registry // nil disables /metrics
	httpSrv  *http.Server

	mu            sync.RWMutex
	gate          *trigger.Gate // swapped on config reload
	webhookSecret string        // swapped on config reload
}

// NewServer assembles the daemon HTTP server.
func NewServer(cfg config.DaemonConfig, gate *trigger.Gate, queue *RunQueue, store *history.Store, registry *prom.Registry) *Server {
	s := &Server{cfg: cfg, gate: gate, webhookSecret: cfg.WebhookSecret, queue: queue, store: store, registry: registry}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.WebhookPath, s.handleWebhook)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	if cfg.MetricsEnabled && registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(registry))
	}

	s.httpSrv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting HTTP server",
		slog.String("listen", s.cfg.Listen),
		slog.String("webhook_path", s.cfg.WebhookPath),
		slog.Bool("metrics", s.cfg.MetricsEnabled))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// SetGate swaps the branch gate (config reload).
func (s *Server) SetGate(gate *trigger.Gate) {
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
}

func (s *Server) currentGate() *trigger.Gate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gate
}

// SetWebhookSecret swaps the webhook signature secret (config reload).
func (s *Server) SetWebhookSecret(secret string) {
	s.mu.Lock()
	s.webhookSecret = secret
	s.mu.Unlock()
}

func (s *Server) currentWebhookSecret() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.webhookSecret
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if r.ContentLength > maxWebhookBody {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
		return
	}

	// Read one byte past the cap so a truncated payload is rejected outright
	// instead of failing signature verification with a misleading 401.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if len(body) > maxWebhookBody {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
		return
	}

	if !trigger.VerifySignature(s.currentWebhookSecret(), body, r.Header.Get(trigger.SignatureHeader)) {
		slog.Warn("Webhook signature verification failed", slog.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	ev, err := trigger.ParsePush(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if !s.currentGate().Admit(ev) {
		slog.Info("Webhook push ignored", logfields.Branch(ev.Branch), slog.Bool("deleted", ev.Deleted))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "branch": ev.Branch})
		return
	}

	req := &RunRequest{
		ID:     uuid.NewString(),
		Reason: ReasonWebhook,
		Commit: ev.Commit,
		Branch: ev.Branch,
	}
	if err := s.queue.Enqueue(req); err != nil {
		slog.Error("Failed to enqueue webhook run", logfields.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "queued",
		"request_id": req.ID,
		"branch":     ev.Branch,
		"commit":     ev.Commit,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the /status payload.
type statusResponse struct {
	QueueDepth int                 `json:"queue_depth"`
	Runs       []history.RunRecord `json:"runs,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{QueueDepth: s.queue.Depth()}
	if s.store != nil {
		runs, err := s.store.Recent(r.Context(), 20)
		if err != nil {
			slog.Error("Failed to load run history", logfields.Error(err))
		} else {
			resp.Runs = runs
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", logfields.Error(err))
	}
}
