package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	xerrors "github.com/StacksTasker/x402-stacks-agent-console/internal/errors"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/marketplace"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/relay"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/stacks"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/wallet"
	"github.com/StacksTasker/x402-stacks-agent-console/pkg/logger"
)

// PushChannel is what the control surface needs from the broadcast hub.
type PushChannel interface {
	HandleWS(w http.ResponseWriter, r *http.Request)
	Broadcast(msg relay.Message) int
	ClientCount() int
	QueryState(ctx context.Context) (json.RawMessage, error)
}

// WatchKicker triggers an immediate watched-task poll cycle.
type WatchKicker interface {
	KickWatched()
}

// Config wires the control surface's collaborators.
type Config struct {
	Address string
	Hub     PushChannel
	State   *relay.State
	Poller  WatchKicker
	Wallets *wallet.Set
}

// Server exposes the relay's control-surface HTTP endpoints plus the
// push-channel upgrade route.
type Server struct {
	cfg Config
	log *slog.Logger
}

// NewServer builds a control-surface server.
func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg, log: logger.Named("api")}
}

// Handler returns the route table. Split out from Start so tests can drive
// handlers through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.cfg.Hub.HandleWS)
	mux.HandleFunc("GET /api/wallet-files", s.handleWalletFiles)
	mux.HandleFunc("GET /api/convert-address", s.handleConvertAddress)
	mux.HandleFunc("POST /api/push-task", s.handlePushTask)
	mux.HandleFunc("GET /api/env-keys", s.handleEnvKeys)
	mux.HandleFunc("POST /api/payment-tx", s.handleStorePaymentTx)
	mux.HandleFunc("GET /api/payment-tx/{taskId}", s.handleGetPaymentTx)
	mux.HandleFunc("POST /api/watch-task", s.handleWatchTask)
	mux.HandleFunc("POST /api/trigger-poll", s.handleTriggerPoll)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("GET /api/browser-state", s.handleBrowserState)
	return mux
}

// Start serves HTTP until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleWalletFiles(w http.ResponseWriter, _ *http.Request) {
	files := s.cfg.Wallets.Files
	if files == nil {
		files = []string{}
	}
	wallets := s.cfg.Wallets.Wallets
	if wallets == nil {
		wallets = []wallet.Wallet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files":   files,
		"wallets": wallets,
	})
}

func (s *Server) handleConvertAddress(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	network := strings.TrimSpace(r.URL.Query().Get("network"))
	if address == "" || network == "" {
		writeError(w, http.StatusBadRequest, "address and network are required")
		return
	}

	converted, err := stacks.ConvertAddress(address, stacks.Network(network))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": converted})
}

func (s *Server) handlePushTask(w http.ResponseWriter, r *http.Request) {
	body, err := decodePushBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "no tasks in request")
		return
	}

	clients := s.cfg.Hub.Broadcast(relay.NewMessage(relay.TypeNewTasks, map[string]any{"tasks": body}))
	s.log.Info("tasks pushed", slog.Int("tasks", len(body)), slog.Int("clients", clients))
	writeJSON(w, http.StatusOK, map[string]any{"pushed": len(body), "clients": clients})
}

// decodePushBody accepts either {tasks:[...]} or a single task object.
func decodePushBody(r *http.Request) ([]marketplace.Task, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid request body")
	}

	var batch struct {
		Tasks []marketplace.Task `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &batch); err == nil && len(batch.Tasks) > 0 {
		return batch.Tasks, nil
	}

	var single marketplace.Task
	if err := json.Unmarshal(raw, &single); err == nil && single.ID != "" {
		return []marketplace.Task{single}, nil
	}
	return nil, xerrors.New(xerrors.CodeInvalidArgument, "expected {tasks:[...]} or a task object")
}

func (s *Server) handleEnvKeys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"anthropic":  os.Getenv("ANTHROPIC_API_KEY"),
		"openai":     os.Getenv("OPENAI_API_KEY"),
		"openrouter": os.Getenv("OPENROUTER_API_KEY"),
	})
}

func (s *Server) handleStorePaymentTx(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID string `json:"taskId"`
		TxID   string `json:"txId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TaskID == "" || req.TxID == "" {
		writeError(w, http.StatusBadRequest, "taskId and txId are required")
		return
	}

	s.cfg.State.SetPaymentTx(req.TaskID, req.TxID)
	s.cfg.Hub.Broadcast(relay.NewMessage(relay.TypePaymentTx, map[string]any{
		"taskId": req.TaskID,
		"txId":   req.TxID,
	}))
	writeJSON(w, http.StatusOK, map[string]any{"stored": true})
}

func (s *Server) handleGetPaymentTx(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	txID, ok := s.cfg.State.PaymentTx(taskID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"txId": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"txId": txID})
}

func (s *Server) handleWatchTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID string `json:"taskId"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}
	status := req.Status
	if status == "" {
		status = marketplace.StatusAssigned
	}

	s.cfg.State.SetStatus(req.TaskID, status)
	s.log.Info("task registered for watching", slog.String("task_id", req.TaskID), slog.String("status", status))
	writeJSON(w, http.StatusOK, map[string]any{"tracking": s.cfg.State.Size()})
}

func (s *Server) handleTriggerPoll(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Poller != nil {
		s.cfg.Poller.KickWatched()
	}
	clients := s.cfg.Hub.Broadcast(relay.NewMessage(relay.TypePollWatched, nil))
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	clients := s.cfg.Hub.Broadcast(relay.NewMessage(relay.TypeReload, nil))
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (s *Server) handleBrowserState(w http.ResponseWriter, r *http.Request) {
	payload, err := s.cfg.Hub.QueryState(r.Context())
	if err != nil {
		switch xerrors.CodeOf(err) {
		case xerrors.CodeNoClients:
			writeJSON(w, http.StatusOK, map[string]any{"error": "no clients"})
		case xerrors.CodeTimeout:
			writeJSON(w, http.StatusOK, map[string]any{"error": "timeout"})
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
