package webhook

import (
	"context"
	"io"
	"net/http"
	"sync"
)

// maxPayloadBytes caps webhook bodies; GitLab event payloads are small.
const maxPayloadBytes = 1 << 20

// Logger interface for logging operations (Interface Segregation
// Principle).
type Logger interface {
	Printf(format string, v ...interface{})
}

// ReconcileFunc processes a single issue by iid.
type ReconcileFunc func(ctx context.Context, iid int) error

// Handler handles GitLab webhook deliveries and hands the referenced
// issue to the reconciler. Processing happens in the background; the
// delivery is acknowledged immediately so GitLab does not retry slow
// runs. Deliveries for the same issue are serialized so an issue is
// never reconciled concurrently with itself; different issues proceed
// in parallel.
type Handler struct {
	secret    string
	logger    Logger
	reconcile ReconcileFunc

	mu    sync.Mutex
	locks map[int]*sync.Mutex // per-issue dispatch locks, keyed by iid
}

// NewHandler creates a new webhook handler. An empty secret disables
// token verification.
func NewHandler(secret string, logger Logger, reconcile ReconcileFunc) *Handler {
	return &Handler{
		secret:    secret,
		logger:    logger,
		reconcile: reconcile,
		locks:     make(map[int]*sync.Mutex),
	}
}

// issueLock returns the dispatch lock for one issue. The map is
// bounded by the number of distinct issues the project ever delivers
// events for.
func (h *Handler) issueLock(iid int) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, ok := h.locks[iid]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[iid] = lock
	}
	return lock
}

// RegisterRoutes registers the webhook endpoints on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", h.handleWebhook)
	mux.HandleFunc("/healthz", h.handleHealth)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.secret != "" && r.Header.Get("X-Gitlab-Token") != h.secret {
		h.logger.Printf("[Webhook] Rejected delivery with bad token from %s", r.RemoteAddr)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	iid, ok := ExtractIssueIID(payload)
	if !ok {
		// Not an issue-related event; acknowledge and move on.
		w.WriteHeader(http.StatusOK)
		return
	}

	h.logger.Printf("[Webhook] Received event for issue #%d", iid)

	go func() {
		lock := h.issueLock(iid)
		lock.Lock()
		defer lock.Unlock()

		if err := h.reconcile(context.Background(), iid); err != nil {
			h.logger.Printf("[Webhook] Failed to reconcile issue #%d: %v", iid, err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
