package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/middleware"
	"github.com/birdtrack/support-platform/internal/support"
	"github.com/birdtrack/support-platform/pkg/logger"
	"github.com/birdtrack/support-platform/pkg/metrics"
)

const heartbeatInterval = 30 * time.Second

// StreamHandler serves SSE live views: one per conversation for chat
// participants, plus the admin alert feed.
type StreamHandler struct {
	store  support.Store
	bus    support.Bus
	logger *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(store support.Store, bus support.Bus, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		store:  store,
		bus:    bus,
		logger: log,
	}
}

// heartbeatEvent keeps idle SSE connections alive.
type heartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Conversation handles GET /api/v1/support/conversations/{id}/stream
//
// The channel subscribes before fetching history, so a message inserted
// during the fetch is not lost; duplicates are merged away by id. The
// channel belongs to this request and is torn down when the client
// disconnects, never reused across mounts.
func (h *StreamHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	channel := support.NewChannel(h.store, h.bus, h.logger)
	degraded := false
	if err := channel.Attach(ctx, conversationID); err != nil {
		if !errors.Is(err, support.ErrHistoryUnavailable) {
			writeError(w, http.StatusInternalServerError, "failed to attach to conversation")
			return
		}
		// Live subscription survives a failed history fetch.
		degraded = true
	}
	defer channel.Detach()

	setSSEHeaders(w)
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]any{
		"conversation_id": conversationID,
		"degraded":        degraded,
	})

	for _, msg := range channel.Snapshot() {
		sendSSEEvent(w, flusher, "message", msg)
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	updates := channel.Updates()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", zap.String("conversation_id", conversationID))
			return

		case msg := <-updates:
			sendSSEEvent(w, flusher, "message", msg)

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &heartbeatEvent{Timestamp: time.Now()})
		}
	}
}

// Alerts handles GET /api/v1/admin/alerts/stream
//
// Each admin connection gets its own notifier; RequireAdmin has already
// resolved the role, so Start is never a silent no-op here.
func (h *StreamHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	notifier := support.NewNotifier(h.store, h.bus, h.logger)
	if err := notifier.Start(middleware.GetRole(ctx)); err != nil {
		h.logger.Error("failed to start notifier", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start alert stream")
		return
	}
	defer notifier.Stop()

	// Activity that happened before the listeners attached still counts.
	if err := notifier.CheckExisting(ctx); err != nil {
		h.logger.Warn("pending reconciliation failed", zap.Error(err))
	}

	setSSEHeaders(w)
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]bool{
		"pending": notifier.Pending(),
	})

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case alert := <-notifier.Alerts():
			sendSSEEvent(w, flusher, "alert", alert)

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &heartbeatEvent{Timestamp: time.Now()})
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
