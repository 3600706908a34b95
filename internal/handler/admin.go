package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/pkg/logger"
)

// AdminStore is the store surface the admin panel needs.
type AdminStore interface {
	HasPendingSupport(ctx context.Context) (bool, error)
	ListActiveConversations(ctx context.Context) ([]model.ConversationWithMeta, error)
}

// AdminHandler handles the admin support-panel endpoints.
type AdminHandler struct {
	store  AdminStore
	logger *logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store AdminStore, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		store:  store,
		logger: log,
	}
}

// Pending handles GET /api/v1/admin/support/pending
func (h *AdminHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.store.HasPendingSupport(r.Context())
	if err != nil {
		h.logger.Error("failed to check pending support", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to check pending support")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pending": pending})
}

// Conversations handles GET /api/v1/admin/support/conversations
func (h *AdminHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.store.ListActiveConversations(r.Context())
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, &model.ConversationListResponse{
		Conversations: conversations,
		Total:         len(conversations),
	})
}
