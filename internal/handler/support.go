package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/identity"
	"github.com/birdtrack/support-platform/internal/middleware"
	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/internal/support"
	"github.com/birdtrack/support-platform/pkg/logger"
)

// sessionKeyHeader carries the anonymous visitor's session key.
const sessionKeyHeader = "X-Support-Session"

// SupportHandler handles the session-bound conversation endpoints.
type SupportHandler struct {
	hub      *support.Hub
	store    support.Store
	resolver *identity.Resolver
	validate *validator.Validate
	logger   *logger.Logger
}

// NewSupportHandler creates a new support handler.
func NewSupportHandler(hub *support.Hub, store support.Store, resolver *identity.Resolver, log *logger.Logger) *SupportHandler {
	return &SupportHandler{
		hub:      hub,
		store:    store,
		resolver: resolver,
		validate: validator.New(),
		logger:   log,
	}
}

// session resolves the acting identity, including the admin flag for
// authenticated users. Resolution failures leave the role unknown,
// which every authorization boundary treats as non-admin.
func (h *SupportHandler) session(r *http.Request) identity.Session {
	s := middleware.SessionFrom(r.Context())
	if s.UserID != "" && s.Role == identity.RoleUnknown {
		role, err := h.resolver.Resolve(r.Context(), s.UserID)
		if err != nil {
			h.logger.Warn("role resolution failed", zap.String("user_id", s.UserID), zap.Error(err))
		}
		s.Role = role
	}
	return s
}

// sessionKey derives the hub key for this client session.
func sessionKey(r *http.Request, s identity.Session) string {
	if s.UserID != "" {
		return s.UserID
	}
	if key := r.Header.Get(sessionKeyHeader); key != "" && middleware.ValidateSessionKey(key) == nil {
		return "anon:" + key
	}
	return "anon:" + r.RemoteAddr
}

// Start handles POST /api/v1/support/chat
func (h *SupportHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "name, email and description are required")
		return
	}

	attachments := make([]support.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "attachment data must be base64")
			return
		}
		attachments = append(attachments, support.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        data,
		})
	}

	s := h.session(r)
	lifecycle := h.hub.Lifecycle(sessionKey(r, s), s)

	conv, welcome, err := lifecycle.StartChat(r.Context(), support.StartChatInput{
		Name:        req.Name,
		Email:       req.Email,
		Description: req.Description,
		Attachments: attachments,
	})
	if err != nil {
		switch {
		case errors.Is(err, support.ErrMissingFields):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, support.ErrConversationActive):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("failed to start chat", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to start chat")
		}
		return
	}

	writeJSON(w, http.StatusCreated, &model.StartChatResponse{
		Conversation: conv,
		WelcomeID:    welcome.ID,
	})
}

// Send handles POST /api/v1/support/chat/messages
func (h *SupportHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.session(r)
	lifecycle := h.hub.Lifecycle(sessionKey(r, s), s)

	msg, err := lifecycle.SendMessage(r.Context(), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, support.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, support.ErrNoActiveConversation):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, support.ErrSendInFlight):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			h.logger.Error("failed to send message", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to send message")
		}
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Message: msg})
}

// End handles DELETE /api/v1/support/chat
func (h *SupportHandler) End(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	lifecycle := h.hub.Lifecycle(sessionKey(r, s), s)

	summarySent, err := lifecycle.EndChat(r.Context())
	if err != nil {
		if errors.Is(err, support.ErrNoActiveConversation) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to end chat", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to end chat")
		return
	}

	writeJSON(w, http.StatusOK, &model.EndChatResponse{
		Closed:      true,
		SummarySent: summarySent,
	})
}

// History handles GET /api/v1/support/conversations/{id}/messages
func (h *SupportHandler) History(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.store.ListMessages(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{
		Messages: messages,
		Total:    len(messages),
	})
}
