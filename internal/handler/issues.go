package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/birdtrack/support-platform/internal/middleware"
	"github.com/birdtrack/support-platform/internal/model"
	"github.com/birdtrack/support-platform/internal/support"
	"github.com/birdtrack/support-platform/pkg/logger"
)

// IssueHandler handles issue report submissions.
type IssueHandler struct {
	issues *support.Issues
	logger *logger.Logger
}

// NewIssueHandler creates a new issue handler.
func NewIssueHandler(issues *support.Issues, log *logger.Logger) *IssueHandler {
	return &IssueHandler{
		issues: issues,
		logger: log,
	}
}

// Submit handles POST /api/v1/issues
func (h *IssueHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.issues.Submit(r.Context(), middleware.SessionFrom(r.Context()), req.Description)
	if err != nil {
		switch {
		case errors.Is(err, support.ErrEmptyDescription):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, support.ErrNotAuthenticated):
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			h.logger.Error("failed to submit issue", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to submit issue")
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}
