package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/bandup/session-service/internal/auth"
	"github.com/bandup/session-service/internal/catalog"
	"github.com/bandup/session-service/internal/grading"
	"github.com/bandup/session-service/internal/ledger"
	"github.com/bandup/session-service/internal/session"
	"github.com/bandup/session-service/internal/utils"
	"github.com/bandup/session-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// SessionManager is satisfied by *session.Manager.
type SessionManager interface {
	RefreshCatalog(ctx context.Context, sectionIDs []string) error
	Create(ctx context.Context, learnerID string, sectionIDs []string, mode catalog.Mode) (*session.Session, error)
	Get(id, learnerID string) (*session.Session, error)
	Start(ctx context.Context, id, learnerID string) (*session.Session, error)
	End(ctx context.Context, id, learnerID string) (*session.Session, error)
	SetAnswer(id, learnerID, questionID, answer string) error
	Progress(id, learnerID string) (ledger.Progress, error)
	Submit(ctx context.Context, id, learnerID string) (*grading.Outcome, error)
	Close(id, learnerID string) error
}

type CreateSessionRequest struct {
	SectionIDs []string `json:"section_ids" validate:"required,min=1,dive,notblank"`
	Mode       string   `json:"mode" validate:"required,session_mode"`
	// Refresh skips cached sections and reads them from the catalog again.
	Refresh bool `json:"refresh"`
}

type SetAnswerRequest struct {
	// Blank answers are accepted; they simply count as unanswered.
	Answer string `json:"answer"`
}

type SessionHandler struct {
	BaseHandler
	sessions  SessionManager
	validator *validator.Validator
}

func NewSessionHandler(sessions SessionManager, validator *validator.Validator, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		sessions:    sessions,
		validator:   validator,
	}
}

// CreateSession loads the requested sections and opens an idle session.
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = string(catalog.ModeFull)
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	learnerID := auth.LearnerID(c)
	h.LogRequest(c, "Creating session", "sections", len(req.SectionIDs), "mode", req.Mode, "refresh", req.Refresh)

	if req.Refresh {
		if err := h.sessions.RefreshCatalog(c.Request.Context(), req.SectionIDs); err != nil {
			h.handleServiceError(c, err)
			return
		}
	}

	s, err := h.sessions.Create(c.Request.Context(), learnerID, req.SectionIDs, catalog.Mode(req.Mode))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, s.View(h.logger.Slog(), true))
}

// GetSession returns the session's clock, state and progress. Pass ?sections=true for the catalog.
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	s, err := h.sessions.Get(id, auth.LearnerID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.View(h.logger.Slog(), c.Query("sections") == "true"))
}

// @Router /sessions/{id}/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	s, err := h.sessions.Start(c.Request.Context(), id, auth.LearnerID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.View(h.logger.Slog(), false))
}

// @Router /sessions/{id}/end [post]
func (h *SessionHandler) EndSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	s, err := h.sessions.End(c.Request.Context(), id, auth.LearnerID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.View(h.logger.Slog(), false))
}

// SetAnswer replaces the learner's answer for one question.
// @Router /sessions/{id}/answers/{question_id} [put]
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	var req SetAnswerRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.sessions.SetAnswer(id, auth.LearnerID(c), questionID, req.Answer); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Router /sessions/{id}/progress [get]
func (h *SessionHandler) GetProgress(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	progress, err := h.sessions.Progress(id, auth.LearnerID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// SubmitSession sends the ledger to grading once and returns the result with its redirect target.
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Submitting session", "session_id", id)

	outcome, err := h.sessions.Submit(c.Request.Context(), id, auth.LearnerID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// @Router /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	if err := h.sessions.Close(id, auth.LearnerID(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) handleServiceError(c *gin.Context, err error) {
	handleServiceError(&h.BaseHandler, c, err)
}

// handleServiceError maps domain errors onto HTTP statuses.
func handleServiceError(h *BaseHandler, c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", err, validationErrors)
		return
	}

	switch {
	case session.IsBadRequest(err):
		h.RespondWithError(c, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, session.ErrSessionAccessDenied):
		h.RespondWithError(c, http.StatusForbidden, "Access denied to session", err)
	case session.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, err.Error(), err)
	case session.IsPrecondition(err):
		h.RespondWithError(c, http.StatusPreconditionFailed, "No test attempt is in progress", err)
	case session.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, err.Error(), err)
	case session.IsUpstream(err):
		h.RespondWithError(c, http.StatusBadGateway, "Upstream service unavailable", err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
