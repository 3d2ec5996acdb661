package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bandup/session-service/internal/auth"
	"github.com/bandup/session-service/internal/models"
	"github.com/bandup/session-service/internal/report"
	"github.com/bandup/session-service/internal/repositories"
	"github.com/bandup/session-service/internal/utils"
	"github.com/bandup/session-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// ResultService is satisfied by *grading.Dispatcher.
type ResultService interface {
	LatestResult(ctx context.Context, learnerID string) (*models.GradingResult, error)
	SetCurrentAttempt(ctx context.Context, learnerID, attemptID string) error
	History(ctx context.Context, learnerID string, filters repositories.SubmissionLogFilters) ([]*models.SubmissionLog, int64, error)
	SubmissionLog(ctx context.Context, learnerID string, id uint) (*models.SubmissionLog, error)
}

type SubmissionHistoryResponse struct {
	Submissions []*models.SubmissionLog `json:"submissions"`
	Total       int64                   `json:"total"`
	Page        int                     `json:"page"`
	Size        int                     `json:"size"`
}

type SetAttemptRequest struct {
	AttemptID string `json:"attempt_id" validate:"required,notblank"`
}

type ResultHandler struct {
	BaseHandler
	results   ResultService
	validator *validator.Validator
}

func NewResultHandler(results ResultService, validator *validator.Validator, logger utils.Logger) *ResultHandler {
	return &ResultHandler{
		BaseHandler: NewBaseHandler(logger),
		results:     results,
		validator:   validator,
	}
}

// SetCurrentAttempt records the attempt id the next submission is graded against.
// @Router /attempts/current [put]
func (h *ResultHandler) SetCurrentAttempt(c *gin.Context) {
	var req SetAttemptRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		handleServiceError(&h.BaseHandler, c, err)
		return
	}

	if err := h.results.SetCurrentAttempt(c.Request.Context(), auth.LearnerID(c), req.AttemptID); err != nil {
		handleServiceError(&h.BaseHandler, c, err)
		return
	}

	h.LogRequest(c, "Current attempt set", "attempt_id", req.AttemptID)
	h.RespondWithSuccess(c, http.StatusOK, "Current attempt set", gin.H{"attempt_id": req.AttemptID})
}

// @Router /results/latest [get]
func (h *ResultHandler) GetLatestResult(c *gin.Context) {
	result, err := h.results.LatestResult(c.Request.Context(), auth.LearnerID(c))
	if err != nil {
		handleServiceError(&h.BaseHandler, c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportLatestResult downloads the latest result as an xlsx workbook.
// @Router /results/latest/export [get]
func (h *ResultHandler) ExportLatestResult(c *gin.Context) {
	result, err := h.results.LatestResult(c.Request.Context(), auth.LearnerID(c))
	if err != nil {
		handleServiceError(&h.BaseHandler, c, err)
		return
	}

	data, err := report.ResultToExcel(result)
	if err != nil {
		handleServiceError(&h.BaseHandler, c, err)
		return
	}

	c.Header("Content-Disposition", report.ContentDisposition(result))
	c.Data(http.StatusOK, report.ContentType, data)
}

// ListSubmissions pages through the learner's grading dispatches.
// @Router /submissions [get]
func (h *ResultHandler) ListSubmissions(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	filters := repositories.SubmissionLogFilters{
		AttemptID: c.Query("attempt_id"),
		Limit:     size,
		Offset:    (page - 1) * size,
	}
	if status := c.Query("status"); status != "" {
		s := models.SubmissionStatus(status)
		filters.Status = &s
	}

	logs, total, err := h.results.History(c.Request.Context(), auth.LearnerID(c), filters)
	if err != nil {
		handleServiceError(&h.BaseHandler, c, err)
		return
	}

	c.JSON(http.StatusOK, SubmissionHistoryResponse{
		Submissions: logs,
		Total:       total,
		Page:        page,
		Size:        size,
	})
}

// @Router /submissions/{id} [get]
func (h *ResultHandler) GetSubmission(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid id",
			Details: err.Error(),
		})
		return
	}

	entry, err := h.results.SubmissionLog(c.Request.Context(), auth.LearnerID(c), uint(id))
	if err != nil {
		handleServiceError(&h.BaseHandler, c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}
