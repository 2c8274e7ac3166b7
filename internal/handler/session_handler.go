package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prepforge/session-backend/internal/middleware"
	"github.com/prepforge/session-backend/internal/model"
	"github.com/prepforge/session-backend/internal/repository"
	"github.com/prepforge/session-backend/internal/response"
	"github.com/prepforge/session-backend/internal/service"
	"github.com/prepforge/session-backend/internal/session"
	"github.com/prepforge/session-backend/internal/validator"
)

// SessionHandler handles the test-taking endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
	attemptRepo    *repository.AttemptRepository
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, attemptRepo *repository.AttemptRepository) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		attemptRepo:    attemptRepo,
	}
}

// StartFresh godoc
// POST /api/v1/tests/fresh
// Starts chunked question generation for a test card. Repeating the call for
// the same card while generation is in flight returns the existing session.
func (h *SessionHandler) StartFresh(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartFreshRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := h.sessionService.StartFresh(c.Request.Context(), claims.UserID, req.CardID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": snap})
}

// StartReattempt godoc
// POST /api/v1/tests/reattempt
// Reloads the fixed question set of a previous session for another attempt.
func (h *SessionHandler) StartReattempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartReattemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := h.sessionService.StartReattempt(c.Request.Context(), claims.UserID, req.SessionID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": snap})
}

// Begin godoc
// POST /api/v1/tests/begin
// Confirms the instructions screen and starts the countdown.
func (h *SessionHandler) Begin(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.Begin(claims.UserID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// Answer godoc
// POST /api/v1/tests/answer
// Records the selected option for one question. Re-answering overwrites.
func (h *SessionHandler) Answer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.ApplyAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.Answer(c.Request.Context(), claims.UserID, req.QuestionID, *req.OptionIndex); err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Flag godoc
// POST /api/v1/tests/flag
// Toggles the review flag on one question.
func (h *SessionHandler) Flag(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.ToggleFlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	flagged, err := h.sessionService.Flag(c.Request.Context(), claims.UserID, req.QuestionID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"flagged": flagged})
}

// Submit godoc
// POST /api/v1/tests/submit
// Submits the test for grading. May be repeated after a submission failure;
// recorded answers are preserved across retries.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.Submit(c.Request.Context(), claims.UserID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// State godoc
// GET /api/v1/tests/state
// Returns the full snapshot of the live session for UI rendering.
func (h *SessionHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snap, err := h.sessionService.State(claims.UserID)
	if err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// Abandon godoc
// DELETE /api/v1/tests
// Disposes the live session without submitting.
func (h *SessionHandler) Abandon(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.sessionService.Abandon(c.Request.Context(), claims.UserID); err != nil {
		failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "abandoned"})
}

// ListAttempts godoc
// GET /api/v1/tests/attempts?limit=50
// Returns the user's finished attempts, most recent first.
func (h *SessionHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	attempts, err := h.attemptRepo.ListByUser(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if attempts == nil {
		attempts = []model.Attempt{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// failSession maps engine errors onto response codes.
func failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoActiveSession):
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
	case errors.Is(err, session.ErrStartInFlight):
		response.Fail(c, http.StatusConflict, response.ErrStartInFlight)
	case errors.Is(err, session.ErrStartFailed):
		response.Fail(c, http.StatusBadGateway, response.ErrStartFailed)
	case errors.Is(err, session.ErrSubmissionFailed):
		response.Fail(c, http.StatusBadGateway, response.ErrSubmission)
	case errors.Is(err, session.ErrNotStartable):
		response.Fail(c, http.StatusConflict, response.ErrNotStartable)
	case errors.Is(err, session.ErrInvalidPhase):
		response.Fail(c, http.StatusConflict, response.ErrInvalidPhase)
	case errors.Is(err, session.ErrInvalidArgument):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidArgument)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
