package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/solvex/internal/middleware"
	"github.com/stemsi/solvex/internal/response"
	"github.com/stemsi/solvex/internal/service"
	"github.com/stemsi/solvex/internal/validator"
)

const maxLobbyExams = 100

// AttemptHandler serves stored attempt state over REST.
type AttemptHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

type lobbyQuery struct {
	ExamIDs []string `form:"exam_id" binding:"required,min=1,max=100,dive,required,max=128"`
}

// Lobby godoc
// GET /api/v1/student/attempts?exam_id=a&exam_id=b
// Reports what the lobby should offer for each exam (start, resume, done).
func (h *AttemptHandler) Lobby(c *gin.Context) {
	user, _ := middleware.GetUser(c)

	var q lobbyQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	examIDs := splitIDs(q.ExamIDs)
	if len(examIDs) > maxLobbyExams {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	lobby, err := h.attempts.Lobby(c.Request.Context(), user.ID, examIDs)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("Lobby lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, lobby)
}

// Attempt godoc
// GET /api/v1/student/attempts/:exam_id
func (h *AttemptHandler) Attempt(c *gin.Context) {
	user, _ := middleware.GetUser(c)
	examID := c.Param("exam_id")

	summary, err := h.attempts.Attempt(c.Request.Context(), user.ID, examID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Str("exam_id", examID).Msg("Attempt lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// AdminAttempt godoc
// GET /api/v1/admin/attempts/:user_id/:exam_id
func (h *AttemptHandler) AdminAttempt(c *gin.Context) {
	userID, examID := c.Param("user_id"), c.Param("exam_id")

	summary, err := h.attempts.Attempt(c.Request.Context(), userID, examID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Str("exam_id", examID).Msg("Attempt lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// Reset godoc
// POST /api/v1/admin/attempts/:user_id/:exam_id/reset
// Clears the stored status and snapshot so the student can start over.
func (h *AttemptHandler) Reset(c *gin.Context) {
	userID, examID := c.Param("user_id"), c.Param("exam_id")

	if err := h.attempts.Reset(c.Request.Context(), userID, examID); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Str("exam_id", examID).Msg("Attempt reset failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	admin := middleware.GetClaims(c)
	h.log.Info().Str("admin_id", admin.Identity()).Str("user_id", userID).Str("exam_id", examID).Msg("Attempt reset by admin")
	response.Success(c, http.StatusOK, gin.H{"user_id": userID, "exam_id": examID, "reset": true})
}

// splitIDs accepts both repeated and comma-separated exam_id values.
func splitIDs(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		for _, id := range strings.Split(r, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
