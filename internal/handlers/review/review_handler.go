// internal/handlers/review/review_handler.go
package review

import (
	"net/http"

	"fleetcheck-service/internal/pkg/response"
	reviewsvc "fleetcheck-service/internal/service/review"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReviewHandler struct {
	dispatcher *reviewsvc.Dispatcher
	logger     *zap.Logger
}

func NewReviewHandler(dispatcher *reviewsvc.Dispatcher, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{dispatcher: dispatcher, logger: logger}
}

// Complete is the callback the external review collaborator posts when a
// photo verification finishes.
func (h *ReviewHandler) Complete(c *gin.Context) {
	var completion reviewsvc.Completion
	if err := c.ShouldBindJSON(&completion); err != nil {
		response.ValidationError(c, "invalid completion payload", err)
		return
	}

	if err := h.dispatcher.Complete(c.Request.Context(), completion); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to record review outcome", err)
		return
	}

	h.logger.Info("photo review completed",
		zap.Int64("flag_id", completion.FlagID),
		zap.Bool("verified", completion.Verified))

	response.Success(c, http.StatusOK, "review outcome recorded", nil)
}
