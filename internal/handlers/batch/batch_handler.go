// internal/handlers/batch/batch_handler.go
package batch

import (
	"net/http"

	"fleetcheck-service/internal/pkg/response"
	batchsvc "fleetcheck-service/internal/service/batch"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BatchHandler struct {
	orchestrator *batchsvc.Orchestrator
	logger       *zap.Logger
}

func NewBatchHandler(orchestrator *batchsvc.Orchestrator, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{orchestrator: orchestrator, logger: logger}
}

// Run triggers a verification sweep over every vehicle whose cached decision
// is missing, expired or stale, and blocks until the sweep finishes. The
// nightly schedule calls the same orchestrator; this endpoint exists for
// manual re-runs after registry incidents.
func (h *BatchHandler) Run(c *gin.Context) {
	result, err := h.orchestrator.Run(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "batch run failed", err)
		return
	}

	h.logger.Info("manual batch run finished",
		zap.String("run_id", result.RunID),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed))

	response.Success(c, http.StatusOK, "batch run completed", result)
}
