package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/apierror"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// DLQReplayer moves dead jobs back to their queue.
type DLQReplayer interface {
	Replay(ctx context.Context, queue string, n int) (int, error)
}

var replayableQueues = map[string]string{
	"cierre": worker.QueueCierre,
	"email":  worker.QueueEmail,
}

type DLQHandler struct{ replayer DLQReplayer }

func NewDLQHandler(r DLQReplayer) *DLQHandler { return &DLQHandler{replayer: r} }

// Replay godoc
// @Summary Reencolar trabajos de la cola de fallidos
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param queue path string true "cierre | email"
// @Param n query int false "Máximo de trabajos (default 10, max 100)"
// @Success 200 {object} map[string]int
// @Router /v1/admin/dlq/{queue}/replay [post]
func (h *DLQHandler) Replay(c *gin.Context) {
	queue, ok := replayableQueues[c.Param("queue")]
	if !ok {
		c.JSON(http.StatusNotFound, apierror.WithCode("not_found", "Cola desconocida"))
		return
	}
	n, err := strconv.Atoi(c.DefaultQuery("n", "10"))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_n", "n debe ser un entero positivo"))
		return
	}
	if n > 100 {
		n = 100
	}

	moved, err := h.replayer.Replay(c.Request.Context(), queue, n)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Int("moved", moved).Msg("dlq: replay failed")
		c.Error(err)
		return
	}
	log.Info().Str("queue", queue).Int("moved", moved).Msg("dlq: jobs replayed")
	c.JSON(http.StatusOK, gin.H{"replayed": moved})
}
