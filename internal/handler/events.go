package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/apierror"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventStream is a live feed of one till's session changes.
type EventStream interface {
	Events() <-chan events.SessionChanged
	Close() error
}

// Subscriber opens an EventStream for a till.
type Subscriber func(ctx context.Context, tillID string) (EventStream, error)

// RedisSubscriber subscribes through Redis pub/sub.
func RedisSubscriber(rdb *redis.Client) Subscriber {
	return func(ctx context.Context, tillID string) (EventStream, error) {
		sub, err := events.Subscribe(ctx, rdb, tillID)
		if err != nil {
			return nil, err
		}
		return sub, nil
	}
}

type EventsHandler struct {
	subscribe Subscriber
	done      <-chan struct{}
	heartbeat time.Duration
}

// NewEventsHandler streams till events. Open streams end when done is
// closed; done may be nil.
func NewEventsHandler(subscribe Subscriber, done <-chan struct{}) *EventsHandler {
	return &EventsHandler{subscribe: subscribe, done: done, heartbeat: 20 * time.Second}
}

// Stream godoc
// @Summary Eventos de la caja en tiempo real (Server-Sent Events)
// @Tags caja
// @Produce text/event-stream
// @Security BearerAuth
// @Param till path string true "Identificador de caja"
// @Success 200 {object} events.SessionChanged
// @Router /v1/caja/{till}/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	tillID := c.Param("till")
	ctx := c.Request.Context()

	stream, err := h.subscribe(ctx, tillID)
	if err != nil {
		log.Error().Err(err).Str("till_id", tillID).Msg("events: subscribe failed")
		c.JSON(http.StatusServiceUnavailable, apierror.WithCode("events_unavailable", "Canal de eventos no disponible"))
		return
	}
	defer stream.Close()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-h.done:
			return false
		case ev, ok := <-stream.Events():
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC().Format(time.RFC3339)})
			return true
		}
	})
}
