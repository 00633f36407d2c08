package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueCierre = "jobs:cierre_caja"
	QueueEmail  = "jobs:email"

	JobCierre = "cierre_caja"
	JobEmail  = "email"

	// MaxAttempts before a job is moved to the dead letter queue.
	MaxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueCierre pushes a closing report job.
func (d *Dispatcher) EnqueueCierre(ctx context.Context, payload CierreJobPayload) error {
	return d.enqueue(ctx, QueueCierre, Job{Type: JobCierre}, payload)
}

// EnqueueEmail pushes an email job.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, Job{Type: JobEmail}, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue string, job Job, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job.Payload = data
	return d.push(ctx, queue, job)
}

func (d *Dispatcher) push(ctx context.Context, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Handler processes the payload of one job type.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// WorkerHandlers maps job types to their handlers.
type WorkerHandlers struct {
	Cierre Handler
	Email  Handler
}

func (h *WorkerHandlers) handlerFor(jobType string) Handler {
	switch jobType {
	case JobCierre:
		return h.Cierre
	case JobEmail:
		return h.Email
	}
	return nil
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func StartWorkerPool(ctx context.Context, d *Dispatcher, handlers *WorkerHandlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, d, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, d *Dispatcher, handlers *WorkerHandlers, id int) {
	queues := []string{QueueCierre, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := d.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			d.processJob(ctx, handlers, result[0], result[1])
		}
	}
}

func (d *Dispatcher) processJob(ctx context.Context, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, d.rdb, queue, "unknown", json.RawMessage(fmt.Sprintf("%q", raw)), "malformed job", 0)
		return
	}

	err := runHandler(ctx, handlers, job)
	if err == nil {
		return
	}
	job.Attempts++
	if job.Attempts >= MaxAttempts {
		SendToDLQ(ctx, d.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeueing")
	if perr := d.push(ctx, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("failed to requeue job")
	}
}

func runHandler(ctx context.Context, handlers *WorkerHandlers, job Job) error {
	h := handlers.handlerFor(job.Type)
	if h == nil {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
	log.Info().Str("type", job.Type).Int("attempt", job.Attempts+1).Msg("processing job")
	return h.Process(ctx, job.Payload)
}
