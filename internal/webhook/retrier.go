package webhook

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Recorder persists final delivery outcomes.
type Recorder interface {
	RecordDelivered(ctx context.Context, job Job, result *DeliveryResult) error
	RecordDeadLetter(ctx context.Context, job Job, result *DeliveryResult) error
}

// Retrier owns the retry contract: each failed attempt is rescheduled on the
// queue after its backoff, and deliveries that exhaust their retries are
// dead-lettered through the Recorder.
type Retrier struct {
	dispatcher   *Dispatcher
	queue        Queue
	recorder     Recorder
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time
}

func NewRetrier(dispatcher *Dispatcher, queue Queue, recorder Recorder, pollInterval time.Duration, batchSize int) *Retrier {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Retrier{
		dispatcher:   dispatcher,
		queue:        queue,
		recorder:     recorder,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		now:          time.Now,
	}
}

// Attempt performs one delivery and acts on its outcome.
func (r *Retrier) Attempt(ctx context.Context, job Job) (*DeliveryResult, error) {
	return r.attempt(ctx, job, true)
}

// Relay performs one delivery for a caller that owns the retry schedule.
// A retry-needed result is returned to the caller and nothing is queued;
// successful and exhausted deliveries are recorded as with Attempt.
func (r *Retrier) Relay(ctx context.Context, job Job) (*DeliveryResult, error) {
	return r.attempt(ctx, job, false)
}

func (r *Retrier) attempt(ctx context.Context, job Job, schedule bool) (*DeliveryResult, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	result, err := r.dispatcher.Deliver(ctx, job.request())
	if err != nil {
		return nil, err
	}

	switch {
	case result.Success:
		if r.recorder != nil {
			if err := r.recorder.RecordDelivered(ctx, job, result); err != nil {
				log.Printf("webhook: failed to record delivery %s: %v", job.ID, err)
			}
		}
	case result.RetryNeeded && !schedule:
		log.Printf("webhook: delivery %s to %s failed with %d, caller retries (%d) in %s", job.ID, job.WebhookURL, result.Status, result.Retries, result.Delay)
	case result.RetryNeeded:
		next := job
		next.Retries = result.Retries
		if err := r.queue.Schedule(ctx, next, r.now().Add(result.Delay)); err != nil {
			// Losing the retry would drop the delivery silently.
			log.Printf("webhook: failed to schedule retry %d for %s, dead-lettering: %v", next.Retries, job.ID, err)
			r.deadLetter(ctx, job, result)
			return result, nil
		}
		log.Printf("webhook: delivery %s to %s failed with %d, retry %d in %s", job.ID, job.WebhookURL, result.Status, next.Retries, result.Delay)
	case result.Exhausted:
		r.deadLetter(ctx, job, result)
	}
	return result, nil
}

func (r *Retrier) deadLetter(ctx context.Context, job Job, result *DeliveryResult) {
	log.Printf("webhook: dead-lettering delivery %s to %s after %d retries (last status %d %s)",
		job.ID, job.WebhookURL, job.Retries, result.Status, result.StatusText)
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordDeadLetter(ctx, job, result); err != nil {
		log.Printf("webhook: failed to record dead letter %s: %v", job.ID, err)
	}
}

// Run polls the queue until ctx is cancelled.
func (r *Retrier) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Retrier) drain(ctx context.Context) {
	for {
		jobs, err := r.queue.Due(ctx, r.now(), r.batchSize)
		if err != nil {
			log.Printf("webhook: failed to read retry queue: %v", err)
		}
		for _, job := range jobs {
			if _, err := r.Attempt(ctx, job); err != nil {
				log.Printf("webhook: dropping invalid job %s: %v", job.ID, err)
			}
		}
		if len(jobs) < r.batchSize || ctx.Err() != nil {
			return
		}
	}
}
