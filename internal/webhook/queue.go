package webhook

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Job is a delivery waiting for its next attempt.
type Job struct {
	ID           string          `json:"id"`
	FormID       string          `json:"form_id,omitempty"`
	SubmissionID string          `json:"submission_id,omitempty"`
	WebhookURL   string          `json:"webhook_url"`
	Payload      json.RawMessage `json:"payload"`
	Secret       string          `json:"secret,omitempty"`
	Retries      int             `json:"retries"`
}

func (j Job) request() DeliveryRequest {
	return DeliveryRequest{WebhookURL: j.WebhookURL, Payload: j.Payload, Secret: j.Secret, Retries: j.Retries}
}

// Queue holds jobs until they are due. Due claims and removes the returned
// jobs so each is handed out once.
type Queue interface {
	Schedule(ctx context.Context, job Job, at time.Time) error
	Due(ctx context.Context, now time.Time, limit int) ([]Job, error)
}

type scheduled struct {
	job Job
	at  time.Time
}

// MemoryQueue is a process-local Queue. Scheduled jobs are lost on restart.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []scheduled
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Schedule(ctx context.Context, job Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, scheduled{job: job, at: at})
	sort.SliceStable(q.jobs, func(i, j int) bool { return q.jobs[i].at.Before(q.jobs[j].at) })
	return nil
}

func (q *MemoryQueue) Due(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []Job
	i := 0
	for ; i < len(q.jobs) && len(due) < limit; i++ {
		if q.jobs[i].at.After(now) {
			break
		}
		due = append(due, q.jobs[i].job)
	}
	q.jobs = q.jobs[i:]
	return due, nil
}

// Len reports the number of scheduled jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
