// Package worker runs post-acceptance submission jobs on a bounded pool of
// goroutines, retrying failed jobs with a linear delay.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("worker queue is full")
	ErrStopped   = errors.New("worker pool is stopped")
)

// Job identifies one unit of background work. Attempt starts at 0.
type Job struct {
	SubmissionID string
	Attempt      int
}

type Handler func(ctx context.Context, job Job) error

type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	// OnExhausted is called once a job has failed MaxAttempts times.
	OnExhausted func(job Job, err error)
}

type Pool struct {
	handler Handler
	opts    Options
	jobs    chan Job

	// ctx is detached from any request; it is cancelled only when Stop gives up.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
	pending sync.WaitGroup
	workers sync.WaitGroup
}

func NewPool(handler Handler, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		handler: handler,
		opts:    opts,
		jobs:    make(chan Job, opts.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.opts.Workers; i++ {
		p.workers.Add(1)
		go p.loop()
	}
}

// Enqueue never blocks.
func (p *Pool) Enqueue(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	p.pending.Add(1)
	select {
	case p.jobs <- job:
		return nil
	default:
		p.pending.Done()
		return ErrQueueFull
	}
}

// Stop rejects new jobs and waits for queued jobs and scheduled retries to
// finish. If ctx ends first, in-flight handlers are cancelled and the
// remaining work is dropped.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
		log.Printf("worker: stop deadline reached, dropping unfinished jobs")
	}
	p.cancel()
	p.workers.Wait()
	return err
}

func (p *Pool) loop() {
	defer p.workers.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			p.run(job)
		}
	}
}

func (p *Pool) run(job Job) {
	err := p.safeHandle(job)
	if err == nil {
		p.pending.Done()
		return
	}

	if p.ctx.Err() != nil {
		log.Printf("worker: job %s abandoned during shutdown: %v", job.SubmissionID, err)
		p.pending.Done()
		return
	}

	next := job
	next.Attempt++
	if next.Attempt >= p.opts.MaxAttempts {
		log.Printf("worker: job %s failed after %d attempts: %v", job.SubmissionID, next.Attempt, err)
		if p.opts.OnExhausted != nil {
			p.opts.OnExhausted(job, err)
		}
		p.pending.Done()
		return
	}

	delay := p.opts.RetryDelay * time.Duration(next.Attempt)
	log.Printf("worker: job %s attempt %d failed, retrying in %s: %v", job.SubmissionID, next.Attempt, delay, err)
	time.AfterFunc(delay, func() { p.requeue(next) })
}

// requeue keeps the job's pending slot; the job is either re-run or dropped.
func (p *Pool) requeue(job Job) {
	select {
	case p.jobs <- job:
	case <-p.ctx.Done():
		log.Printf("worker: dropping retry of job %s during shutdown", job.SubmissionID)
		p.pending.Done()
	}
}

func (p *Pool) safeHandle(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: job %s panicked: %v", job.SubmissionID, r)
			err = errors.New("job panicked")
		}
	}()
	return p.handler(p.ctx, job)
}
