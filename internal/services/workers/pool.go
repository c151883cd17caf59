package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
)

// Task represents a work item to be processed
type Task func(ctx context.Context) error

// Pool runs tasks on a bounded set of workers. It is request-scoped: create
// one, submit the fan-out, Wait for the join, and discard it. Errors are
// collected rather than aborting the pool, so all tasks settle before the
// caller decides what a partial failure means.
type Pool struct {
	tasks    chan Task
	workers  int
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	errors   []error
	errorsMu sync.Mutex
	logger   arbor.ILogger
}

// NewPool creates a worker pool bound to the given context; cancelling the
// context stops workers between tasks.
func NewPool(ctx context.Context, workers int, logger arbor.ILogger) *Pool {
	if workers <= 0 {
		workers = 4
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &Pool{
		tasks:   make(chan Task, workers*2),
		workers: workers,
		ctx:     poolCtx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Start begins the workers
func (p *Pool) Start() {
	p.logger.Debug().
		Int("workers", p.workers).
		Msg("Starting worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit adds a task to the pool
func (p *Pool) Submit(task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", p.ctx.Err())
	}
}

// Wait closes the queue and blocks until every submitted task has settled
func (p *Pool) Wait() {
	close(p.tasks)
	p.wg.Wait()
	p.cancel()
}

// Errors returns the errors collected from failed tasks
func (p *Pool) Errors() []error {
	p.errorsMu.Lock()
	defer p.errorsMu.Unlock()
	return p.errors
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			if err := task(p.ctx); err != nil {
				p.errorsMu.Lock()
				p.errors = append(p.errors, err)
				p.errorsMu.Unlock()

				p.logger.Warn().
					Err(err).
					Int("worker_id", id).
					Msg("Task failed")
			}

		case <-p.ctx.Done():
			return
		}
	}
}
