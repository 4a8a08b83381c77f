// Package scheduler admits submitted jobs into a bounded FIFO queue and
// dispatches them to a fixed number of worker slots.
package scheduler

import (
	"context"
	"sync"

	"aura/internal/domain"
	"aura/internal/infra"
	"aura/internal/registry"
)

// Runner executes one job to a terminal state.
type Runner interface {
	Run(ctx context.Context, jobID string)
}

// Scheduler owns the queue between submission and execution. Admission is
// serialized so the capacity check, the pending->queued transition and the
// channel send happen as one step; a full queue is reported before any
// state changes.
type Scheduler struct {
	registry *registry.Registry
	runner   Runner
	logger   infra.Logger
	slots    int

	mu    sync.Mutex
	queue chan string

	wg sync.WaitGroup
}

func New(reg *registry.Registry, runner Runner, slots, capacity int, logger infra.Logger) *Scheduler {
	if slots < 1 {
		slots = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Scheduler{
		registry: reg,
		runner:   runner,
		logger:   logger,
		slots:    slots,
		queue:    make(chan string, capacity),
	}
}

// Enqueue attaches params and moves a pending job into the queue.
// Returns domain.ErrQueueFull when the queue has no room (the job stays
// pending and can be resubmitted), domain.ErrConflict when the job is not
// pending, domain.ErrNotFound for unknown ids.
func (s *Scheduler) Enqueue(id string, params *domain.TransformParams) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == cap(s.queue) {
		return nil, domain.ErrQueueFull
	}

	job, err := s.registry.Transition(id, domain.JobStatusPending, domain.JobStatusQueued, func(j *domain.Job) {
		j.Params = params
		j.Message = "Starting video transformation..."
	})
	if err != nil {
		return nil, err
	}

	// Space was reserved under the lock, so this send cannot block.
	s.queue <- id

	s.logger.Info().Str("job_id", id).Int("queue_depth", len(s.queue)).Msg("job queued")
	return job, nil
}

// Depth reports how many jobs are waiting for a slot.
func (s *Scheduler) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Capacity reports the queue bound.
func (s *Scheduler) Capacity() int {
	return cap(s.queue)
}

// Start launches the worker slots. They exit when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.slots; i++ {
		s.wg.Add(1)
		go func(slot int) {
			defer s.wg.Done()
			log := s.logger.With().Int("slot", slot).Logger()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-s.queue:
					log.Info().Str("job_id", id).Msg("job dispatched")
					s.runner.Run(ctx, id)
				}
			}
		}(i)
	}
}

// Wait blocks until every slot has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
