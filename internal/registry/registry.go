// Package registry owns every job record in the process. All writes go
// through compare-and-swap transitions guarded by a per-job mutex, while
// reads load an immutable snapshot pointer and never touch a lock shared
// with writers. Status polling therefore never contends with a running
// transformation.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"aura/internal/domain"
)

type entry struct {
	mu   sync.Mutex
	snap atomic.Pointer[domain.Job]
}

// Registry is the single authority for job state.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*entry
	order []string
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*entry)}
}

// Create registers a freshly uploaded input and returns the pending job.
// The caller assigns the id and must have persisted the input artifact
// under it before calling.
func (r *Registry) Create(id, filename, inputRef string, sizeBytes int64) *domain.Job {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        id,
		Status:    domain.JobStatusPending,
		Message:   "Video uploaded successfully",
		Filename:  filename,
		SizeBytes: sizeBytes,
		InputRef:  inputRef,
		CreatedAt: now,
		UpdatedAt: now,
	}

	e := &entry{}
	e.snap.Store(job)

	r.mu.Lock()
	r.jobs[job.ID] = e
	r.order = append(r.order, job.ID)
	r.mu.Unlock()

	return job.Clone()
}

// Get returns a point-in-time copy of the job.
func (r *Registry) Get(id string) (*domain.Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.snap.Load().Clone(), nil
}

// List returns snapshots of all jobs, newest first.
func (r *Registry) List() []*domain.Job {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		entries = append(entries, r.jobs[r.order[i]])
	}
	r.mu.RUnlock()

	jobs := make([]*domain.Job, 0, len(entries))
	for _, e := range entries {
		jobs = append(jobs, e.snap.Load().Clone())
	}
	return jobs
}

// Count returns the number of registered jobs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Transition atomically moves a job from one status to another. It fails
// with domain.ErrConflict when the current status differs from the expected
// one or the edge is not a legal lifecycle transition. The optional mutate
// callback adjusts the successor record before it is published.
func (r *Registry) Transition(id string, from, to domain.JobStatus, mutate func(*domain.Job)) (*domain.Job, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if cur.Status != from {
		return nil, domain.ErrConflict
	}
	if !domain.CanTransition(from, to) {
		return nil, domain.ErrConflict
	}

	next := cur.Clone()
	next.Status = to
	if mutate != nil {
		mutate(next)
	}
	next.UpdatedAt = time.Now().UTC()
	e.snap.Store(next)

	return next.Clone(), nil
}

// SetProgress publishes frame progress for a processing job. Progress is
// processed/total scaled to 0..100 and never decreases.
func (r *Registry) SetProgress(id string, processed, total int, message string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.snap.Load()
	if cur.Status != domain.JobStatusProcessing {
		return domain.ErrConflict
	}

	pct := cur.Progress
	if total > 0 {
		pct = float64(processed) / float64(total) * 100
	}
	if pct < cur.Progress {
		pct = cur.Progress
	}
	if pct > 100 {
		pct = 100
	}

	next := cur.Clone()
	next.Progress = pct
	if message != "" {
		next.Message = message
	}
	next.UpdatedAt = time.Now().UTC()
	e.snap.Store(next)

	return nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}
