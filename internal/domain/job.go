package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job encapsulates the lifecycle of one video transformation.
type Job struct {
	ID        string
	Status    JobStatus
	Progress  float64
	Message   string
	Filename  string
	SizeBytes int64
	Params    *TransformParams
	InputRef  string
	OutputRef string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
// Failure is reachable from every non-terminal state so cancellation and
// timeouts fold into a single terminal shape.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusQueued || to == JobStatusFailed
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

// Clone returns a deep copy so registry snapshots never alias caller state.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Params != nil {
		params := *j.Params
		cp.Params = &params
	}
	return &cp
}
