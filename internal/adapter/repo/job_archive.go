package repo

import (
	"context"
	"time"

	"aura/internal/domain"
	"aura/internal/infra"
	"aura/internal/sqlinline"
)

// ArchivedJob is one persisted terminal job.
type ArchivedJob struct {
	ID          string
	Status      string
	Filename    string
	SizeBytes   int64
	Prompt      *string
	StylePreset *string
	Quality     *string
	Progress    float64
	OutputRef   *string
	Error       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ArchivedAt  time.Time
}

// JobArchivePG persists terminal jobs to PostgreSQL. The in-process registry
// stays authoritative; the archive is an audit trail that survives restarts.
type JobArchivePG struct {
	db infra.SQLExecutor
}

func NewJobArchive(db infra.SQLExecutor) *JobArchivePG {
	return &JobArchivePG{db: db}
}

// EnsureSchema creates the archive table when it does not exist yet.
func (r *JobArchivePG) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, sqlinline.QEnsureJobArchive)
	return err
}

// RecordTerminal upserts a finished job, keyed by job id.
func (r *JobArchivePG) RecordTerminal(ctx context.Context, job *domain.Job) error {
	var prompt, preset, quality *string
	if job.Params != nil {
		prompt = &job.Params.Prompt
		if job.Params.StylePreset != "" {
			preset = &job.Params.StylePreset
		}
		q := string(job.Params.Quality)
		quality = &q
	}

	_, err := r.db.Exec(ctx, sqlinline.QArchiveTerminalJob,
		job.ID,
		string(job.Status),
		job.Filename,
		job.SizeBytes,
		prompt,
		preset,
		quality,
		job.Progress,
		nullable(job.OutputRef),
		nullable(job.Error),
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// ListRecent returns the most recently archived jobs, newest first.
func (r *JobArchivePG) ListRecent(ctx context.Context, limit int) ([]ArchivedJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, sqlinline.QListArchivedJobs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []ArchivedJob
	for rows.Next() {
		var j ArchivedJob
		if err := rows.Scan(
			&j.ID,
			&j.Status,
			&j.Filename,
			&j.SizeBytes,
			&j.Prompt,
			&j.StylePreset,
			&j.Quality,
			&j.Progress,
			&j.OutputRef,
			&j.Error,
			&j.CreatedAt,
			&j.UpdatedAt,
			&j.ArchivedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// OutputRefsBefore lists the output artifacts referenced by archive rows
// older than the cutoff, so callers can delete the blobs before purging.
func (r *JobArchivePG) OutputRefsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListArchiveOutputRefsBefore, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// PurgeBefore removes archive rows archived before the cutoff and reports
// how many were deleted.
func (r *JobArchivePG) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, sqlinline.QPurgeArchivedJobs, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
