package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"aura/internal/domain"
	"aura/internal/storage"
)

type uploadResponse struct {
	JobID     string `json:"job_id"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type transformResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	EstimatedTime int    `json:"estimated_time"`
}

type jobView struct {
	JobID           string    `json:"job_id"`
	Status          string    `json:"status"`
	Progress        float64   `json:"progress"`
	Message         string    `json:"message"`
	Error           string    `json:"error,omitempty"`
	OutputAvailable bool      `json:"output_available"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func viewOf(job *domain.Job) jobView {
	return jobView{
		JobID:           job.ID,
		Status:          string(job.Status),
		Progress:        math.Round(job.Progress*10) / 10,
		Message:         job.Message,
		Error:           job.Error,
		OutputAvailable: job.Status == domain.JobStatusCompleted && job.OutputRef != "",
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

// VideoUpload accepts a multipart video, persists it, and registers a
// pending job keyed to the stored artifact.
func (a *App) VideoUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if !domain.ValidVideoExtension(header.Filename) {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported file format, allowed: .mp4, .avi, .mov, .mkv, .webm")
		return
	}

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	ref, size, err := a.Store.Save(r.Context(), "uploads/"+id+ext, file, a.Cfg.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("file exceeds the %d MB limit", a.Cfg.MaxUploadBytes/(1024*1024)))
			return
		}
		a.Logger.Error().Err(err).Msg("upload store failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}
	if size == 0 {
		_ = a.Store.Remove(r.Context(), ref)
		a.error(w, http.StatusBadRequest, "bad_request", "uploaded file is empty")
		return
	}

	job := a.Registry.Create(id, id+ext, ref, size)
	a.Logger.Info().Str("job_id", job.ID).Int64("size_bytes", size).Msg("video uploaded")

	a.json(w, http.StatusOK, uploadResponse{
		JobID:     job.ID,
		Filename:  job.Filename,
		SizeBytes: job.SizeBytes,
		Status:    string(job.Status),
		Message:   job.Message,
	})
}

// VideoTransform validates the creative parameters and admits the job to
// the queue. The handler returns immediately; the worker does the rest.
func (a *App) VideoTransform(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	var params domain.TransformParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if err := params.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if _, err := a.Queue.Enqueue(jobID, &params); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrQueueFull):
			a.error(w, http.StatusTooManyRequests, "queue_full", "transformation queue is full, retry later")
		case errors.Is(err, domain.ErrConflict):
			a.error(w, http.StatusConflict, "conflict", "job was already submitted")
		default:
			a.Logger.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to queue transformation")
		}
		return
	}

	a.json(w, http.StatusAccepted, transformResponse{
		JobID:         jobID,
		Status:        string(domain.JobStatusQueued),
		Message:       "Video transformation started",
		EstimatedTime: 300,
	})
}

// VideoStatus returns a point-in-time job snapshot.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	job, err := a.Registry.Get(chi.URLParam(r, "job_id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, viewOf(job))
}

// VideoJobs lists all known jobs, newest first.
func (a *App) VideoJobs(w http.ResponseWriter, r *http.Request) {
	jobs := a.Registry.List()
	items := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, viewOf(j))
	}
	a.json(w, http.StatusOK, map[string]any{"total": len(items), "jobs": items})
}

// VideoDownload streams the finished artifact for a completed job.
func (a *App) VideoDownload(w http.ResponseWriter, r *http.Request) {
	job, err := a.Registry.Get(chi.URLParam(r, "job_id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	switch job.Status {
	case domain.JobStatusCompleted:
	case domain.JobStatusFailed:
		msg := job.Error
		if msg == "" {
			msg = "transformation failed"
		}
		a.error(w, http.StatusConflict, "failed", msg)
		return
	default:
		a.error(w, http.StatusConflict, "not_ready", "job is not completed yet")
		return
	}

	rc, size, err := a.Store.Open(r.Context(), job.OutputRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "output file not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("output open failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to open output")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "aura_transformed_"+job.ID+".mp4"))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("download interrupted")
	}
}

// VideoCancel stops a job. Pending and queued jobs fail immediately;
// processing jobs are signaled and fold into failed cooperatively.
func (a *App) VideoCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Registry.Get(jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	switch job.Status {
	case domain.JobStatusPending, domain.JobStatusQueued:
		canceled, err := a.Registry.Transition(jobID, job.Status, domain.JobStatusFailed, func(j *domain.Job) {
			j.Error = domain.ErrCanceled.Error()
			j.Message = "Transformation failed: " + domain.ErrCanceled.Error()
		})
		if err != nil {
			a.error(w, http.StatusConflict, "conflict", "job state changed, retry")
			return
		}
		a.json(w, http.StatusOK, viewOf(canceled))
	case domain.JobStatusProcessing:
		if !a.Worker.Cancel(jobID) {
			a.error(w, http.StatusConflict, "conflict", "job is finishing and can no longer be canceled")
			return
		}
		a.json(w, http.StatusAccepted, map[string]string{
			"job_id":  jobID,
			"status":  string(domain.JobStatusProcessing),
			"message": "Cancellation requested",
		})
	default:
		a.error(w, http.StatusConflict, "conflict", "job already finished")
	}
}
