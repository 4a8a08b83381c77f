// Package worker executes queued transformation jobs: it decodes the input
// into frames, drives the engine frame by frame with bounded retries,
// assembles the styled frames and publishes the output atomically.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"aura/internal/domain"
	"aura/internal/infra"
	"aura/internal/providers/diffusion"
	"aura/internal/providers/director"
	"aura/internal/registry"
	"aura/internal/storage"
	"aura/internal/video"
)

// Engine is the frame transformation contract the worker drives.
type Engine interface {
	Transform(ctx context.Context, frame []byte, req diffusion.Request) (diffusion.Result, error)
}

// Archiver receives terminal jobs for best-effort persistence.
type Archiver interface {
	RecordTerminal(ctx context.Context, job *domain.Job) error
}

// Config bounds one job run.
type Config struct {
	JobTimeout     time.Duration
	FrameRetryMax  int
	FrameRetryBase time.Duration
	TargetFPS      int
	MaxClipSeconds int
	MaxWidth       int
	MaxHeight      int
}

// Worker runs jobs one at a time per scheduler slot.
type Worker struct {
	registry *registry.Registry
	store    storage.Store
	codec    video.Codec
	engine   Engine
	director *director.Director
	archive  Archiver
	cfg      Config
	logger   infra.Logger

	cancels sync.Map
}

func New(reg *registry.Registry, store storage.Store, codec video.Codec, engine Engine, dir *director.Director, archive Archiver, cfg Config, logger infra.Logger) *Worker {
	if cfg.TargetFPS < 1 {
		cfg.TargetFPS = 30
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	if cfg.FrameRetryBase <= 0 {
		cfg.FrameRetryBase = 500 * time.Millisecond
	}
	return &Worker{
		registry: reg,
		store:    store,
		codec:    codec,
		engine:   engine,
		director: dir,
		archive:  archive,
		cfg:      cfg,
		logger:   logger,
	}
}

// Cancel requests cooperative cancellation of a job that is currently
// processing. It reports whether a running job was signaled.
func (w *Worker) Cancel(id string) bool {
	if c, ok := w.cancels.Load(id); ok {
		c.(context.CancelFunc)()
		return true
	}
	return false
}

// Run drives one job from queued to a terminal state. Jobs that left the
// queued state while waiting (canceled submissions) are skipped.
func (w *Worker) Run(ctx context.Context, id string) {
	job, err := w.registry.Transition(id, domain.JobStatusQueued, domain.JobStatusProcessing, func(j *domain.Job) {
		j.Message = "Processing video frames..."
	})
	if err != nil {
		w.logger.Debug().Str("job_id", id).Err(err).Msg("skipping stale queue entry")
		return
	}

	log := w.logger.With().Str("job_id", id).Logger()
	log.Info().Str("input", job.InputRef).Msg("job started")

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	w.cancels.Store(id, cancel)
	defer func() {
		cancel()
		w.cancels.Delete(id)
	}()

	started := time.Now()
	outputRef, err := w.process(jobCtx, log, job)
	if err != nil {
		w.fail(log, id, err)
		return
	}

	done, err := w.registry.Transition(id, domain.JobStatusProcessing, domain.JobStatusCompleted, func(j *domain.Job) {
		j.OutputRef = outputRef
		j.Progress = 100
		j.Message = "Video transformation completed successfully"
		j.Error = ""
	})
	if err != nil {
		log.Error().Err(err).Msg("completed job could not be recorded")
		return
	}

	log.Info().Str("output", outputRef).Dur("took", time.Since(started)).Msg("job completed")
	w.recordTerminal(done)
}

func (w *Worker) process(ctx context.Context, log infra.Logger, job *domain.Job) (string, error) {
	if job.Params == nil {
		return "", fmt.Errorf("job has no transform params: %w", domain.ErrValidation)
	}

	workDir, err := os.MkdirTemp(w.store.StagingDir(), "job-"+job.ID+"-")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath, err := w.fetchInput(ctx, job, workDir)
	if err != nil {
		return "", err
	}

	meta, err := w.codec.Probe(ctx, inputPath)
	if err != nil {
		return "", fmt.Errorf("probe input: %v: %w", err, domain.ErrValidation)
	}
	if w.cfg.MaxClipSeconds > 0 && meta.Duration > time.Duration(w.cfg.MaxClipSeconds)*time.Second {
		return "", fmt.Errorf("video duration %.1fs exceeds the %ds limit: %w", meta.Duration.Seconds(), w.cfg.MaxClipSeconds, domain.ErrValidation)
	}
	if w.cfg.MaxWidth > 0 && w.cfg.MaxHeight > 0 && (meta.Width > w.cfg.MaxWidth || meta.Height > w.cfg.MaxHeight) {
		return "", fmt.Errorf("resolution %dx%d exceeds the %dx%d limit: %w", meta.Width, meta.Height, w.cfg.MaxWidth, w.cfg.MaxHeight, domain.ErrValidation)
	}

	framesDir := filepath.Join(workDir, "frames")
	total, err := w.codec.ExtractFrames(ctx, inputPath, w.cfg.TargetFPS, framesDir)
	if err != nil {
		if ctx.Err() != nil {
			return "", w.budgetErr(ctx)
		}
		return "", fmt.Errorf("extract frames: %w", err)
	}
	log.Info().Int("frames", total).Dur("duration", meta.Duration).Msg("input decoded")

	styledDir := filepath.Join(workDir, "styled")
	if err := os.MkdirAll(styledDir, 0o755); err != nil {
		return "", fmt.Errorf("create styled dir: %w", err)
	}

	params := *job.Params
	req := diffusion.Request{
		Prompt:         w.director.Compose(params),
		NegativePrompt: domain.NegativePrompt,
		Steps:          params.Quality.Steps(),
		GuidanceScale:  params.Quality.GuidanceScale(),
	}

	if err := w.registry.SetProgress(job.ID, 0, total, "Applying Stable Video Diffusion..."); err != nil {
		return "", err
	}

	var engineCtx []byte
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			return "", w.budgetErr(ctx)
		}

		frame, err := os.ReadFile(video.FramePath(framesDir, i))
		if err != nil {
			return "", fmt.Errorf("read frame %d: %w", i+1, err)
		}

		req.PriorContext = engineCtx
		res, err := w.transformFrame(ctx, frame, req)
		if err != nil {
			return "", fmt.Errorf("frame %d/%d: %w", i+1, total, err)
		}
		engineCtx = res.Context

		if err := os.WriteFile(video.FramePath(styledDir, i), res.Frame, 0o644); err != nil {
			return "", fmt.Errorf("write styled frame %d: %w", i+1, err)
		}

		if err := w.registry.SetProgress(job.ID, i+1, total, ""); err != nil {
			return "", err
		}
	}

	if err := w.registry.SetProgress(job.ID, total, total, "Generating final video..."); err != nil {
		return "", err
	}

	renderPath := filepath.Join(workDir, "render.mp4")
	if err := w.codec.EncodeVideo(ctx, styledDir, total, w.cfg.TargetFPS, renderPath); err != nil {
		if ctx.Err() != nil {
			return "", w.budgetErr(ctx)
		}
		return "", fmt.Errorf("encode output: %w", err)
	}

	outputRef, err := w.store.Publish(ctx, "outputs/aura_"+job.ID+".mp4", renderPath)
	if err != nil {
		if ctx.Err() != nil {
			return "", w.budgetErr(ctx)
		}
		return "", fmt.Errorf("publish output: %w", err)
	}
	return outputRef, nil
}

func (w *Worker) fetchInput(ctx context.Context, job *domain.Job, workDir string) (string, error) {
	rc, _, err := w.store.Open(ctx, job.InputRef)
	if err != nil {
		return "", fmt.Errorf("open input artifact: %w", err)
	}
	defer rc.Close()

	ext := strings.ToLower(filepath.Ext(job.InputRef))
	if ext == "" {
		ext = ".mp4"
	}
	inputPath := filepath.Join(workDir, "input"+ext)
	f, err := os.Create(inputPath)
	if err != nil {
		return "", fmt.Errorf("stage input: %w", err)
	}
	_, err = io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("stage input: %w", err)
	}
	return inputPath, nil
}

// transformFrame calls the engine with bounded retries and exponential
// backoff on transient failures. Fatal errors abort immediately.
func (w *Worker) transformFrame(ctx context.Context, frame []byte, req diffusion.Request) (diffusion.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= w.cfg.FrameRetryMax; attempt++ {
		if attempt > 0 {
			delay := w.cfg.FrameRetryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return diffusion.Result{}, w.budgetErr(ctx)
			case <-time.After(delay):
			}
		}

		res, err := w.engine.Transform(ctx, frame, req)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return diffusion.Result{}, w.budgetErr(ctx)
		}
		if !errors.Is(err, domain.ErrEngineTransient) {
			return diffusion.Result{}, err
		}
		lastErr = err
	}
	return diffusion.Result{}, fmt.Errorf("%v: %w", lastErr, domain.ErrRetryExhausted)
}

func (w *Worker) budgetErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout
	}
	return domain.ErrCanceled
}

func (w *Worker) fail(log infra.Logger, id string, cause error) {
	message := cause.Error()
	job, err := w.registry.Transition(id, domain.JobStatusProcessing, domain.JobStatusFailed, func(j *domain.Job) {
		j.Error = message
		j.Message = "Transformation failed: " + message
	})
	if err != nil {
		log.Error().Err(err).Str("cause", message).Msg("failed job could not be recorded")
		return
	}
	log.Warn().Str("cause", message).Msg("job failed")
	w.recordTerminal(job)
}

// recordTerminal hands the finished job to the archive. Failures are logged
// and never affect the job outcome.
func (w *Worker) recordTerminal(job *domain.Job) {
	if w.archive == nil || job == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.archive.RecordTerminal(ctx, job); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("archive write failed")
	}
}
