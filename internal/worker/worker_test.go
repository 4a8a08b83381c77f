package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"aura/internal/domain"
	"aura/internal/providers/diffusion"
	"aura/internal/providers/director"
	"aura/internal/registry"
	"aura/internal/storage"
	"aura/internal/video"
)

type stubCodec struct {
	meta   video.Meta
	frames int
}

func (c *stubCodec) Probe(ctx context.Context, path string) (video.Meta, error) {
	return c.meta, nil
}

func (c *stubCodec) ExtractFrames(ctx context.Context, path string, fps int, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	for i := 0; i < c.frames; i++ {
		if err := os.WriteFile(video.FramePath(dir, i), []byte("raw-"+strconv.Itoa(i)), 0o644); err != nil {
			return 0, err
		}
	}
	return c.frames, nil
}

func (c *stubCodec) EncodeVideo(ctx context.Context, dir string, frames, fps int, outPath string) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "render %d@%d\n", frames, fps)
	for i := 0; i < frames; i++ {
		b, err := os.ReadFile(video.FramePath(dir, i))
		if err != nil {
			return err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return os.WriteFile(outPath, buf.Bytes(), 0o644)
}

// stubEngine accepts frames of the form "raw-N" and answers with
// "styled-N" plus a context token "ctx-N". script decides per frame and
// attempt whether the call fails; hold blocks until the context ends.
type stubEngine struct {
	mu       sync.Mutex
	attempts map[int]int
	priors   []string
	prompt   string
	negative string
	steps    int
	script   func(frame, attempt int) error
	hold     bool
	started  chan struct{}
	once     sync.Once
}

func (e *stubEngine) Transform(ctx context.Context, frame []byte, req diffusion.Request) (diffusion.Result, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(string(frame), "raw-"))
	if err != nil {
		return diffusion.Result{}, fmt.Errorf("unexpected frame payload %q", frame)
	}

	e.mu.Lock()
	if e.attempts == nil {
		e.attempts = make(map[int]int)
	}
	e.attempts[idx]++
	attempt := e.attempts[idx]
	if attempt == 1 {
		e.priors = append(e.priors, string(req.PriorContext))
	}
	e.prompt = req.Prompt
	e.negative = req.NegativePrompt
	e.steps = req.Steps
	script := e.script
	hold := e.hold
	e.mu.Unlock()

	if e.started != nil {
		e.once.Do(func() { close(e.started) })
	}
	if hold {
		<-ctx.Done()
		return diffusion.Result{}, ctx.Err()
	}
	if script != nil {
		if err := script(idx, attempt); err != nil {
			return diffusion.Result{}, err
		}
	}
	return diffusion.Result{
		Frame:   []byte("styled-" + strconv.Itoa(idx)),
		Context: []byte("ctx-" + strconv.Itoa(idx)),
	}, nil
}

func (e *stubEngine) attemptCount(frame int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[frame]
}

func (e *stubEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.attempts)
}

type recordingArchive struct {
	mu   sync.Mutex
	jobs []*domain.Job
	err  error
}

func (a *recordingArchive) RecordTerminal(ctx context.Context, job *domain.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs = append(a.jobs, job)
	return a.err
}

type fixture struct {
	reg    *registry.Registry
	store  *storage.FileStore
	worker *Worker
}

func defaultCfg() Config {
	return Config{
		JobTimeout:     5 * time.Second,
		FrameRetryMax:  3,
		FrameRetryBase: time.Millisecond,
		TargetFPS:      30,
		MaxClipSeconds: 60,
		MaxWidth:       1920,
		MaxHeight:      1080,
	}
}

func defaultMeta() video.Meta {
	return video.Meta{Duration: 2 * time.Second, Width: 1280, Height: 720, FPS: 30}
}

func newFixture(t *testing.T, engine Engine, codec video.Codec, archive Archiver, cfg Config) *fixture {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	reg := registry.New()
	w := New(reg, store, codec, engine, director.New(), archive, cfg, zerolog.Nop())
	return &fixture{reg: reg, store: store, worker: w}
}

func (f *fixture) seedQueued(t *testing.T, id string) {
	t.Helper()
	ref, size, err := f.store.Save(context.Background(), "uploads/"+id+".mp4", strings.NewReader("source-bytes"), 1<<20)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	f.reg.Create(id, id+".mp4", ref, size)

	params := &domain.TransformParams{
		Prompt:      "neon skyline",
		Conditions:  []string{"night", "rain"},
		StylePreset: "cinematic",
		Quality:     domain.QualityHigh,
	}
	if _, err := f.reg.Transition(id, domain.JobStatusPending, domain.JobStatusQueued, func(j *domain.Job) {
		j.Params = params
		j.Message = "Starting video transformation..."
	}); err != nil {
		t.Fatalf("queue transition: %v", err)
	}
}

func (f *fixture) mustGet(t *testing.T, id string) *domain.Job {
	t.Helper()
	job, err := f.reg.Get(id)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", id, err)
	}
	return job
}

func (f *fixture) assertStagingClean(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.store.StagingDir())
	if err != nil {
		t.Fatalf("ReadDir(staging) error = %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "job-") {
			t.Fatalf("staging dir still holds %s", e.Name())
		}
	}
}

func TestRunCompletesJob(t *testing.T) {
	engine := &stubEngine{}
	codec := &stubCodec{meta: defaultMeta(), frames: 10}
	f := newFixture(t, engine, codec, nil, defaultCfg())
	f.seedQueued(t, "job-1")

	f.worker.Run(context.Background(), "job-1")

	job := f.mustGet(t, "job-1")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want %q (error: %s)", job.Status, domain.JobStatusCompleted, job.Error)
	}
	if job.Progress != 100 {
		t.Fatalf("progress = %v, want 100", job.Progress)
	}
	if job.Message != "Video transformation completed successfully" {
		t.Fatalf("message = %q", job.Message)
	}
	if job.OutputRef == "" {
		t.Fatal("output ref not recorded")
	}

	rc, _, err := f.store.Open(context.Background(), job.OutputRef)
	if err != nil {
		t.Fatalf("Open(output) error = %v", err)
	}
	defer rc.Close()
	out, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(out), "render 10@30\n") {
		t.Fatalf("output header = %q", strings.SplitN(string(out), "\n", 2)[0])
	}
	for _, want := range []string{"styled-0\n", "styled-9\n"} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("output missing %q", want)
		}
	}

	for i, prior := range engine.priors {
		want := ""
		if i > 0 {
			want = "ctx-" + strconv.Itoa(i-1)
		}
		if prior != want {
			t.Fatalf("frame %d prior context = %q, want %q", i+1, prior, want)
		}
	}

	if engine.negative != domain.NegativePrompt {
		t.Fatalf("negative prompt = %q", engine.negative)
	}
	if engine.steps != domain.QualityHigh.Steps() {
		t.Fatalf("steps = %d, want %d", engine.steps, domain.QualityHigh.Steps())
	}
	if !strings.HasPrefix(engine.prompt, "neon skyline") {
		t.Fatalf("prompt = %q, want user prompt first", engine.prompt)
	}
	if !strings.Contains(engine.prompt, "cinematic lighting") {
		t.Fatalf("prompt = %q, want style modifier applied", engine.prompt)
	}

	f.assertStagingClean(t)
}

func TestRunFatalEngineErrorFailsJob(t *testing.T) {
	engine := &stubEngine{script: func(frame, attempt int) error {
		if frame == 6 {
			return fmt.Errorf("engine: status 400: prompt rejected: %w", domain.ErrEngineFatal)
		}
		return nil
	}}
	codec := &stubCodec{meta: defaultMeta(), frames: 10}
	f := newFixture(t, engine, codec, nil, defaultCfg())
	f.seedQueued(t, "job-1")

	f.worker.Run(context.Background(), "job-1")

	job := f.mustGet(t, "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want %q", job.Status, domain.JobStatusFailed)
	}
	if !strings.HasPrefix(job.Message, "Transformation failed: ") {
		t.Fatalf("message = %q", job.Message)
	}
	if !strings.Contains(job.Error, "frame 7/10") {
		t.Fatalf("error = %q, want failing frame named", job.Error)
	}
	if job.Progress != 60 {
		t.Fatalf("progress = %v, want 60", job.Progress)
	}
	if job.OutputRef != "" {
		t.Fatalf("output ref = %q, want empty", job.OutputRef)
	}
	if got := engine.attemptCount(6); got != 1 {
		t.Fatalf("fatal frame attempted %d times, want 1", got)
	}
	f.assertStagingClean(t)
}

func TestRunRetriesTransientEngineErrors(t *testing.T) {
	engine := &stubEngine{script: func(frame, attempt int) error {
		if frame == 2 && attempt <= 2 {
			return fmt.Errorf("engine: connection reset: %w", domain.ErrEngineTransient)
		}
		return nil
	}}
	codec := &stubCodec{meta: defaultMeta(), frames: 4}
	f := newFixture(t, engine, codec, nil, defaultCfg())
	f.seedQueued(t, "job-1")

	f.worker.Run(context.Background(), "job-1")

	job := f.mustGet(t, "job-1")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want %q (error: %s)", job.Status, domain.JobStatusCompleted, job.Error)
	}
	if got := engine.attemptCount(2); got != 3 {
		t.Fatalf("flaky frame attempted %d times, want 3", got)
	}
}

func TestRunRetryBudgetExhausted(t *testing.T) {
	engine := &stubEngine{script: func(frame, attempt int) error {
		return fmt.Errorf("engine: status 503: %w", domain.ErrEngineTransient)
	}}
	codec := &stubCodec{meta: defaultMeta(), frames: 3}
	cfg := defaultCfg()
	cfg.FrameRetryMax = 2
	f := newFixture(t, engine, codec, nil, cfg)
	f.seedQueued(t, "job-1")

	f.worker.Run(context.Background(), "job-1")

	job := f.mustGet(t, "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want %q", job.Status, domain.JobStatusFailed)
	}
	if !strings.Contains(job.Error, domain.ErrRetryExhausted.Error()) {
		t.Fatalf("error = %q, want retry exhaustion", job.Error)
	}
	if got := engine.attemptCount(0); got != 3 {
		t.Fatalf("first frame attempted %d times, want 3", got)
	}
}

func TestRunTimesOut(t *testing.T) {
	engine := &stubEngine{hold: true}
	codec := &stubCodec{meta: defaultMeta(), frames: 3}
	cfg := defaultCfg()
	cfg.JobTimeout = 50 * time.Millisecond
	f := newFixture(t, engine, codec, nil, cfg)
	f.seedQueued(t, "job-1")

	f.worker.Run(context.Background(), "job-1")

	job := f.mustGet(t, "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want %q", job.Status, domain.JobStatusFailed)
	}
	if !strings.Contains(job.Error, domain.ErrTimeout.Error()) {
		t.Fatalf("error = %q, want timeout", job.Error)
	}
}

func TestCancelStopsRunningJob(t *testing.T) {
	started := make(chan struct{})
	engine := &stubEngine{hold: true, started: started}
	codec := &stubCodec{meta: defaultMeta(), frames: 3}
	f := newFixture(t, engine, codec, nil, defaultCfg())
	f.seedQueued(t, "job-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.worker.Run(context.Background(), "job-1")
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("engine was never called")
	}

	running := f.mustGet(t, "job-1")
	if running.Status != domain.JobStatusProcessing {
		t.Fatalf("status while running = %q, want %q", running.Status, domain.JobStatusProcessing)
	}
	if running.Message != "Applying Stable Video Diffusion..." {
		t.Fatalf("message while running = %q", running.Message)
	}

	if !f.worker.Cancel("job-1") {
		t.Fatal("Cancel() = false, want true for running job")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	job := f.mustGet(t, "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want %q", job.Status, domain.JobStatusFailed)
	}
	if !strings.Contains(job.Error, domain.ErrCanceled.Error()) {
		t.Fatalf("error = %q, want cancellation", job.Error)
	}
	if f.worker.Cancel("job-1") {
		t.Fatal("Cancel() = true after job finished, want false")
	}
	f.assertStagingClean(t)
}

func TestRunSkipsJobsNoLongerQueued(t *testing.T) {
	engine := &stubEngine{}
	codec := &stubCodec{meta: defaultMeta(), frames: 2}
	f := newFixture(t, engine, codec, nil, defaultCfg())
	f.seedQueued(t, "job-1")

	if _, err := f.reg.Transition("job-1", domain.JobStatusQueued, domain.JobStatusFailed, func(j *domain.Job) {
		j.Error = "canceled before start"
	}); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	f.worker.Run(context.Background(), "job-1")

	job := f.mustGet(t, "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %q, want %q", job.Status, domain.JobStatusFailed)
	}
	if job.Error != "canceled before start" {
		t.Fatalf("error = %q, want original failure kept", job.Error)
	}
	if got := engine.callCount(); got != 0 {
		t.Fatalf("engine called for %d frames, want 0", got)
	}
}

func TestRunRejectsClipsOverLimits(t *testing.T) {
	cases := []struct {
		name string
		meta video.Meta
		want string
	}{
		{
			name: "too long",
			meta: video.Meta{Duration: 90 * time.Second, Width: 640, Height: 480, FPS: 30},
			want: "exceeds the 60s limit",
		},
		{
			name: "too large",
			meta: video.Meta{Duration: 5 * time.Second, Width: 3840, Height: 2160, FPS: 30},
			want: "exceeds the 1920x1080 limit",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &stubEngine{}
			codec := &stubCodec{meta: tc.meta, frames: 5}
			f := newFixture(t, engine, codec, nil, defaultCfg())
			f.seedQueued(t, "job-1")

			f.worker.Run(context.Background(), "job-1")

			job := f.mustGet(t, "job-1")
			if job.Status != domain.JobStatusFailed {
				t.Fatalf("status = %q, want %q", job.Status, domain.JobStatusFailed)
			}
			if !strings.Contains(job.Error, tc.want) {
				t.Fatalf("error = %q, want %q", job.Error, tc.want)
			}
			if got := engine.callCount(); got != 0 {
				t.Fatalf("engine called for %d frames, want 0", got)
			}
		})
	}
}

func TestRunArchivesTerminalJobs(t *testing.T) {
	archive := &recordingArchive{}
	engine := &stubEngine{}
	codec := &stubCodec{meta: defaultMeta(), frames: 2}
	f := newFixture(t, engine, codec, archive, defaultCfg())
	f.seedQueued(t, "job-1")

	f.worker.Run(context.Background(), "job-1")

	if len(archive.jobs) != 1 {
		t.Fatalf("archived %d jobs, want 1", len(archive.jobs))
	}
	if archive.jobs[0].Status != domain.JobStatusCompleted {
		t.Fatalf("archived status = %q, want %q", archive.jobs[0].Status, domain.JobStatusCompleted)
	}
}

func TestRunArchiveFailureDoesNotAffectJob(t *testing.T) {
	archive := &recordingArchive{err: fmt.Errorf("archive unavailable")}
	engine := &stubEngine{}
	codec := &stubCodec{meta: defaultMeta(), frames: 2}
	f := newFixture(t, engine, codec, archive, defaultCfg())
	f.seedQueued(t, "job-1")

	f.worker.Run(context.Background(), "job-1")

	job := f.mustGet(t, "job-1")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %q, want %q (error: %s)", job.Status, domain.JobStatusCompleted, job.Error)
	}
}
