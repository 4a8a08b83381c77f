package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"aura/internal/domain"
	"aura/internal/infra"
	"aura/internal/providers/diffusion"
	"aura/internal/providers/director"
	"aura/internal/registry"
	"aura/internal/storage"
)

type stubQueue struct {
	enqueue  func(id string, params *domain.TransformParams) (*domain.Job, error)
	depth    int
	capacity int
	calls    []string
}

func (s *stubQueue) Enqueue(id string, params *domain.TransformParams) (*domain.Job, error) {
	s.calls = append(s.calls, id)
	if s.enqueue == nil {
		return &domain.Job{ID: id, Status: domain.JobStatusQueued}, nil
	}
	return s.enqueue(id, params)
}

func (s *stubQueue) Depth() int    { return s.depth }
func (s *stubQueue) Capacity() int { return s.capacity }

type stubCanceler struct {
	result bool
	calls  []string
}

func (s *stubCanceler) Cancel(id string) bool {
	s.calls = append(s.calls, id)
	return s.result
}

type stubImageEngine struct {
	img     []byte
	err     error
	lastReq diffusion.Request
	width   int
	height  int
	calls   int
}

func (s *stubImageEngine) GenerateImage(_ context.Context, req diffusion.Request, width, height int) ([]byte, error) {
	s.calls++
	s.lastReq = req
	s.width, s.height = width, height
	if s.err != nil {
		return nil, s.err
	}
	return s.img, nil
}

func newTestApp(t *testing.T) (*App, *stubQueue, *stubCanceler) {
	t.Helper()

	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	queue := &stubQueue{capacity: 16}
	canceler := &stubCanceler{}
	app := &App{
		Cfg: &infra.Config{
			MaxUploadBytes: 100 * 1024 * 1024,
			StorageBackend: "fs",
		},
		Logger:     zerolog.Nop(),
		Registry:   registry.New(),
		Queue:      queue,
		Worker:     canceler,
		Store:      store,
		Director:   director.New(),
		Engine:     &stubImageEngine{img: []byte("png bytes")},
		EngineMode: "synthetic",
	}
	return app, queue, canceler
}

// withJobID injects the chi route parameter the handlers read.
func withJobID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("job_id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}
