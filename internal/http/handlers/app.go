// Package handlers exposes the HTTP surface of the service. Handlers are
// methods on App; every dependency crossing a goroutine or process boundary
// sits behind a small interface so tests can stub it.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"aura/internal/domain"
	"aura/internal/infra"
	"aura/internal/providers/diffusion"
	"aura/internal/providers/director"
	"aura/internal/registry"
	"aura/internal/storage"
)

// JobQueue admits validated transformation requests.
type JobQueue interface {
	Enqueue(id string, params *domain.TransformParams) (*domain.Job, error)
	Depth() int
	Capacity() int
}

// Canceler signals a processing job to stop.
type Canceler interface {
	Cancel(id string) bool
}

// ImageEngine renders a single still image from a composed prompt.
type ImageEngine interface {
	GenerateImage(ctx context.Context, req diffusion.Request, width, height int) ([]byte, error)
}

type App struct {
	Cfg        *infra.Config
	Logger     infra.Logger
	Registry   *registry.Registry
	Queue      JobQueue
	Worker     Canceler
	Store      storage.Store
	Director   *director.Director
	Engine     ImageEngine
	EngineMode string
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}
