package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"aura/internal/domain"
	"aura/internal/providers/diffusion"
)

type imageGenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Conditions  []string `json:"conditions"`
	StylePreset string   `json:"style_preset"`
	Quality     string   `json:"quality"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
}

// ImageGenerate renders one still image synchronously. It reuses the
// director's prompt composition and the engine, but never touches the
// job registry or the queue.
func (a *App) ImageGenerate(w http.ResponseWriter, r *http.Request) {
	var req imageGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}

	params := domain.TransformParams{
		Prompt:      req.Prompt,
		Conditions:  req.Conditions,
		StylePreset: req.StylePreset,
		Quality:     domain.Quality(req.Quality),
	}
	if err := params.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	img, err := a.Engine.GenerateImage(r.Context(), diffusion.Request{
		Prompt:         a.Director.Compose(params),
		NegativePrompt: domain.NegativePrompt,
		Steps:          params.Quality.Steps(),
		GuidanceScale:  params.Quality.GuidanceScale(),
	}, req.Width, req.Height)
	if err != nil {
		if errors.Is(err, domain.ErrEngineFatal) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("image generation failed")
		a.error(w, http.StatusBadGateway, "engine_unavailable", "image generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}
