package handlers

import (
	"encoding/json"
	"net/http"

	"aura/internal/domain"
)

func (a *App) DirectorStyles(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"styles": domain.StylePresets()})
}

func (a *App) DirectorAtmospheres(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"atmospheres": domain.AtmosphereOptions()})
}

func (a *App) DirectorSuggestions(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	a.json(w, http.StatusOK, map[string]any{"suggestions": a.Director.Suggestions(category)})
}

type generatePromptRequest struct {
	Conditions   []string `json:"conditions"`
	StylePreset  string   `json:"style_preset"`
	VideoContext string   `json:"video_context"`
}

// DirectorGeneratePrompt turns scene conditions into a ready-to-use engine
// prompt with a breakdown and follow-up suggestions.
func (a *App) DirectorGeneratePrompt(w http.ResponseWriter, r *http.Request) {
	var req generatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if len(req.Conditions) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one condition is required")
		return
	}
	if req.StylePreset != "" {
		if _, ok := domain.StylePresetByID(req.StylePreset); !ok {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown style preset "+req.StylePreset)
			return
		}
	}
	a.json(w, http.StatusOK, a.Director.GeneratePrompt(req.Conditions, req.StylePreset, req.VideoContext))
}
