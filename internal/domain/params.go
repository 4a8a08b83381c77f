package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Quality enumerates generation quality tiers.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// TransformParams carries the creative instructions for one job.
type TransformParams struct {
	Prompt      string   `json:"prompt"`
	Conditions  []string `json:"conditions"`
	StylePreset string   `json:"style_preset,omitempty"`
	Quality     Quality  `json:"quality"`
}

// StylePreset describes a selectable look with its prompt fragment.
type StylePreset struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	PromptModifier string `json:"prompt_modifier"`
}

// AtmosphereCategory groups selectable scene conditions.
type AtmosphereCategory struct {
	Category string   `json:"category"`
	Options  []string `json:"options"`
}

// NegativePrompt is passed to the engine alongside every frame.
const NegativePrompt = "blurry, low quality, distorted, artifacts, flickering, inconsistent lighting, temporal artifacts"

var stylePresets = []StylePreset{
	{
		ID:             "cinematic",
		Name:           "Cinematic",
		Description:    "Hollywood-style cinematic look with dramatic lighting",
		PromptModifier: "cinematic lighting, professional film look, dramatic atmosphere",
	},
	{
		ID:             "vintage",
		Name:           "Vintage",
		Description:    "Retro film look with warm tones and grain",
		PromptModifier: "vintage film look, warm tones, film grain, retro aesthetic",
	},
	{
		ID:             "futuristic",
		Name:           "Futuristic",
		Description:    "Sci-fi aesthetic with neon lights and cyberpunk elements",
		PromptModifier: "futuristic, neon lights, cyberpunk, sci-fi aesthetic",
	},
	{
		ID:             "natural",
		Name:           "Natural",
		Description:    "Clean, natural look with balanced colors",
		PromptModifier: "natural lighting, clean colors, balanced exposure",
	},
	{
		ID:             "artistic",
		Name:           "Artistic",
		Description:    "Creative, artistic interpretation with unique styling",
		PromptModifier: "artistic interpretation, creative styling, unique visual approach",
	},
}

var atmosphereCategories = []AtmosphereCategory{
	{Category: "time_of_day", Options: []string{"sunrise", "morning", "noon", "afternoon", "sunset", "twilight", "night", "midnight"}},
	{Category: "weather", Options: []string{"clear", "cloudy", "rainy", "stormy", "foggy", "misty", "snowy", "windy"}},
	{Category: "season", Options: []string{"spring", "summer", "autumn", "winter"}},
	{Category: "mood", Options: []string{"peaceful", "dramatic", "mysterious", "energetic", "melancholic", "romantic", "tense"}},
}

// StylePresets returns all selectable presets.
func StylePresets() []StylePreset {
	out := make([]StylePreset, len(stylePresets))
	copy(out, stylePresets)
	return out
}

// StylePresetByID looks up a preset; ok is false for unknown ids.
func StylePresetByID(id string) (StylePreset, bool) {
	for _, p := range stylePresets {
		if p.ID == id {
			return p, true
		}
	}
	return StylePreset{}, false
}

// AtmosphereOptions returns the selectable condition vocabulary.
func AtmosphereOptions() []AtmosphereCategory {
	out := make([]AtmosphereCategory, len(atmosphereCategories))
	copy(out, atmosphereCategories)
	return out
}

// Steps returns the diffusion step count for the tier.
func (q Quality) Steps() int {
	switch q {
	case QualityLow:
		return 15
	case QualityHigh:
		return 30
	default:
		return 20
	}
}

// GuidanceScale returns the classifier-free guidance weight for the tier.
func (q Quality) GuidanceScale() float64 {
	switch q {
	case QualityLow:
		return 6.0
	case QualityHigh:
		return 8.5
	default:
		return 7.5
	}
}

// Validate normalizes and checks the parameter set. Quality defaults to
// high when empty, matching the public contract.
func (p *TransformParams) Validate() error {
	p.Prompt = strings.TrimSpace(p.Prompt)
	if p.Prompt == "" {
		return fmt.Errorf("prompt is required: %w", ErrValidation)
	}
	if p.Quality == "" {
		p.Quality = QualityHigh
	}
	switch p.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		return fmt.Errorf("quality %q is not one of low, medium, high: %w", p.Quality, ErrValidation)
	}
	if p.StylePreset != "" {
		if _, ok := StylePresetByID(p.StylePreset); !ok {
			return fmt.Errorf("unknown style preset %q: %w", p.StylePreset, ErrValidation)
		}
	}
	for i, c := range p.Conditions {
		p.Conditions[i] = strings.TrimSpace(c)
		if p.Conditions[i] == "" {
			return fmt.Errorf("conditions must not be blank: %w", ErrValidation)
		}
	}
	return nil
}

// ValidVideoExtension reports whether the filename carries an accepted
// container extension.
func ValidVideoExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4", ".avi", ".mov", ".mkv", ".webm":
		return true
	}
	return false
}
