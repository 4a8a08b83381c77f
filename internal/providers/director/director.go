// Package director composes engine prompts from user intent and the
// selectable atmosphere vocabulary, and serves canned creative suggestions.
package director

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"aura/internal/domain"
)

// qualitySuffix is appended to every composed prompt to stabilize output.
var qualitySuffix = []string{
	"high quality",
	"detailed",
	"professional photography",
	"consistent lighting",
	"stable atmosphere",
}

// Suggestion is one canned prompt idea.
type Suggestion struct {
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// PromptPlan is a composed prompt with an explanation of its parts.
type PromptPlan struct {
	Prompt      string   `json:"prompt"`
	Breakdown   string   `json:"breakdown"`
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions"`
}

type Director struct{}

func New() *Director {
	return &Director{}
}

// Compose builds the full engine prompt for a transformation: the user
// prompt, then scene conditions, then the style modifier, then the quality
// suffix, comma-joined.
func (d *Director) Compose(params domain.TransformParams) string {
	parts := make([]string, 0, len(params.Conditions)+len(qualitySuffix)+2)
	parts = append(parts, params.Prompt)
	parts = append(parts, params.Conditions...)
	if preset, ok := domain.StylePresetByID(params.StylePreset); ok {
		parts = append(parts, preset.PromptModifier)
	}
	parts = append(parts, qualitySuffix...)
	return strings.Join(parts, ", ")
}

var cannedSuggestions = []Suggestion{
	{Prompt: "a foggy autumn morning", Description: "Mysterious and peaceful", Category: "atmosphere"},
	{Prompt: "stormy night with lightning", Description: "Dramatic and intense", Category: "atmosphere"},
	{Prompt: "golden hour sunset", Description: "Warm and romantic", Category: "atmosphere"},
	{Prompt: "rainy city streets", Description: "Urban melancholy", Category: "weather"},
	{Prompt: "snowy mountain landscape", Description: "Pure and serene", Category: "weather"},
	{Prompt: "misty forest path", Description: "Mysterious and enchanting", Category: "weather"},
	{Prompt: "dawn breaking over horizon", Description: "New beginnings", Category: "time_of_day"},
	{Prompt: "midnight city lights", Description: "Urban nightlife", Category: "time_of_day"},
	{Prompt: "afternoon sunlight through trees", Description: "Natural warmth", Category: "time_of_day"},
	{Prompt: "cinematic noir lighting", Description: "Film noir aesthetic", Category: "style"},
	{Prompt: "vintage sepia tones", Description: "Retro film look", Category: "style"},
	{Prompt: "futuristic neon glow", Description: "Cyberpunk aesthetic", Category: "style"},
}

// Suggestions returns the canned ideas, optionally filtered by category.
func (d *Director) Suggestions(category string) []Suggestion {
	if category == "" {
		out := make([]Suggestion, len(cannedSuggestions))
		copy(out, cannedSuggestions)
		return out
	}
	var out []Suggestion
	for _, s := range cannedSuggestions {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// GeneratePrompt assembles a prompt plan from selected conditions.
func (d *Director) GeneratePrompt(conditions []string, stylePreset, videoContext string) PromptPlan {
	titler := cases.Title(language.Und)

	parts := make([]string, 0, len(conditions)+len(qualitySuffix)+2)
	if videoContext != "" {
		parts = append(parts, videoContext)
	}
	parts = append(parts, conditions...)

	var breakdown strings.Builder
	if len(conditions) > 0 {
		labels := make([]string, len(conditions))
		for i, c := range conditions {
			labels[i] = titler.String(c)
		}
		fmt.Fprintf(&breakdown, "Scene conditions: %s", strings.Join(labels, ", "))
	}

	if preset, ok := domain.StylePresetByID(stylePreset); ok {
		parts = append(parts, preset.PromptModifier)
		if breakdown.Len() > 0 {
			breakdown.WriteString("; ")
		}
		fmt.Fprintf(&breakdown, "style preset: %s", preset.Name)
	}

	parts = append(parts, qualitySuffix...)
	if breakdown.Len() == 0 {
		breakdown.WriteString("Quality modifiers only")
	}

	return PromptPlan{
		Prompt:      strings.Join(parts, ", "),
		Breakdown:   breakdown.String(),
		Confidence:  0.95,
		Suggestions: d.extraSuggestions(conditions),
	}
}

// extraSuggestions proposes prompts from categories the user has not
// touched yet.
func (d *Director) extraSuggestions(conditions []string) []string {
	chosen := make(map[string]bool, len(conditions))
	for _, c := range conditions {
		chosen[strings.ToLower(strings.TrimSpace(c))] = true
	}
	var out []string
	for _, s := range cannedSuggestions {
		if chosen[s.Prompt] {
			continue
		}
		out = append(out, s.Prompt)
		if len(out) == 3 {
			break
		}
	}
	return out
}
