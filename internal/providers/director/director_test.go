package director

import (
	"strings"
	"testing"

	"aura/internal/domain"
)

func TestComposeOrdersParts(t *testing.T) {
	d := New()
	prompt := d.Compose(domain.TransformParams{
		Prompt:      "a quiet harbor",
		Conditions:  []string{"sunset", "foggy"},
		StylePreset: "cinematic",
		Quality:     domain.QualityHigh,
	})

	wantOrder := []string{
		"a quiet harbor",
		"sunset",
		"foggy",
		"cinematic lighting, professional film look, dramatic atmosphere",
		"high quality",
		"stable atmosphere",
	}
	last := -1
	for _, part := range wantOrder {
		idx := strings.Index(prompt, part)
		if idx < 0 {
			t.Fatalf("prompt missing %q: %s", part, prompt)
		}
		if idx < last {
			t.Fatalf("part %q out of order in %s", part, prompt)
		}
		last = idx
	}
}

func TestComposeWithoutPreset(t *testing.T) {
	d := New()
	prompt := d.Compose(domain.TransformParams{Prompt: "city lights", Quality: domain.QualityMedium})
	if strings.Contains(prompt, "cinematic lighting") {
		t.Fatalf("prompt contains preset modifier without a preset: %s", prompt)
	}
	if !strings.HasPrefix(prompt, "city lights, ") {
		t.Fatalf("prompt does not start with user text: %s", prompt)
	}
}

func TestSuggestionsFilterByCategory(t *testing.T) {
	d := New()

	all := d.Suggestions("")
	if len(all) != len(cannedSuggestions) {
		t.Fatalf("all suggestions = %d, want %d", len(all), len(cannedSuggestions))
	}

	weather := d.Suggestions("weather")
	if len(weather) == 0 {
		t.Fatal("no weather suggestions")
	}
	for _, s := range weather {
		if s.Category != "weather" {
			t.Fatalf("suggestion %q has category %q", s.Prompt, s.Category)
		}
	}

	if got := d.Suggestions("no-such-category"); len(got) != 0 {
		t.Fatalf("unknown category returned %d suggestions", len(got))
	}
}

func TestGeneratePromptBreakdown(t *testing.T) {
	d := New()
	plan := d.GeneratePrompt([]string{"golden hour", "misty"}, "vintage", "")

	if !strings.Contains(plan.Prompt, "golden hour") || !strings.Contains(plan.Prompt, "misty") {
		t.Fatalf("plan prompt missing conditions: %s", plan.Prompt)
	}
	if !strings.Contains(plan.Prompt, "vintage film look") {
		t.Fatalf("plan prompt missing style modifier: %s", plan.Prompt)
	}
	if !strings.Contains(plan.Breakdown, "Golden Hour") {
		t.Fatalf("breakdown not title-cased: %s", plan.Breakdown)
	}
	if !strings.Contains(plan.Breakdown, "style preset: Vintage") {
		t.Fatalf("breakdown missing preset: %s", plan.Breakdown)
	}
	if plan.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", plan.Confidence)
	}
	if len(plan.Suggestions) == 0 || len(plan.Suggestions) > 3 {
		t.Fatalf("suggestions = %d, want 1..3", len(plan.Suggestions))
	}
}

func TestGeneratePromptSkipsChosenSuggestions(t *testing.T) {
	d := New()
	plan := d.GeneratePrompt([]string{"a foggy autumn morning"}, "", "")
	for _, s := range plan.Suggestions {
		if s == "a foggy autumn morning" {
			t.Fatal("suggestion repeats a chosen condition")
		}
	}
}
