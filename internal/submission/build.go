package submission

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"audiogen/internal/api"
)

var (
	// ErrMelodyNotUploaded rejects melody mode without an uploaded melody.
	ErrMelodyNotUploaded = fmt.Errorf("%w: melody not uploaded", api.ErrValidation)
	// ErrEmptyPrompt rejects blank prompts, which the server drops silently.
	ErrEmptyPrompt = fmt.Errorf("%w: prompt is empty", api.ErrValidation)
)

const (
	defaultLoudnessHeadroomDB = 18.0
	defaultFadeMS             = 60
)

// Build validates form and produces the submit_sliders request.
func Build(form Form) (api.GenerationRequest, error) {
	prompt := strings.TrimSpace(form.Prompt)
	if prompt == "" {
		return api.GenerationRequest{}, ErrEmptyPrompt
	}

	req := api.GenerationRequest{Prompt: form.Prompt}
	switch form.Mode {
	case ModeMelody:
		melody := strings.TrimSpace(form.MelodyRef)
		if melody == "" {
			return api.GenerationRequest{}, ErrMelodyNotUploaded
		}
		req.Model = api.MelodyModel
		req.MelodyURL = melody
	case ModeText, "":
		req.Model = strings.TrimSpace(form.Model)
		if req.Model == "" {
			return api.GenerationRequest{}, api.Wrap(api.ErrValidation, "submission", "build", "model is empty", nil)
		}
	default:
		return api.GenerationRequest{}, api.Wrap(api.ErrValidation, "submission", "build", fmt.Sprintf("unknown mode %q", form.Mode), nil)
	}

	s := form.Sliders
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"top_p", s.TopP},
		{"temperature", s.Temperature},
		{"cfg_coef", s.CFGCoef},
	} {
		if !finite(f.value) {
			return api.GenerationRequest{}, api.Wrap(api.ErrValidation, "submission", f.name, fmt.Sprintf("%v is not a finite number", f.value), nil)
		}
	}
	values := api.Params{
		{Name: "top_k", Value: s.TopK},
		{Name: "top_p", Value: s.TopP},
		{Name: "temperature", Value: s.Temperature},
		{Name: "cfg_coef", Value: s.CFGCoef},
		{Name: "duration", Value: s.Duration},
	}

	if form.AdvancedOpen {
		advanced, err := advancedValues(form.Advanced)
		if err != nil {
			return api.GenerationRequest{}, err
		}
		values = append(values, advanced...)
		req.UseAdvanced = 1
	}
	req.Values = values
	return req, nil
}

func advancedValues(a Advanced) (api.Params, error) {
	var seed any
	if raw := strings.TrimSpace(a.Seed); a.SeedFixed && raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, api.Wrap(api.ErrValidation, "submission", "seed", fmt.Sprintf("%q is not an integer", raw), nil)
		}
		seed = parsed
	}

	loudness := defaultLoudnessHeadroomDB
	if raw := strings.TrimSpace(a.LoudnessHeadroomDB); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || !finite(parsed) {
			return nil, api.Wrap(api.ErrValidation, "submission", "loudness_headroom_db", fmt.Sprintf("%q is not a number", raw), nil)
		}
		loudness = parsed
	}

	fade := defaultFadeMS
	if raw := strings.TrimSpace(a.FadeMS); raw != "" {
		parsed, err := parseIntLoose(raw)
		if err != nil {
			return nil, api.Wrap(api.ErrValidation, "submission", "fade_ms", fmt.Sprintf("%q is not a number", raw), nil)
		}
		fade = parsed
	}

	return api.Params{
		{Name: "two_step_cfg", Value: flag(a.TwoStepCFG)},
		{Name: "seed", Value: seed},
		{Name: "loudness_headroom_db", Value: loudness},
		{Name: "fade_ms", Value: fade},
		{Name: "resample_44k", Value: flag(a.Resample44k)},
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func flag(v bool) int {
	if v {
		return 1
	}
	return 0
}

// IsValidation reports whether err should be shown as status text rather
// than treated as a failure.
func IsValidation(err error) bool {
	return errors.Is(err, api.ErrValidation)
}
