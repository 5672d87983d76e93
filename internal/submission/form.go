package submission

import (
	"fmt"
	"strings"

	"audiogen/internal/api"
	"audiogen/internal/config"
)

// Mode selects text-only or melody-conditioned generation.
type Mode string

const (
	ModeText   Mode = "text"
	ModeMelody Mode = "melody"
)

// ParseMode accepts "text" or "melody", case-insensitively.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeText:
		return ModeText, nil
	case ModeMelody:
		return ModeMelody, nil
	default:
		return "", api.Wrap(api.ErrValidation, "submission", "mode", fmt.Sprintf("unknown mode %q", value), nil)
	}
}

// Sliders are the always-sent generation values.
type Sliders struct {
	TopK        int
	TopP        float64
	Temperature float64
	CFGCoef     float64
	Duration    int
}

// Advanced holds the advanced panel inputs. Seed, LoudnessHeadroomDB and
// FadeMS are raw text inputs; empty loudness and fade fall back to 18 and 60.
type Advanced struct {
	TwoStepCFG         bool
	SeedFixed          bool
	Seed               string
	LoudnessHeadroomDB string
	FadeMS             string
	Resample44k        bool
}

// Form is everything the user can set before submitting.
type Form struct {
	Mode         Mode
	Prompt       string
	Model        string
	Sliders      Sliders
	AdvancedOpen bool
	Advanced     Advanced
	// MelodyRef is the server path returned by a melody upload.
	MelodyRef string
}

// FormFromConfig seeds a text-mode form from configured defaults.
func FormFromConfig(cfg *config.Config) Form {
	g := cfg.Generation
	a := cfg.Advanced
	form := Form{
		Mode:  ModeText,
		Model: g.Model,
		Sliders: Sliders{
			TopK:        g.TopK,
			TopP:        g.TopP,
			Temperature: g.Temperature,
			CFGCoef:     g.CFGCoef,
			Duration:    g.Duration,
		},
		AdvancedOpen: a.Enabled,
		Advanced: Advanced{
			TwoStepCFG:         a.TwoStepCFG,
			SeedFixed:          a.SeedFixed,
			LoudnessHeadroomDB: api.FormatValue(a.LoudnessHeadroomDB),
			FadeMS:             api.FormatValue(a.FadeMS),
			Resample44k:        a.Resample44k,
		},
	}
	if a.SeedFixed {
		form.Advanced.Seed = api.FormatValue(a.Seed)
	}
	return form
}

// Recommended returns the recommended slider and advanced values with an
// empty seed.
func Recommended() Form {
	return Form{
		Mode:  ModeText,
		Model: "large",
		Sliders: Sliders{
			TopK:        250,
			TopP:        0.67,
			Temperature: 1.2,
			CFGCoef:     4.0,
			Duration:    30,
		},
		Advanced: Advanced{
			SeedFixed:          true,
			LoudnessHeadroomDB: "18",
			FadeMS:             "60",
		},
	}
}

// WithRecommended resets sliders and advanced values to the recommended
// ones. Mode, prompt, model, melody, panel state and the seed are kept.
func (f Form) WithRecommended() Form {
	rec := Recommended()
	seed := f.Advanced.Seed
	f.Sliders = rec.Sliders
	f.Advanced = rec.Advanced
	f.Advanced.Seed = seed
	return f
}

// Set assigns one named value from its text form. Advanced names open the
// advanced panel.
func (f *Form) Set(name, raw string) error {
	value, err := ParseValue(name, raw)
	if err != nil {
		return err
	}
	switch name {
	case "top_k":
		f.Sliders.TopK = value.(int)
	case "top_p":
		f.Sliders.TopP = value.(float64)
	case "temperature":
		f.Sliders.Temperature = value.(float64)
	case "cfg_coef":
		f.Sliders.CFGCoef = value.(float64)
	case "duration":
		f.Sliders.Duration = value.(int)
	case "two_step_cfg":
		f.AdvancedOpen = true
		f.Advanced.TwoStepCFG = value.(bool)
	case "seed":
		f.AdvancedOpen = true
		if value == nil {
			f.Advanced.SeedFixed = false
			f.Advanced.Seed = ""
		} else {
			f.Advanced.SeedFixed = true
			f.Advanced.Seed = api.FormatValue(value)
		}
	case "loudness_headroom_db":
		f.AdvancedOpen = true
		f.Advanced.LoudnessHeadroomDB = api.FormatValue(value)
	case "fade_ms":
		f.AdvancedOpen = true
		f.Advanced.FadeMS = api.FormatValue(value)
	case "resample_44k":
		f.AdvancedOpen = true
		f.Advanced.Resample44k = value.(bool)
	default:
		return api.Wrap(api.ErrValidation, "submission", "set", fmt.Sprintf("unknown parameter %q", name), nil)
	}
	return nil
}

// FromParams rebuilds slider and advanced values from a stored parameter
// set, as saved by a previous run. Unknown names are ignored.
func (f *Form) FromParams(params api.Params) error {
	for _, p := range params {
		if _, known := hintIndex[p.Name]; !known {
			continue
		}
		raw := api.FormatValue(p.Value)
		if p.Value == nil {
			raw = ""
		}
		if err := f.Set(p.Name, raw); err != nil {
			return err
		}
	}
	return nil
}
