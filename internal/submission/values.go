package submission

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"audiogen/internal/api"
)

// Hint describes one generation parameter.
type Hint struct {
	Name           string
	Description    string
	Recommendation string
}

// Hints lists every parameter in form order.
var Hints = []Hint{
	{"top_k", "Sample only from the K most likely tokens. Larger is richer, smaller is steadier.", "150-350"},
	{"top_p", "Nucleus sampling threshold over cumulative probability. Larger is more random, smaller more conservative.", "0.6-0.8"},
	{"temperature", "Sampling temperature. Above 1 is more random, below 1 more deterministic. Too high can distort.", "0.9-1.3"},
	{"cfg_coef", "Classifier-free guidance strength. Higher follows the prompt more closely at some cost to naturalness.", "3.5-5.0"},
	{"duration", "Length of generated audio in seconds. Longer takes more time and GPU memory.", "10-30s to experiment, longer once satisfied"},
	{"two_step_cfg", "Two-pass guidance. Usually closer to the prompt, slightly slower.", "off; enable to strengthen prompt adherence"},
	{"seed", "Fixed random seed for reproducible results. Unset gives more variety.", "random first, record the seed once happy"},
	{"loudness_headroom_db", "Loudness headroom. Smaller is louder but risks clipping.", "16-18 dB"},
	{"fade_ms", "Fade in and out length, reduces clicks at the edges.", "40-100 ms"},
	{"resample_44k", "Resample output from 32 kHz to 44.1 kHz for compatibility, with slight resampling loss.", "enable when needed"},
}

var hintIndex = func() map[string]int {
	index := make(map[string]int, len(Hints))
	for i, h := range Hints {
		index[h.Name] = i
	}
	return index
}()

// HintFor returns the hint for name.
func HintFor(name string) (Hint, bool) {
	i, ok := hintIndex[name]
	if !ok {
		return Hint{}, false
	}
	return Hints[i], true
}

// ParseValue types a raw parameter value the way the server does: floats
// for top_p, temperature, cfg_coef and loudness_headroom_db; integers for
// duration, top_k and fade_ms (fractions truncate); booleans from 0/1 for
// two_step_cfg and resample_44k; a nullable integer seed. Unknown names are
// parsed as floats when possible and kept as text otherwise.
func ParseValue(name, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch name {
	case "top_p", "temperature", "cfg_coef", "loudness_headroom_db":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid(name, raw, "a number")
		}
		return v, nil
	case "duration", "top_k", "fade_ms":
		v, err := parseIntLoose(raw)
		if err != nil {
			return nil, invalid(name, raw, "a number")
		}
		return v, nil
	case "two_step_cfg", "resample_44k":
		switch strings.ToLower(raw) {
		case "1", "true", "on", "yes":
			return true, nil
		case "0", "false", "off", "no":
			return false, nil
		}
		return nil, invalid(name, raw, "0 or 1")
	case "seed":
		if raw == "" || strings.EqualFold(raw, "null") || strings.EqualFold(raw, "random") {
			return nil, nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, invalid(name, raw, "an integer")
		}
		return v, nil
	default:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v, nil
		}
		return raw, nil
	}
}

func parseIntLoose(raw string) (int, error) {
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parse %q: invalid number", raw)
	}
	return int(f), nil
}

func invalid(name, raw, want string) error {
	return api.Wrap(api.ErrValidation, "submission", name, fmt.Sprintf("%q is not %s", raw, want), nil)
}
