package submission_test

import (
	"errors"
	"testing"

	"audiogen/internal/api"
	"audiogen/internal/submission"
)

func TestParseValueTypes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want any
	}{
		{"top_p", "0.8", 0.8},
		{"temperature", "1", 1.0},
		{"duration", "12.9", 12},
		{"top_k", "300", 300},
		{"fade_ms", "45", 45},
		{"two_step_cfg", "1", true},
		{"resample_44k", "off", false},
		{"seed", "", nil},
		{"seed", "77", 77},
		{"custom", "2.5", 2.5},
		{"custom", "text", "text"},
	}
	for _, tc := range cases {
		got, err := submission.ParseValue(tc.name, tc.raw)
		if err != nil {
			t.Fatalf("ParseValue(%q, %q): %v", tc.name, tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseValue(%q, %q) = %#v, want %#v", tc.name, tc.raw, got, tc.want)
		}
	}
}

func TestParseValueRejectsBadInput(t *testing.T) {
	for _, tc := range [][2]string{{"top_p", "high"}, {"duration", ""}, {"two_step_cfg", "2"}, {"seed", "1.5"}, {"temperature", "NaN"}} {
		if _, err := submission.ParseValue(tc[0], tc[1]); !errors.Is(err, api.ErrValidation) {
			t.Fatalf("ParseValue(%q, %q): expected validation error, got %v", tc[0], tc[1], err)
		}
	}
}

func TestFormSetAndFromParams(t *testing.T) {
	form := submission.Recommended()
	if err := form.Set("top_k", "100"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if form.Sliders.TopK != 100 || form.AdvancedOpen {
		t.Fatalf("unexpected form: %+v", form)
	}
	if err := form.Set("bogus", "1"); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("expected unknown parameter error, got %v", err)
	}

	params := api.Params{
		{Name: "top_p", Value: 0.5},
		{Name: "duration", Value: 8},
		{Name: "seed", Value: nil},
		{Name: "resample_44k", Value: 1},
		{Name: "unrelated", Value: "x"},
	}
	if err := form.FromParams(params); err != nil {
		t.Fatalf("FromParams: %v", err)
	}
	if form.Sliders.TopP != 0.5 || form.Sliders.Duration != 8 {
		t.Fatalf("unexpected sliders: %+v", form.Sliders)
	}
	if !form.AdvancedOpen || form.Advanced.SeedFixed || !form.Advanced.Resample44k {
		t.Fatalf("unexpected advanced: %+v", form.Advanced)
	}
}

func TestHintsCoverEveryParameter(t *testing.T) {
	if len(submission.Hints) != 10 {
		t.Fatalf("expected 10 hints, got %d", len(submission.Hints))
	}
	hint, ok := submission.HintFor("cfg_coef")
	if !ok || hint.Recommendation != "3.5-5.0" {
		t.Fatalf("unexpected hint: %+v", hint)
	}
	if _, ok := submission.HintFor("nope"); ok {
		t.Fatal("expected missing hint")
	}
}
