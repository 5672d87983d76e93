package api_test

import (
	"encoding/json"
	"testing"
	"time"

	"audiogen/internal/api"
)

func TestParamsMarshalPreservesOrder(t *testing.T) {
	params := api.Params{}
	params = params.Set("top_k", 250)
	params = params.Set("top_p", 0.67)
	params = params.Set("seed", nil)
	params = params.Set("two_step_cfg", 1)

	data, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"top_k":250,"top_p":0.67,"seed":null,"two_step_cfg":1}`
	if string(data) != want {
		t.Fatalf("unexpected encoding: got %s want %s", data, want)
	}
}

func TestParamsUnmarshalKeepsDocumentOrder(t *testing.T) {
	var params api.Params
	doc := `{"temperature": 1.2, "duration": 30, "resample_44k": false, "seed": null}`
	if err := json.Unmarshal([]byte(doc), &params); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	names := params.Names()
	want := []string{"temperature", "duration", "resample_44k", "seed"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
	if v, _ := params.Get("duration"); v != 30 {
		t.Fatalf("duration = %#v, want int 30", v)
	}
	if v, _ := params.Get("temperature"); v != 1.2 {
		t.Fatalf("temperature = %#v, want 1.2", v)
	}
	if v, ok := params.Get("seed"); !ok || v != nil {
		t.Fatalf("seed = %#v (present=%v), want nil", v, ok)
	}
}

func TestParamsUnmarshalRejectsNonObject(t *testing.T) {
	var params api.Params
	if err := json.Unmarshal([]byte(`[1,2]`), &params); err == nil {
		t.Fatal("expected error for array input")
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{true, "true"},
		{0.67, "0.67"},
		{250, "250"},
		{"melody", "melody"},
	}
	for _, tc := range cases {
		if got := api.FormatValue(tc.in); got != tc.want {
			t.Fatalf("FormatValue(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewCompletedItemPrefersGeneratedAt(t *testing.T) {
	fallback := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := api.Metadata{Prompt: "lofi", Model: "large", GeneratedAt: "2024-05-06 07:08:09"}
	item := api.NewCompletedItem(meta, "static/audio/lofi.wav", fallback)
	want := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	if !item.CreatedAt.Equal(want) {
		t.Fatalf("CreatedAt = %v, want %v", item.CreatedAt, want)
	}

	meta.GeneratedAt = ""
	item = api.NewCompletedItem(meta, "static/audio/lofi.wav", fallback)
	if !item.CreatedAt.Equal(fallback) {
		t.Fatalf("CreatedAt = %v, want fallback %v", item.CreatedAt, fallback)
	}
	if item.AudioRef != "static/audio/lofi.wav" || item.Prompt != "lofi" {
		t.Fatalf("unexpected item: %+v", item)
	}
}
