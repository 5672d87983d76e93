package api

import (
	"strings"
	"time"
)

// SubmitEvent is the outbound event name carrying a GenerationRequest.
const SubmitEvent = "submit_sliders"

// MelodyModel is the model identifier forced for melody-conditioned requests.
const MelodyModel = "melody"

// GenerationRequest is the submit_sliders payload. It is immutable once sent.
type GenerationRequest struct {
	Values      Params `json:"values"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	MelodyURL   string `json:"melodyUrl,omitempty"`
	UseAdvanced int    `json:"use_advanced"`
}

// Advanced reports whether the request carries advanced panel values.
func (r GenerationRequest) Advanced() bool {
	return r.UseAdvanced != 0
}

// Metadata is the document served at a json_filename reference.
type Metadata struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	Parameters  Params `json:"parameters"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

// generatedAtLayout matches the server's time.strftime('%Y-%m-%d %H:%M:%S').
const generatedAtLayout = "2006-01-02 15:04:05"

// GeneratedTime parses GeneratedAt in the local zone. The zero time is
// returned when the field is absent or malformed.
func (m Metadata) GeneratedTime() time.Time {
	value := strings.TrimSpace(m.GeneratedAt)
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.ParseInLocation(generatedAtLayout, value, time.Local)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// CompletedItem is a finished generation as rendered in the results list.
type CompletedItem struct {
	Prompt     string    `json:"prompt"`
	Model      string    `json:"model"`
	Parameters Params    `json:"parameters"`
	AudioRef   string    `json:"audioRef"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewCompletedItem combines a metadata document with the audio reference it
// describes. CreatedAt prefers the document's generated_at stamp, then the
// supplied fallback (usually the Last-Modified time).
func NewCompletedItem(meta Metadata, audioRef string, fallback time.Time) CompletedItem {
	created := meta.GeneratedTime()
	if created.IsZero() {
		created = fallback
	}
	return CompletedItem{
		Prompt:     meta.Prompt,
		Model:      meta.Model,
		Parameters: meta.Parameters.Clone(),
		AudioRef:   audioRef,
		CreatedAt:  created,
	}
}

// UploadResponse is the success shape of POST /upload_melody.
type UploadResponse struct {
	FilePath string `json:"filePath"`
	Error    string `json:"error,omitempty"`
}
