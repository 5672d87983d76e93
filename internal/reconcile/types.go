package reconcile

import (
	"fmt"
	"math"

	"audiogen/internal/api"
)

// Entry is one in-flight job. Position is 1-based; the head is position 1.
type Entry struct {
	Prompt   string
	Progress float64
	Position int
}

// Percent returns Progress as a whole percentage.
func (e Entry) Percent() int {
	return int(math.Floor(e.Progress * 100))
}

// Kind is the status bar state.
type Kind string

const (
	KindIdle        Kind = "idle"
	KindStarted     Kind = "started"
	KindProgressing Kind = "progressing"
	KindFinished    Kind = "finished"
	KindError       Kind = "error"
)

// Status is the session's single status bar.
type Status struct {
	Kind    Kind
	Percent float64
	Text    string
	Prompt  string
}

// IdleStatus is the status shown before any job and after a finished job
// settles.
func IdleStatus() Status {
	return Status{Kind: KindIdle, Text: "idle"}
}

// UploadKind is the state of the melody upload indicator.
type UploadKind string

const (
	UploadNone        UploadKind = "none"
	UploadUploaded    UploadKind = "uploaded"
	UploadFailed      UploadKind = "failed"
	UploadUnsupported UploadKind = "unsupported"
)

// UploadState is the melody upload indicator.
type UploadState struct {
	Kind UploadKind
	Path string
	Text string
}

// Uploaded reports a successful upload stored at path.
func Uploaded(path string) UploadState {
	return UploadState{Kind: UploadUploaded, Path: path, Text: "uploaded: " + path}
}

// UploadFailure reports a failed upload.
func UploadFailure(err error) UploadState {
	return UploadState{Kind: UploadFailed, Text: fmt.Sprintf("upload failed: %v", err)}
}

// UploadRejected reports a file that is not a supported audio type.
func UploadRejected(mime string) UploadState {
	return UploadState{Kind: UploadUnsupported, Text: fmt.Sprintf("unsupported file type %s", mime)}
}

// Order controls where a completed item lands in the results list.
type Order int

const (
	// OrderRecentFirst prepends, used for items finishing during the session.
	OrderRecentFirst Order = iota
	// OrderArrival appends in arrival order.
	OrderArrival
)

func (o Order) String() string {
	if o == OrderArrival {
		return "arrival"
	}
	return "recent_first"
}

// View receives every visible change. Calls arrive on the event loop only.
type View interface {
	SetQueue(entries []Entry)
	SetStatus(status Status)
	SetUpload(state UploadState)
	AddResult(item api.CompletedItem, order Order)
	ReplaceResults(items []api.CompletedItem)
}
