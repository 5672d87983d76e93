package reconcile_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"audiogen/internal/api"
	"audiogen/internal/events"
	"audiogen/internal/metadata"
	"audiogen/internal/reconcile"
)

type recordingView struct {
	queue    []reconcile.Entry
	statuses []reconcile.Status
	upload   reconcile.UploadState
	results  []api.CompletedItem
	replaced int
}

func (v *recordingView) SetQueue(entries []reconcile.Entry) { v.queue = entries }

func (v *recordingView) SetStatus(status reconcile.Status) {
	v.statuses = append(v.statuses, status)
}

func (v *recordingView) SetUpload(state reconcile.UploadState) { v.upload = state }

func (v *recordingView) AddResult(item api.CompletedItem, order reconcile.Order) {
	if order == reconcile.OrderArrival {
		v.results = append(v.results, item)
		return
	}
	v.results = append([]api.CompletedItem{item}, v.results...)
}

func (v *recordingView) ReplaceResults(items []api.CompletedItem) {
	v.replaced++
	v.results = append([]api.CompletedItem(nil), items...)
}

func (v *recordingView) status() reconcile.Status {
	return v.statuses[len(v.statuses)-1]
}

type fakeFetcher struct {
	docs map[string]metadata.Document
	errs map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, ref string) (metadata.Document, error) {
	if err := f.errs[ref]; err != nil {
		return metadata.Document{}, err
	}
	doc, ok := f.docs[ref]
	if !ok {
		return metadata.Document{}, api.Wrap(api.ErrFetch, "fake", "fetch", ref, nil)
	}
	return doc, nil
}

func (f *fakeFetcher) FetchAll(ctx context.Context, refs []string) []metadata.Result {
	out := make([]metadata.Result, len(refs))
	for i, ref := range refs {
		doc, err := f.Fetch(ctx, ref)
		out[i] = metadata.Result{Ref: ref, Document: doc, Err: err}
	}
	return out
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type manualClock struct {
	now    time.Time
	timers []*manualTimer
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) AfterFunc(d time.Duration, fn func()) reconcile.Timer {
	t := &manualTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			t.fn()
		}
	}
}

// queuedLoop holds background work until Drain so tests can interleave events
// with pending fetches.
type queuedLoop struct {
	pending []func()
}

func (l *queuedLoop) Post(fn func()) { fn() }

func (l *queuedLoop) Go(fn func()) { l.pending = append(l.pending, fn) }

func (l *queuedLoop) Drain() {
	for len(l.pending) > 0 {
		fn := l.pending[0]
		l.pending = l.pending[1:]
		fn()
	}
}

type harness struct {
	view    *recordingView
	fetcher *fakeFetcher
	clock   *manualClock
	rec     *reconcile.Reconciler
}

func newHarness(t *testing.T, loop reconcile.Loop) *harness {
	t.Helper()
	h := &harness{
		view:    &recordingView{},
		fetcher: &fakeFetcher{docs: map[string]metadata.Document{}, errs: map[string]error{}},
		clock:   newManualClock(),
	}
	if loop == nil {
		loop = reconcile.Inline{}
	}
	h.rec = reconcile.New(reconcile.Options{
		View:        h.view,
		Fetcher:     h.fetcher,
		Loop:        loop,
		Clock:       h.clock,
		RevertDelay: 1200 * time.Millisecond,
	})
	return h
}

func (h *harness) addDoc(ref, prompt string, modified time.Time) {
	h.fetcher.docs[ref] = metadata.Document{
		Ref:          ref,
		Metadata:     api.Metadata{Prompt: prompt, Model: "large", Parameters: api.Params{{Name: "top_k", Value: 250}}},
		LastModified: modified,
	}
}

func TestNewPublishesIdleState(t *testing.T) {
	h := newHarness(t, nil)
	if got := h.view.status(); got.Kind != reconcile.KindIdle || got.Text != "idle" {
		t.Fatalf("unexpected initial status: %+v", got)
	}
	if h.view.upload.Kind != reconcile.UploadNone {
		t.Fatalf("unexpected upload state: %+v", h.view.upload)
	}
}

func TestQueueDrainsFIFOToEmpty(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	for i, prompt := range []string{"one", "two", "three"} {
		h.rec.OnQueueEvent(prompt)
		h.addDoc("/m"+prompt+".json", prompt, h.clock.now.Add(time.Duration(i)*time.Minute))
	}
	if got := h.view.queue; len(got) != 3 || got[0].Prompt != "one" || got[2].Position != 3 {
		t.Fatalf("unexpected queue: %+v", got)
	}

	for _, prompt := range []string{"one", "two", "three"} {
		if head := h.rec.Queue()[0]; head.Prompt != prompt || head.Position != 1 {
			t.Fatalf("expected head %q at position 1, got %+v", prompt, head)
		}
		h.rec.OnFinishEvent(ctx, events.FinishAudio{Filename: "/a" + prompt + ".wav", JSONFilename: "/m" + prompt + ".json"})
	}
	if len(h.rec.Queue()) != 0 || len(h.view.queue) != 0 {
		t.Fatalf("expected empty queue, got %+v", h.view.queue)
	}
	if len(h.view.results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(h.view.results))
	}
	if h.view.results[0].Prompt != "three" || h.view.results[2].Prompt != "one" {
		t.Fatalf("expected most recent first, got %q..%q", h.view.results[0].Prompt, h.view.results[2].Prompt)
	}
	if h.view.results[0].AudioRef != "/athree.wav" {
		t.Fatalf("unexpected audio ref: %q", h.view.results[0].AudioRef)
	}
}

func TestProgressClampsAndTargetsHead(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.OnQueueEvent("head")
	h.rec.OnQueueEvent("tail")

	cases := []struct {
		in   float64
		want float64
		text string
	}{
		{0.25, 0.25, "generating 25%"},
		{0.995, 0.995, "generating 99%"},
		{1.5, 1, "generating 100%"},
		{-0.2, 0, "generating 0%"},
		{math.NaN(), 0, "generating 0%"},
	}
	for _, tc := range cases {
		h.rec.OnProgressEvent(tc.in)
		queue := h.rec.Queue()
		if queue[0].Progress != tc.want {
			t.Fatalf("progress(%v): head got %v want %v", tc.in, queue[0].Progress, tc.want)
		}
		if queue[1].Progress != 0 {
			t.Fatalf("progress(%v) touched non-head entry: %+v", tc.in, queue[1])
		}
		if got := h.view.status(); got.Text != tc.text || got.Kind != reconcile.KindProgressing || got.Prompt != "head" {
			t.Fatalf("progress(%v): unexpected status %+v", tc.in, got)
		}
	}
	h.rec.OnProgressEvent(0.995)
	if got := h.rec.Queue()[0].Percent(); got != 99 {
		t.Fatalf("expected 99%% before completion, got %d", got)
	}
	h.rec.OnProgressEvent(1.5)
	if got := h.rec.Queue()[0].Percent(); got != 100 {
		t.Fatalf("expected 100%%, got %d", got)
	}
}

func TestProgressOnEmptyQueueOnlyUpdatesStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.OnProgressEvent(0.75)
	if len(h.rec.Queue()) != 0 {
		t.Fatalf("queue should stay empty: %+v", h.rec.Queue())
	}
	if got := h.view.status(); got.Text != "generating 75%" || got.Percent != 75 {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestFinishOnEmptyQueueStillRenders(t *testing.T) {
	h := newHarness(t, nil)
	h.addDoc("/orphan.json", "orphan", time.Time{})
	if err := h.rec.Handle(context.Background(), events.FinishAudio{Filename: "/orphan.wav", JSONFilename: "/orphan.json"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(h.view.results) != 1 || h.view.results[0].Prompt != "orphan" {
		t.Fatalf("expected orphan result, got %+v", h.view.results)
	}
	if !h.view.results[0].CreatedAt.Equal(h.clock.now) {
		t.Fatalf("expected clock fallback time, got %v", h.view.results[0].CreatedAt)
	}
}

func TestFinishFetchFailureSkipsResult(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.OnQueueEvent("x")
	h.fetcher.errs["/x.json"] = errors.New("boom")
	h.rec.OnFinishEvent(context.Background(), events.FinishAudio{Filename: "/x.wav", JSONFilename: "/x.json"})
	if len(h.rec.Queue()) != 0 {
		t.Fatal("expected head popped despite fetch failure")
	}
	if len(h.view.results) != 0 {
		t.Fatalf("expected no results, got %+v", h.view.results)
	}
}

func TestFinishedRevertsToIdleAfterDelay(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.OnStatusEvent("p", events.StateStarted)
	if got := h.view.status(); got.Percent != 2 || got.Text != "started" {
		t.Fatalf("unexpected started status: %+v", got)
	}
	h.rec.OnStatusEvent("p", events.StateFinished)
	if got := h.view.status(); got.Percent != 100 || got.Text != "done" {
		t.Fatalf("unexpected finished status: %+v", got)
	}
	h.clock.Advance(1199 * time.Millisecond)
	if got := h.view.status(); got.Text != "done" {
		t.Fatalf("reverted too early: %+v", got)
	}
	h.clock.Advance(time.Millisecond)
	if got := h.view.status(); got.Kind != reconcile.KindIdle || got.Percent != 0 || got.Text != "idle" {
		t.Fatalf("expected idle after delay, got %+v", got)
	}
}

func TestNewerTransitionCancelsRevert(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.OnStatusEvent("a", events.StateFinished)
	h.clock.Advance(500 * time.Millisecond)
	h.rec.OnStatusEvent("b", events.StateStarted)
	h.clock.Advance(2 * time.Second)
	if got := h.view.status(); got.Kind != reconcile.KindStarted || got.Prompt != "b" {
		t.Fatalf("pending revert clobbered newer status: %+v", got)
	}
}

func TestRevertIgnoredWhenStatusChangedAfterTimerFired(t *testing.T) {
	var posted []func()
	loop := &deferredPostLoop{posted: &posted}
	h := newHarness(t, loop)
	h.rec.OnStatusEvent("a", events.StateFinished)
	h.clock.Advance(2 * time.Second)
	if len(posted) != 1 {
		t.Fatalf("expected revert posted to loop, got %d", len(posted))
	}
	h.rec.OnStatusEvent("b", events.StateStarted)
	posted[0]()
	if got := h.view.status(); got.Kind != reconcile.KindStarted {
		t.Fatalf("stale revert applied: %+v", got)
	}
}

type deferredPostLoop struct {
	posted *[]func()
}

func (l *deferredPostLoop) Post(fn func()) { *l.posted = append(*l.posted, fn) }

func (l *deferredPostLoop) Go(fn func()) { fn() }

func TestErrorStatusUsesPrecedingErrorMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.OnErrorEvent("p", "CUDA out of memory")
	if got := h.view.status(); got.Kind != reconcile.KindError || got.Text != "error: CUDA out of memory" || got.Percent != 0 {
		t.Fatalf("unexpected error status: %+v", got)
	}
	h.rec.OnStatusEvent("p", events.StateError)
	if got := h.view.status(); got.Text != "error: CUDA out of memory" {
		t.Fatalf("expected message carried into status error, got %+v", got)
	}
	h.rec.OnStatusEvent("q", events.StateError)
	if got := h.view.status(); got.Text != "error" {
		t.Fatalf("expected bare error text, got %+v", got)
	}
}

func TestAudioPairsSortByLastModifiedDescending(t *testing.T) {
	h := newHarness(t, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.addDoc("/t1.json", "T1", base.Add(1*time.Hour))
	h.addDoc("/t2.json", "T2", base.Add(2*time.Hour))
	h.addDoc("/t3.json", "T3", base.Add(3*time.Hour))
	h.addDoc("/undated.json", "undated", time.Time{})
	h.fetcher.errs["/broken.json"] = errors.New("404")

	err := h.rec.Handle(context.Background(), events.AudioJSONPairs{Pairs: []events.Pair{
		{Filename: "/t1.wav", JSONFilename: "/t1.json"},
		{Filename: "/undated.wav", JSONFilename: "/undated.json"},
		{Filename: "/t3.wav", JSONFilename: "/t3.json"},
		{Filename: "/broken.wav", JSONFilename: "/broken.json"},
		{Filename: "/t2.wav", JSONFilename: "/t2.json"},
	}})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var got []string
	for _, item := range h.view.results {
		got = append(got, item.Prompt)
	}
	want := []string{"T3", "T2", "T1", "undated"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if h.view.results[0].AudioRef != "/t3.wav" {
		t.Fatalf("audio ref mismatched: %q", h.view.results[0].AudioRef)
	}
	if h.view.replaced != 1 {
		t.Fatalf("expected one atomic replace, got %d", h.view.replaced)
	}
}

func TestAudioPairsReplaceRatherThanAppend(t *testing.T) {
	h := newHarness(t, nil)
	h.addDoc("/a.json", "A", time.Time{})
	pairs := []events.Pair{{Filename: "/a.wav", JSONFilename: "/a.json"}}
	h.rec.OnAudioPairs(context.Background(), pairs)
	h.rec.OnAudioPairs(context.Background(), pairs)
	if len(h.view.results) != 1 {
		t.Fatalf("expected replace semantics, got %d results", len(h.view.results))
	}
	h.rec.OnAudioPairs(context.Background(), nil)
	if len(h.view.results) != 0 {
		t.Fatalf("expected cleared results, got %d", len(h.view.results))
	}
}

func TestEventsInterleaveWithPendingFetch(t *testing.T) {
	loop := &queuedLoop{}
	h := newHarness(t, loop)
	h.addDoc("/a.json", "A", time.Time{})
	h.rec.OnQueueEvent("A")
	h.rec.OnQueueEvent("B")
	h.rec.OnFinishEvent(context.Background(), events.FinishAudio{Filename: "/a.wav", JSONFilename: "/a.json"})
	h.rec.OnProgressEvent(0.5)
	if head := h.rec.Queue()[0]; head.Prompt != "B" || head.Progress != 0.5 {
		t.Fatalf("progress should apply to new head: %+v", head)
	}
	if len(h.view.results) != 0 {
		t.Fatal("result rendered before fetch completed")
	}
	loop.Drain()
	if len(h.view.results) != 1 {
		t.Fatalf("expected result after drain, got %d", len(h.view.results))
	}
}

func TestNotifyKeepsKindAndPercent(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.OnProgressEvent(0.25)
	h.rec.Notify("melody not uploaded")
	got := h.view.status()
	if got.Text != "melody not uploaded" || got.Kind != reconcile.KindProgressing || got.Percent != 25 {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestHandleRejectsNilAndRecoversPanics(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.rec.Handle(context.Background(), nil); !errors.Is(err, api.ErrProtocol) {
		t.Fatalf("expected ErrProtocol for nil event, got %v", err)
	}

	view := &panicView{recordingView: &recordingView{}}
	panicky := reconcile.New(reconcile.Options{View: view, Fetcher: h.fetcher, Loop: reconcile.Inline{}, Clock: h.clock})
	panicky.OnQueueEvent("first")
	view.armed = true
	err := panicky.Handle(context.Background(), events.AddToQueue{Prompt: "boom"})
	if !errors.Is(err, api.ErrProtocol) {
		t.Fatalf("expected recovered panic as ErrProtocol, got %v", err)
	}
	view.armed = false
	if err := panicky.Handle(context.Background(), events.Progress{Fraction: 0.5}); err != nil {
		t.Fatalf("reconciler unusable after recovered panic: %v", err)
	}
	if head := panicky.Queue()[0]; head.Prompt != "first" || head.Progress != 0.5 {
		t.Fatalf("unexpected head after recovery: %+v", head)
	}
}

type panicView struct {
	*recordingView
	armed bool
}

func (p *panicView) SetQueue(entries []reconcile.Entry) {
	if p.armed {
		panic("render failed")
	}
	p.recordingView.SetQueue(entries)
}

func TestMalformedEventSetsStatusText(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.OnQueueEvent("a")
	h.rec.OnMalformed("progress", api.Wrap(api.ErrProtocol, "events", "progress", "missing field", nil))
	if got := h.view.status(); got.Text != "error: malformed progress event" {
		t.Fatalf("unexpected status: %+v", got)
	}
	if len(h.rec.Queue()) != 1 {
		t.Fatal("queue changed on malformed event")
	}
}

func TestSetUploadForwardsToView(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.SetUpload(reconcile.Uploaded("/static/melody/a.wav"))
	if h.view.upload.Kind != reconcile.UploadUploaded || h.view.upload.Path != "/static/melody/a.wav" {
		t.Fatalf("unexpected upload: %+v", h.view.upload)
	}
	if h.rec.Upload().Text != "uploaded: /static/melody/a.wav" {
		t.Fatalf("unexpected upload text: %q", h.rec.Upload().Text)
	}
}
