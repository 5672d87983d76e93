package render

import (
	"slices"
	"sync"

	"audiogen/internal/api"
	"audiogen/internal/reconcile"
)

// Snapshot is a copy of everything a Board shows.
type Snapshot struct {
	Queue   []reconcile.Entry
	Status  reconcile.Status
	Upload  reconcile.UploadState
	Results []api.CompletedItem
}

// Board is the deterministic view model. It is safe to read a Snapshot from
// any goroutine while the event loop writes.
type Board struct {
	mu      sync.RWMutex
	queue   []reconcile.Entry
	status  reconcile.Status
	upload  reconcile.UploadState
	results []api.CompletedItem
}

// NewBoard returns an idle board.
func NewBoard() *Board {
	return &Board{
		status: reconcile.IdleStatus(),
		upload: reconcile.UploadState{Kind: reconcile.UploadNone},
	}
}

func (b *Board) SetQueue(entries []reconcile.Entry) {
	b.update(func() { b.queue = slices.Clone(entries) })
}

func (b *Board) SetStatus(status reconcile.Status) {
	b.update(func() { b.status = status })
}

func (b *Board) SetUpload(state reconcile.UploadState) {
	b.update(func() { b.upload = state })
}

// AddResult inserts item at the front for OrderRecentFirst, otherwise at
// the end.
func (b *Board) AddResult(item api.CompletedItem, order reconcile.Order) {
	b.update(func() {
		if order == reconcile.OrderArrival {
			b.results = append(b.results, item)
			return
		}
		b.results = slices.Insert(b.results, 0, item)
	})
}

// ReplaceResults clears and repopulates the results list in one step.
func (b *Board) ReplaceResults(items []api.CompletedItem) {
	b.update(func() { b.results = slices.Clone(items) })
}

// Snapshot copies the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		Queue:   slices.Clone(b.queue),
		Status:  b.status,
		Upload:  b.upload,
		Results: slices.Clone(b.results),
	}
}

func (b *Board) update(apply func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	apply()
}

// Multi forwards every change to each view in order.
type Multi []reconcile.View

func (m Multi) SetQueue(entries []reconcile.Entry) {
	for _, v := range m {
		v.SetQueue(entries)
	}
}

func (m Multi) SetStatus(status reconcile.Status) {
	for _, v := range m {
		v.SetStatus(status)
	}
}

func (m Multi) SetUpload(state reconcile.UploadState) {
	for _, v := range m {
		v.SetUpload(state)
	}
}

func (m Multi) AddResult(item api.CompletedItem, order reconcile.Order) {
	for _, v := range m {
		v.AddResult(item, order)
	}
}

func (m Multi) ReplaceResults(items []api.CompletedItem) {
	for _, v := range m {
		v.ReplaceResults(items)
	}
}
