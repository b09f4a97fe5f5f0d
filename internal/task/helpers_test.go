package task

import (
	"sync"
	"testing"
	"time"
)

// recordingNotifier captures every monitor notification.
type recordingNotifier struct {
	mu      sync.Mutex
	updates []Snapshot
	ended   []Snapshot
}

func (r *recordingNotifier) Notify(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, s)
}

func (r *recordingNotifier) Ended(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, s)
}

func (r *recordingNotifier) Updates() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.updates...)
}

func (r *recordingNotifier) EndedSnapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.ended...)
}

func (r *recordingNotifier) endedFor(h Handle) []Snapshot {
	var out []Snapshot
	for _, s := range r.EndedSnapshots() {
		if s.Handle == h {
			out = append(out, s)
		}
	}
	return out
}

// gate blocks a task until released.
type gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	opened  sync.Once
}

func newGate() *gate {
	return &gate{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gate) wait() {
	g.once.Do(func() { close(g.started) })
	<-g.release
}

func (g *gate) open() { g.opened.Do(func() { close(g.release) }) }

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

var projectA = Project{ID: 1, Name: "alpha"}
var projectB = Project{ID: 2, Name: "beta"}
