package statement

import "sync"

// PageStatus is the per-page extraction status during a run.
type PageStatus string

const (
	StatusPending PageStatus = "pending"
	StatusDone    PageStatus = "done"
	StatusFailed  PageStatus = "failed"
)

// Terminal reports whether the status is a final one.
func (s PageStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// ProgressTracker holds the per-page status map for one extraction run.
// Entries are created lazily as each page's call starts and move exactly
// once to a terminal status; they never regress to pending. The mutex is
// there because a progress endpoint reads snapshots while the run's
// goroutine writes.
type ProgressTracker struct {
	mu    sync.RWMutex
	pages map[int]PageStatus
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{pages: make(map[int]PageStatus)}
}

// Begin marks a page pending. It is a no-op if the page already has a
// status, so a terminal entry can never be reopened.
func (t *ProgressTracker) Begin(page int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pages[page]; ok {
		return
	}
	t.pages[page] = StatusPending
}

// Finish moves a pending page to done or failed. Non-terminal statuses and
// pages already settled are ignored.
func (t *ProgressTracker) Finish(page int, status PageStatus) {
	if !status.Terminal() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.pages[page]; ok && current.Terminal() {
		return
	}
	t.pages[page] = status
}

// Get returns a page's status and whether an entry exists for it.
func (t *ProgressTracker) Get(page int) (PageStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	status, ok := t.pages[page]
	return status, ok
}

// Snapshot returns a copy of the status map for rendering.
func (t *ProgressTracker) Snapshot() map[int]PageStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot := make(map[int]PageStatus, len(t.pages))
	for page, status := range t.pages {
		snapshot[page] = status
	}
	return snapshot
}
