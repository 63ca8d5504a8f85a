package monitor

import (
	"sync"

	"github.com/fyrsmithlabs/owera/internal/orchestrator"
)

// Feed carries loop progress to the dashboard. Updates are delivered in
// order; once the dashboard has stopped, Send drops them instead of
// blocking the run.
type Feed struct {
	ch      chan orchestrator.Progress
	stopped chan struct{}
	once    sync.Once
	close   sync.Once
}

// NewFeed creates a feed with a small buffer.
func NewFeed() *Feed {
	return &Feed{
		ch:      make(chan orchestrator.Progress, 32),
		stopped: make(chan struct{}),
	}
}

// Updates is the channel the dashboard reads.
func (f *Feed) Updates() <-chan orchestrator.Progress {
	return f.ch
}

// Send is an orchestrator.ProgressFunc.
func (f *Feed) Send(p orchestrator.Progress) {
	select {
	case f.ch <- p:
	case <-f.stopped:
	}
}

// Stop tells the feed the dashboard is gone.
func (f *Feed) Stop() {
	f.once.Do(func() { close(f.stopped) })
}

// Close ends the update stream. It must be called after the last Send.
func (f *Feed) Close() {
	f.close.Do(func() { close(f.ch) })
}
