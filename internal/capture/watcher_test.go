package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClipboard struct {
	mu     sync.Mutex
	values []string
	errs   []error
	pos    int
}

func (c *scriptedClipboard) Read() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.pos
	if i >= len(c.values) {
		i = len(c.values) - 1
	} else {
		c.pos++
	}
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	return c.values[i], nil
}

func (c *scriptedClipboard) Write(text string) error { return nil }

type gate struct{ reading atomic.Bool }

func (g *gate) IsReading() bool { return g.reading.Load() }

func newGate(reading bool) *gate {
	g := &gate{}
	g.reading.Store(reading)
	return g
}

type recordingSink struct {
	mu       sync.Mutex
	appended []string
	errs     []error
	reject   bool
}

func (s *recordingSink) SubmitHighlight(h Highlight) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.appended = append(s.appended, h.Text)
	return true
}

func (s *recordingSink) ReportCaptureError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.appended...)
}

func TestWatcherForwardsOnlyNewLongValues(t *testing.T) {
	clip := &scriptedClipboard{values: []string{"hi", "hi", "this is long enough", "this is long enough", "ok go now please"}}
	sink := &recordingSink{}
	w := NewWatcher(clip, newGate(true), sink, Config{MinLength: 10})

	for range clip.values {
		w.Tick()
	}

	assert.Equal(t, []string{"this is long enough", "ok go now please"}, sink.snapshot())
}

func TestWatcherIdleWhileStopped(t *testing.T) {
	clip := &scriptedClipboard{values: []string{"first long highlight", "second long highlight"}}
	g := newGate(false)
	sink := &recordingSink{}
	w := NewWatcher(clip, g, sink, Config{MinLength: 10})

	w.Tick()
	w.Tick()
	assert.Empty(t, sink.snapshot())
	assert.Equal(t, 0, clip.pos, "clipboard should not be read while stopped")

	g.reading.Store(true)
	w.Tick()
	assert.Equal(t, []string{"first long highlight"}, sink.snapshot())
}

func TestWatcherShortValueStillUpdatesLastSeen(t *testing.T) {
	clip := &scriptedClipboard{values: []string{"a long enough value", "short", "a long enough value"}}
	sink := &recordingSink{}
	w := NewWatcher(clip, newGate(true), sink, Config{MinLength: 10})

	w.Tick()
	w.Tick()
	w.Tick()
	assert.Equal(t, []string{"a long enough value", "a long enough value"}, sink.snapshot())
}

func TestWatcherTrimsBeforeMeasuring(t *testing.T) {
	clip := &scriptedClipboard{values: []string{"   padded    ", "  ten chars!  "}}
	sink := &recordingSink{}
	w := NewWatcher(clip, newGate(true), sink, Config{MinLength: 10})

	w.Tick()
	w.Tick()
	assert.Equal(t, []string{"ten chars!"}, sink.snapshot())
}

func TestWatcherIgnoreSuppressesOwnWrites(t *testing.T) {
	clip := &scriptedClipboard{values: []string{"an explanation we copied"}}
	sink := &recordingSink{}
	w := NewWatcher(clip, newGate(true), sink, Config{MinLength: 10})

	w.Ignore("an explanation we copied")
	w.Tick()
	assert.Empty(t, sink.snapshot())
}

func TestWatcherReportsReadFailureOnce(t *testing.T) {
	boom := errors.New("no clipboard")
	clip := &scriptedClipboard{
		values: []string{"", "", "recovered and long"},
		errs:   []error{boom, boom, nil},
	}
	sink := &recordingSink{}
	w := NewWatcher(clip, newGate(true), sink, Config{MinLength: 10})

	w.Tick()
	w.Tick()
	w.Tick()
	require.Len(t, sink.errs, 1)
	assert.ErrorIs(t, sink.errs[0], boom)
	assert.Equal(t, []string{"recovered and long"}, sink.snapshot())
}

func TestWatcherSurvivesRejectedSubmission(t *testing.T) {
	clip := &scriptedClipboard{values: []string{"this one is dropped", "this one is dropped"}}
	sink := &recordingSink{reject: true}
	w := NewWatcher(clip, newGate(true), sink, Config{MinLength: 10})

	w.Tick()
	sink.reject = false
	w.Tick()
	assert.Empty(t, sink.snapshot(), "a dropped value is still the last seen value")
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	clip := &scriptedClipboard{values: []string{"background highlight"}}
	sink := &recordingSink{}
	w := NewWatcher(clip, newGate(true), sink, Config{Interval: time.Millisecond, MinLength: 10})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
	assert.Equal(t, []string{"background highlight"}, sink.snapshot())
}
