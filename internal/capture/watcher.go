// Package capture polls the clipboard while a paper is being read and hands
// new, long enough values on as highlights.
package capture

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultInterval  = 500 * time.Millisecond
	DefaultMinLength = 10
)

// Gate says whether capture is active. The session implements it.
type Gate interface {
	IsReading() bool
}

// Highlight is a clipboard value accepted for recording.
type Highlight struct {
	Text       string
	CapturedAt time.Time
}

// Sink receives highlights and read failures. Both calls must not block.
type Sink interface {
	SubmitHighlight(h Highlight) bool
	ReportCaptureError(err error)
}

type Config struct {
	Interval  time.Duration
	MinLength int
}

// Watcher is the polling loop. lastSeen belongs to the goroutine running
// Run; other goroutines reach it only through Ignore.
type Watcher struct {
	clip Clipboard
	gate Gate
	sink Sink
	cfg  Config

	ignore   chan string
	lastSeen string
	failing  bool
	now      func() time.Time
}

func NewWatcher(clip Clipboard, gate Gate, sink Sink, cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MinLength < 0 {
		cfg.MinLength = DefaultMinLength
	}
	return &Watcher{
		clip:   clip,
		gate:   gate,
		sink:   sink,
		cfg:    cfg,
		ignore: make(chan string, 8),
		now:    time.Now,
	}
}

// Ignore marks text as already seen so a value paperclip put on the
// clipboard itself is not filed as a highlight.
func (w *Watcher) Ignore(text string) {
	select {
	case w.ignore <- text:
	default:
		log.Printf("[capture] ignore queue full; %d chars may be captured", len(text))
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	log.Printf("[capture] watching clipboard every %s (min %d chars)", w.cfg.Interval, w.cfg.MinLength)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[capture] stopped")
			return
		case text := <-w.ignore:
			w.lastSeen = text
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick runs one poll. Run calls it on every interval.
func (w *Watcher) Tick() {
	w.drainIgnore()
	if !w.gate.IsReading() {
		return
	}
	text, err := w.clip.Read()
	if err != nil {
		// Report once per outage rather than every tick.
		if !w.failing {
			w.failing = true
			log.Printf("[capture] %v", err)
			w.sink.ReportCaptureError(err)
		}
		return
	}
	w.failing = false
	if text == w.lastSeen {
		return
	}
	w.lastSeen = text

	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) < w.cfg.MinLength {
		return
	}
	if !w.sink.SubmitHighlight(Highlight{Text: trimmed, CapturedAt: w.now()}) {
		log.Printf("[capture] highlight dropped (%d chars)", len(trimmed))
	}
}

func (w *Watcher) drainIgnore() {
	for {
		select {
		case text := <-w.ignore:
			w.lastSeen = text
		default:
			return
		}
	}
}
