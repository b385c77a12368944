// Package recorder files highlights and notes into Notion. It is the single
// consumer of captured work: items queue up in submission order and one
// goroutine performs the remote writes and updates the session.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/csheth/paperclip/internal/capture"
	"github.com/csheth/paperclip/internal/journal"
	"github.com/csheth/paperclip/internal/session"
)

const (
	DefaultQueueDepth   = 16
	DefaultItemTimeout  = 2 * time.Minute
	DefaultDrainTimeout = 20 * time.Second
	eventBuffer         = 64
	maxPendingDrops     = 64
	journalTimeout      = 5 * time.Second
)

// ErrNotionDisabled is reported for work that needs Notion when it is not
// configured.
var ErrNotionDisabled = errors.New("notion is not configured")

// Pages appends text to an existing page.
type Pages interface {
	AppendText(ctx context.Context, pageID, text string, at time.Time) error
}

// PaperStore resolves or creates the pages behind a paper.
type PaperStore interface {
	EnsurePaper(ctx context.Context, name string) (session.PaperInfo, error)
}

// Journal mirrors processed items locally.
type Journal interface {
	Record(ctx context.Context, e *journal.Entry) error
}

type Config struct {
	QueueDepth int
	// ItemTimeout bounds the remote work for one queued item.
	ItemTimeout time.Duration
	// DrainTimeout bounds how long Run keeps sending queued items after its
	// context is canceled. Whatever is left afterwards is journaled as dropped.
	DrainTimeout time.Duration
}

type itemKind int

const (
	itemPrepare itemKind = iota + 1
	itemHighlight
	itemNote
)

func (k itemKind) String() string {
	switch k {
	case itemPrepare:
		return "prepare"
	case itemHighlight:
		return "highlight"
	case itemNote:
		return "note"
	default:
		return "unknown"
	}
}

type item struct {
	kind  itemKind
	paper string
	text  string
	at    time.Time
}

type droppedItem struct {
	item
	reason string
}

// Recorder owns the work queue. Pages, papers and the journal may be nil:
// without Notion every highlight fails visibly, without a journal nothing
// is mirrored.
type Recorder struct {
	sess    *session.Session
	papers  PaperStore
	pages   Pages
	journal Journal

	queue  chan item
	events chan Event

	// refs caches resolved pages per paper; only the Run goroutine touches it.
	refs map[string]session.PaperRefs

	itemTimeout  time.Duration
	drainTimeout time.Duration

	dropMu  sync.Mutex
	dropped []droppedItem

	now func() time.Time
}

func New(sess *session.Session, papers PaperStore, pages Pages, j Journal, cfg Config) *Recorder {
	depth := cfg.QueueDepth
	if depth < 1 {
		depth = DefaultQueueDepth
	}
	itemTimeout := cfg.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = DefaultItemTimeout
	}
	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}
	return &Recorder{
		sess:         sess,
		papers:       papers,
		pages:        pages,
		journal:      j,
		queue:        make(chan item, depth),
		events:       make(chan Event, eventBuffer),
		refs:         make(map[string]session.PaperRefs),
		itemTimeout:  itemTimeout,
		drainTimeout: drainTimeout,
		now:          time.Now,
	}
}

// Events streams outcomes to the UI. Events are dropped if nobody reads.
func (r *Recorder) Events() <-chan Event {
	return r.events
}

// Prepare resolves (or creates) the pages for paper ahead of the first
// highlight.
func (r *Recorder) Prepare(paper string) bool {
	return r.submit(item{kind: itemPrepare, paper: paper, at: r.now()})
}

// SubmitHighlight queues h for the paper active right now.
func (r *Recorder) SubmitHighlight(h capture.Highlight) bool {
	paper := r.sess.Snapshot().ActivePaperName
	return r.submit(item{kind: itemHighlight, paper: paper, text: h.Text, at: h.CapturedAt})
}

// SubmitNote queues an explanation for paper's Notes page.
func (r *Recorder) SubmitNote(paper, text string) bool {
	return r.submit(item{kind: itemNote, paper: paper, text: text, at: r.now()})
}

// ReportCaptureError forwards a clipboard failure to the UI.
func (r *Recorder) ReportCaptureError(err error) {
	r.emit(Event{Kind: EventCaptureError, Err: err, At: r.now()})
}

func (r *Recorder) submit(it item) bool {
	select {
	case r.queue <- it:
		return true
	default:
	}
	log.Printf("[recorder] queue full; dropping %s for %q", it.kind, it.paper)
	r.drop(it, "queue full")
	return false
}

func (r *Recorder) drop(it item, reason string) {
	if it.kind != itemPrepare {
		r.dropMu.Lock()
		if len(r.dropped) < maxPendingDrops {
			r.dropped = append(r.dropped, droppedItem{item: it, reason: reason})
		}
		r.dropMu.Unlock()
	}
	r.emit(Event{Kind: EventDropped, Paper: it.paper, Text: it.text, At: it.at})
}

func (r *Recorder) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		log.Printf("[recorder] event buffer full; discarding %s", ev.Kind)
	}
}

// Run processes queued items in order until ctx is done. Canceling ctx
// never aborts a remote write: each item runs under its own timeout, and
// items still queued at cancellation are sent until the drain deadline.
func (r *Recorder) Run(ctx context.Context) {
	log.Printf("[recorder] started (queue depth %d)", cap(r.queue))
	base := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			r.drainQueue(base)
			return
		}
		select {
		case <-ctx.Done():
			r.drainQueue(base)
			return
		case it := <-r.queue:
			r.flushDropped(base)
			r.process(base, it)
		}
	}
}

func (r *Recorder) process(base context.Context, it item) {
	ctx, cancel := context.WithTimeout(base, r.itemTimeout)
	defer cancel()
	r.handle(ctx, it)
}

// drainQueue sends what is left in the queue after cancellation. Items
// still waiting once the drain deadline passes are journaled as dropped.
func (r *Recorder) drainQueue(base context.Context) {
	deadline := r.now().Add(r.drainTimeout)
	sent, abandoned := 0, 0
	for {
		var it item
		select {
		case it = <-r.queue:
		default:
			r.flushDropped(base)
			log.Printf("[recorder] stopped (drained %d, abandoned %d)", sent, abandoned)
			return
		}
		if !r.now().Before(deadline) {
			r.drop(it, "recorder stopped before sending")
			abandoned++
			continue
		}
		r.flushDropped(base)
		r.process(base, it)
		sent++
	}
}

func (r *Recorder) handle(ctx context.Context, it item) {
	switch it.kind {
	case itemPrepare:
		info, err := r.ensure(ctx, it.paper)
		if err != nil {
			log.Printf("[recorder] prepare %q: %v", it.paper, err)
			r.emit(Event{Kind: EventPaperFailed, Paper: it.paper, Err: err, At: r.now()})
			return
		}
		r.emit(Event{Kind: EventPaperReady, Paper: info.Name, At: r.now()})
	case itemHighlight:
		err := r.appendTo(ctx, it, func(refs session.PaperRefs) string { return refs.HighlightsID })
		r.mirror(ctx, it, err)
		if err != nil {
			log.Printf("[recorder] highlight for %q failed: %v", it.paper, err)
			r.emit(Event{Kind: EventHighlightFailed, Paper: it.paper, Text: it.text, Err: err, At: it.at})
			return
		}
		if r.stillActive(it.paper) {
			r.sess.RecordHighlight()
		}
		r.emit(Event{Kind: EventHighlightRecorded, Paper: it.paper, Text: it.text, At: it.at})
	case itemNote:
		err := r.appendTo(ctx, it, func(refs session.PaperRefs) string { return refs.NotesID })
		r.mirror(ctx, it, err)
		if err != nil {
			log.Printf("[recorder] note for %q failed: %v", it.paper, err)
			r.emit(Event{Kind: EventNoteFailed, Paper: it.paper, Text: it.text, Err: err, At: it.at})
			return
		}
		if r.stillActive(it.paper) {
			r.sess.RecordNote()
		}
		r.emit(Event{Kind: EventNoteRecorded, Paper: it.paper, Text: it.text, At: it.at})
	default:
		panic(fmt.Sprintf("recorder: unknown item kind %d", it.kind))
	}
}

func (r *Recorder) appendTo(ctx context.Context, it item, pick func(session.PaperRefs) string) error {
	if it.paper == "" {
		return errors.New("no active paper")
	}
	if r.pages == nil {
		return ErrNotionDisabled
	}
	info, err := r.ensure(ctx, it.paper)
	if err != nil {
		return err
	}
	pageID := pick(*info.Refs)
	if pageID == "" {
		return fmt.Errorf("paper %q has no %s page", it.paper, it.kind)
	}
	return r.pages.AppendText(ctx, pageID, it.text, it.at)
}

// ensure returns complete refs for paper, from the cache, the session or
// the paper store, in that order.
func (r *Recorder) ensure(ctx context.Context, paper string) (session.PaperInfo, error) {
	if refs, ok := r.refs[paper]; ok {
		return session.PaperInfo{Name: paper, Refs: &refs}, nil
	}
	snap := r.sess.Snapshot()
	if snap.ActivePaperName == paper && snap.ActivePaperRefs != nil && snap.ActivePaperRefs.Complete() {
		r.refs[paper] = *snap.ActivePaperRefs
		return session.PaperInfo{Name: paper, Refs: snap.ActivePaperRefs}, nil
	}
	if r.papers == nil {
		return session.PaperInfo{}, ErrNotionDisabled
	}
	info, err := r.papers.EnsurePaper(ctx, paper)
	if err != nil {
		return session.PaperInfo{}, err
	}
	if info.Refs == nil || !info.Refs.Complete() {
		return session.PaperInfo{}, fmt.Errorf("paper %q pages are incomplete", paper)
	}
	r.refs[paper] = *info.Refs
	r.sess.UpdatePaperInfo(info)
	r.sess.AddKnownPaper(info)
	log.Printf("[recorder] paper %q ready (page %s)", paper, info.Refs.PageID)
	return info, nil
}

func (r *Recorder) stillActive(paper string) bool {
	return r.sess.Snapshot().ActivePaperName == paper
}

func (r *Recorder) mirror(ctx context.Context, it item, err error) {
	if r.journal == nil {
		return
	}
	entry := &journal.Entry{
		Kind:       journalKind(it.kind),
		Paper:      it.paper,
		Body:       it.text,
		Status:     journal.StatusSynced,
		CapturedAt: it.at,
	}
	if refs, ok := r.refs[it.paper]; ok {
		entry.PageID = refs.PageID
	}
	if err != nil {
		entry.Status = journal.StatusFailed
		entry.Error = err.Error()
	}
	jctx, cancel := journalContext(ctx)
	defer cancel()
	if jerr := r.journal.Record(jctx, entry); jerr != nil {
		log.Printf("[recorder] journal: %v", jerr)
	}
}

func (r *Recorder) flushDropped(ctx context.Context) {
	r.dropMu.Lock()
	pending := r.dropped
	r.dropped = nil
	r.dropMu.Unlock()
	if r.journal == nil || len(pending) == 0 {
		return
	}
	jctx, cancel := journalContext(ctx)
	defer cancel()
	for _, d := range pending {
		entry := &journal.Entry{
			Kind:       journalKind(d.kind),
			Paper:      d.paper,
			Body:       d.text,
			Status:     journal.StatusDropped,
			Error:      d.reason,
			CapturedAt: d.at,
		}
		if err := r.journal.Record(jctx, entry); err != nil {
			log.Printf("[recorder] journal: %v", err)
		}
	}
}

// journalContext detaches local writes from the caller's cancellation so a
// failed or abandoned item is still recorded.
func journalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
}

func journalKind(k itemKind) journal.Kind {
	if k == itemNote {
		return journal.KindNote
	}
	return journal.KindHighlight
}
