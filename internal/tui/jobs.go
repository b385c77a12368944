package tui

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// jobKind names the background work the screens start. At most one job per
// kind is shown at a time.
type jobKind string

const (
	jobKindLookup   jobKind = "lookup"
	jobKindFullText jobKind = "fulltext"
	jobKindList     jobKind = "list"
	jobKindExplain  jobKind = "explain"
	jobKindCopy     jobKind = "copy"
)

// jobKinds is the order badges appear in the status line.
var jobKinds = []jobKind{jobKindLookup, jobKindFullText, jobKindList, jobKindExplain, jobKindCopy}

func (k jobKind) label() string {
	switch k {
	case jobKindLookup:
		return "arXiv"
	case jobKindFullText:
		return "PDF"
	case jobKindList:
		return "listing"
	case jobKindExplain:
		return "explaining"
	case jobKindCopy:
		return "copying"
	default:
		return string(k)
	}
}

// sticky reports whether a failure of this kind stays on the status line
// until the next success. Copy and listing failures only show once.
func (k jobKind) sticky() bool {
	return k == jobKindLookup || k == jobKindFullText || k == jobKindExplain
}

type jobStartedMsg struct {
	Kind jobKind
	Seq  int64
}

// jobDoneMsg wraps the runner's message with how the job went.
type jobDoneMsg struct {
	Kind    jobKind
	Seq     int64
	Err     error
	Took    time.Duration
	Payload tea.Msg
}

type jobRunner func(context.Context) (tea.Msg, error)

// jobBus runs blocking work off the render loop. Jobs inherit ctx so they
// stop when the program shuts down.
type jobBus struct {
	ctx context.Context
	seq atomic.Int64
}

func newJobBus(ctx context.Context) *jobBus {
	if ctx == nil {
		ctx = context.Background()
	}
	return &jobBus{ctx: ctx}
}

func (b *jobBus) Start(kind jobKind, runner jobRunner) tea.Cmd {
	seq := b.seq.Add(1)
	started := func() tea.Msg {
		return jobStartedMsg{Kind: kind, Seq: seq}
	}
	run := func() tea.Msg {
		begin := time.Now()
		payload, err := runner(b.ctx)
		took := time.Since(begin).Round(time.Millisecond)
		if err != nil {
			log.Printf("[jobs] %s #%d failed after %s: %v", kind.label(), seq, took, err)
		} else {
			log.Printf("[jobs] %s #%d done in %s", kind.label(), seq, took)
		}
		return jobDoneMsg{Kind: kind, Seq: seq, Err: err, Took: took, Payload: payload}
	}
	return tea.Sequence(started, run)
}
