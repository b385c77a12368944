package tuitest

import (
	"bytes"
	"io"
)

// Background colors reported for OSC 11. paperclip picks its note style from
// the answer before bubbletea starts.
const (
	DarkBackground  = "0000/0000/0000"
	LightBackground = "ffff/ffff/ffff"
)

const (
	st  = "\x1b\\"
	bel = "\x07"

	// maxPending bounds the unanswered tail kept between reads.
	maxPending = 64
)

type termQuery struct {
	seq   []byte
	reply []byte
}

// terminalResponder plays the terminal side of the queries lipgloss and
// bubbletea send at startup, so the program under test does not stall
// waiting for answers a PTY never gives.
type terminalResponder struct {
	w       io.Writer
	queries []termQuery
	pending []byte
}

func newTerminalResponder(w io.Writer, background string) *terminalResponder {
	if background == "" {
		background = DarkBackground
	}
	fg := "cccc/cccc/cccc"
	if background == LightBackground {
		fg = "1111/1111/1111"
	}
	var queries []termQuery
	for _, end := range []string{bel, st} {
		queries = append(queries,
			termQuery{seq: []byte("\x1b]10;?" + end), reply: []byte("\x1b]10;rgb:" + fg + end)},
			termQuery{seq: []byte("\x1b]11;?" + end), reply: []byte("\x1b]11;rgb:" + background + end)},
		)
	}
	queries = append(queries,
		termQuery{seq: []byte("\x1b[6n"), reply: []byte("\x1b[1;1R")},
		// Primary device attributes; termenv uses it to end color detection early.
		termQuery{seq: []byte("\x1b[c"), reply: []byte("\x1b[?62;22c")},
	)
	return &terminalResponder{w: w, queries: queries}
}

// Process answers every complete query in chunk, in stream order.
func (tr *terminalResponder) Process(chunk []byte) {
	tr.pending = append(tr.pending, chunk...)
	for {
		q, idx := tr.earliest()
		if q == nil {
			break
		}
		tr.pending = tr.pending[idx+len(q.seq):]
		_, _ = tr.w.Write(q.reply)
	}
	if len(tr.pending) > maxPending {
		tr.pending = append(tr.pending[:0], tr.pending[len(tr.pending)-maxPending:]...)
	}
}

func (tr *terminalResponder) earliest() (*termQuery, int) {
	var (
		found *termQuery
		at    = -1
	)
	for i := range tr.queries {
		idx := bytes.Index(tr.pending, tr.queries[i].seq)
		if idx >= 0 && (at < 0 || idx < at) {
			found, at = &tr.queries[i], idx
		}
	}
	return found, at
}
