package recorder

import (
	"fmt"
	"time"
	"unicode/utf8"
)

type EventKind int

const (
	EventPaperReady EventKind = iota + 1
	EventPaperFailed
	EventHighlightRecorded
	EventHighlightFailed
	EventNoteRecorded
	EventNoteFailed
	EventDropped
	EventCaptureError
)

func (k EventKind) String() string {
	switch k {
	case EventPaperReady:
		return "paper-ready"
	case EventPaperFailed:
		return "paper-failed"
	case EventHighlightRecorded:
		return "highlight-recorded"
	case EventHighlightFailed:
		return "highlight-failed"
	case EventNoteRecorded:
		return "note-recorded"
	case EventNoteFailed:
		return "note-failed"
	case EventDropped:
		return "dropped"
	case EventCaptureError:
		return "capture-error"
	default:
		return "unknown"
	}
}

// Event reports the outcome of one queued item or a capture failure.
type Event struct {
	Kind  EventKind
	Paper string
	Text  string
	Err   error
	At    time.Time
}

// Failed reports whether the event should surface as an error.
func (e Event) Failed() bool {
	switch e.Kind {
	case EventPaperFailed, EventHighlightFailed, EventNoteFailed, EventDropped, EventCaptureError:
		return true
	}
	return false
}

// Message is a one-line description for the status bar.
func (e Event) Message() string {
	switch e.Kind {
	case EventPaperReady:
		return fmt.Sprintf("Notion pages ready for %q", e.Paper)
	case EventPaperFailed:
		return fmt.Sprintf("Could not prepare %q: %v", e.Paper, e.Err)
	case EventHighlightRecorded:
		return fmt.Sprintf("Saved highlight (%d chars)", utf8.RuneCountInString(e.Text))
	case EventHighlightFailed:
		return fmt.Sprintf("Highlight not saved: %v", e.Err)
	case EventNoteRecorded:
		return "Saved note to Notion"
	case EventNoteFailed:
		return fmt.Sprintf("Note not saved: %v", e.Err)
	case EventDropped:
		return "Busy: dropped an item, Notion is falling behind"
	case EventCaptureError:
		return fmt.Sprintf("Clipboard unavailable: %v", e.Err)
	default:
		return e.Kind.String()
	}
}
