// Package session holds the single coordination record shared by the screen
// loop and the background capture pipeline.
package session

import (
	"strings"
	"sync"
	"time"
)

// Screen identifies the view the TUI renders.
type Screen int

const (
	MainMenu Screen = iota
	Reading
	PaperSelection
)

func (s Screen) String() string {
	switch s {
	case MainMenu:
		return "main-menu"
	case Reading:
		return "reading"
	case PaperSelection:
		return "paper-selection"
	default:
		return "unknown"
	}
}

// PaperRefs are the remote page ids backing a paper.
type PaperRefs struct {
	PageID       string `json:"pageId"`
	HighlightsID string `json:"highlightsId"`
	NotesID      string `json:"notesId"`
}

// Complete reports whether the parent page and both subpages are known.
func (r PaperRefs) Complete() bool {
	return r.PageID != "" && r.HighlightsID != "" && r.NotesID != ""
}

// PaperInfo describes a paper available for reading.
type PaperInfo struct {
	Name      string     `json:"name"`
	Refs      *PaperRefs `json:"refs,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Snapshot is a point-in-time copy of the session used for rendering and polling.
type Snapshot struct {
	Screen          Screen
	ActivePaperName string
	ActivePaperRefs *PaperRefs
	IsReading       bool
	HighlightCount  int
	NoteCount       int
	LastHighlightAt *time.Time
	KnownPapers     []PaperInfo
}

// HasActivePaper reports whether a paper has been started in this session.
func (s Snapshot) HasActivePaper() bool {
	return s.ActivePaperName != ""
}

// Session is the process-wide coordination record. Every field is guarded by
// mu and only reachable through the methods below.
type Session struct {
	mu sync.Mutex

	screen          Screen
	activePaperName string
	activePaperRefs *PaperRefs
	isReading       bool
	highlightCount  int
	noteCount       int
	lastHighlightAt *time.Time
	knownPapers     []PaperInfo

	now func() time.Time
}

// New returns an empty session on the main menu.
func New() *Session {
	return &Session{screen: MainMenu, now: time.Now}
}

func (s *Session) SetScreen(screen Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = screen
}

// StartNewPaper begins reading a paper that has no remote pages yet. Counters
// restart from zero.
func (s *Session) StartNewPaper(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := s.now()
	s.activePaperName = name
	s.activePaperRefs = nil
	s.isReading = true
	s.highlightCount = 0
	s.noteCount = 0
	s.lastHighlightAt = nil
	s.knownPapers = append(s.knownPapers, PaperInfo{Name: name, CreatedAt: &created})
}

// StartExistingPaper resumes a paper retrieved from the remote listing.
func (s *Session) StartExistingPaper(info PaperInfo) {
	if strings.TrimSpace(info.Name) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePaperName = info.Name
	s.activePaperRefs = copyRefs(info.Refs)
	s.isReading = true
}

// StopReading pauses capture but keeps the active paper for display.
func (s *Session) StopReading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isReading = false
}

// AddKnownPaper appends a paper unless one with the same parent page is
// already listed.
func (s *Session) AddKnownPaper(info PaperInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.Refs != nil && info.Refs.PageID != "" {
		for _, known := range s.knownPapers {
			if known.Refs != nil && known.Refs.PageID == info.Refs.PageID {
				return
			}
		}
	}
	s.knownPapers = append(s.knownPapers, clonePaper(info))
}

// UpdatePaperInfo attaches remote ids once the pages for a paper exist.
func (s *Session) UpdatePaperInfo(info PaperInfo) {
	if info.Refs == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePaperName == info.Name {
		s.activePaperRefs = copyRefs(info.Refs)
	}
	for i := range s.knownPapers {
		known := &s.knownPapers[i]
		if known.Name == info.Name && known.Refs == nil {
			known.Refs = copyRefs(info.Refs)
			break
		}
	}
}

func (s *Session) RecordHighlight() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.highlightCount++
	s.lastHighlightAt = &now
}

func (s *Session) RecordNote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noteCount++
}

// IsReading is the single-field read the capture loop polls every tick.
func (s *Session) IsReading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isReading
}

// Snapshot copies the session out under the lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Screen:          s.screen,
		ActivePaperName: s.activePaperName,
		ActivePaperRefs: copyRefs(s.activePaperRefs),
		IsReading:       s.isReading,
		HighlightCount:  s.highlightCount,
		NoteCount:       s.noteCount,
		KnownPapers:     make([]PaperInfo, 0, len(s.knownPapers)),
	}
	if s.lastHighlightAt != nil {
		at := *s.lastHighlightAt
		snap.LastHighlightAt = &at
	}
	for _, paper := range s.knownPapers {
		snap.KnownPapers = append(snap.KnownPapers, clonePaper(paper))
	}
	return snap
}

func copyRefs(refs *PaperRefs) *PaperRefs {
	if refs == nil {
		return nil
	}
	out := *refs
	return &out
}

func clonePaper(info PaperInfo) PaperInfo {
	out := PaperInfo{Name: info.Name, Refs: copyRefs(info.Refs)}
	if info.CreatedAt != nil {
		at := *info.CreatedAt
		out.CreatedAt = &at
	}
	return out
}
