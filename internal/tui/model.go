package tui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/csheth/paperclip/internal/arxiv"
	"github.com/csheth/paperclip/internal/capture"
	"github.com/csheth/paperclip/internal/excerpt"
	"github.com/csheth/paperclip/internal/guide"
	"github.com/csheth/paperclip/internal/llm"
	"github.com/csheth/paperclip/internal/recorder"
	"github.com/csheth/paperclip/internal/session"
)

// Config wires runtime collaborators into the TUI program. Anything left nil
// disables the feature that needs it.
type Config struct {
	Session   *session.Session
	Recorder  Recorder
	Events    <-chan recorder.Event
	Explainer llm.Client
	Papers    PaperLister
	Arxiv     PaperLookup
	Clipboard capture.Clipboard
	// Ignore tells the clipboard watcher about values paperclip wrote itself.
	Ignore  func(text string)
	Guide   []guide.Step
	Width   int
	Height  int
	Context context.Context
	// NoteStyle is a glamour standard style name (dark, light, notty).
	NoteStyle string
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.Session == nil {
		config.Session = session.New()
	}
	if config.NoteStyle == "" {
		config.NoteStyle = "notty"
	}
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &model{
		config:      config,
		sess:        config.Session,
		jobs:        newJobBus(config.Context),
		layout:      newPageLayout(config.Width, config.Height),
		dialog:      newDialog(),
		spinner:     spin,
		busy:        map[jobKind]bool{},
		failed:      map[jobKind]string{},
		infoMessage: "Press n to start a paper.",
	}
}

type model struct {
	config Config
	sess   *session.Session
	jobs   *jobBus
	layout pageLayout
	dialog dialog

	spinner spinner.Model
	busy    map[jobKind]bool
	// failed holds the last error of sticky job kinds until they succeed.
	failed map[jobKind]string

	infoMessage string
	lastError   string
	lastErrorAt time.Time
	helpVisible bool

	lastHighlight string
	lastNote      string
	renderedNote  string

	// doc is the indexed text of docPaper, used as explanation context.
	doc      excerpt.Document
	docPaper string

	papers []session.PaperInfo
	cursor int

	// lookupInput is the arXiv reference being resolved; empty when idle.
	lookupInput string

	renderer      *glamour.TermRenderer
	rendererWidth int
}

func (m *model) Init() tea.Cmd {
	return waitForEvent(m.config.Events)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		if m.lastNote != "" {
			m.renderedNote = m.renderNote(m.lastNote)
		}
		return m, nil
	case spinner.TickMsg:
		if !m.anyBusy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case jobStartedMsg:
		wasIdle := !m.anyBusy()
		m.busy[msg.Kind] = true
		if wasIdle {
			return m, m.spinner.Tick
		}
		return m, nil
	case jobDoneMsg:
		delete(m.busy, msg.Kind)
		switch {
		case msg.Err == nil:
			delete(m.failed, msg.Kind)
		case msg.Kind.sticky():
			m.failed[msg.Kind] = msg.Err.Error()
		}
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case recorderEventMsg:
		m.handleRecorderEvent(msg.event)
		return m, waitForEvent(m.config.Events)
	case paperLookupMsg:
		if msg.input != m.lookupInput || m.sess.Snapshot().Screen != session.MainMenu {
			log.Printf("[tui] dropping stale arXiv result for %q", msg.input)
			return m, nil
		}
		m.lookupInput = ""
		if msg.err != nil || msg.paper == nil || strings.TrimSpace(msg.paper.Title) == "" {
			if msg.err != nil {
				m.setError(fmt.Sprintf("arXiv lookup failed, using %q as the title: %v", msg.input, msg.err))
			}
			return m, m.startPaper(msg.input, nil)
		}
		return m, m.startPaper(msg.paper.Title, msg.paper)
	case fullTextMsg:
		if msg.paper != m.sess.Snapshot().ActivePaperName {
			return m, nil
		}
		m.doc, m.docPaper = msg.doc, msg.paper
		if msg.err != nil {
			m.infoMessage = "PDF unavailable; explanations use the abstract only."
		}
		return m, nil
	case papersListedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Could not list papers: %v", msg.err))
			return m, nil
		}
		for _, paper := range msg.papers {
			m.sess.AddKnownPaper(paper)
		}
		m.papers = msg.papers
		if m.cursor >= len(m.papers) {
			m.cursor = 0
		}
		m.infoMessage = fmt.Sprintf("%d paper(s) in Notion.", len(m.papers))
		return m, nil
	case explainResultMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Explanation failed: %v", msg.err))
			return m, nil
		}
		m.lastNote = msg.note
		m.renderedNote = m.renderNote(msg.note)
		m.infoMessage = "Explanation ready. Saving it as a note…"
		if m.config.Recorder != nil {
			m.config.Recorder.SubmitNote(msg.paper, msg.note)
		}
		return m, nil
	case copyResultMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Copy failed: %v", msg.err))
			return m, nil
		}
		m.infoMessage = "Note copied to the clipboard."
		return m, nil
	}
	return m, nil
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.dialog.open {
		result, value, cmd := m.dialog.Update(key)
		switch result {
		case dialogSubmitted:
			return m, tea.Batch(cmd, m.submitNewPaper(value))
		case dialogCanceled:
			m.infoMessage = "New paper canceled."
		}
		return m, cmd
	}
	return m, m.perform(route(m.sess.Snapshot(), key))
}

func (m *model) perform(a action) tea.Cmd {
	if m.lookupInput != "" && (a == actionOpenNewPaper || a == actionOpenSelection) {
		m.infoMessage = fmt.Sprintf("Still looking up %q on arXiv…", m.lookupInput)
		return nil
	}
	switch a {
	case actionNone:
		return nil
	case actionQuit:
		return tea.Quit
	case actionOpenNewPaper:
		return m.dialog.Open("New paper")
	case actionOpenSelection:
		m.sess.SetScreen(session.PaperSelection)
		m.cursor = 0
		return m.refreshPapers()
	case actionRefreshPapers:
		return m.refreshPapers()
	case actionBackToMenu:
		m.sess.SetScreen(session.MainMenu)
		return nil
	case actionStopReading:
		m.sess.StopReading()
		m.sess.SetScreen(session.MainMenu)
		m.infoMessage = "Capture stopped."
		return nil
	case actionExplain:
		return m.explain()
	case actionCopyNote:
		if m.lastNote == "" {
			m.infoMessage = "No note yet. Press e to explain the latest highlight."
			return nil
		}
		return m.jobs.Start(jobKindCopy, copyNoteJob(m.config.Clipboard, m.config.Ignore, m.lastNote))
	case actionToggleHelp:
		m.helpVisible = !m.helpVisible
		return nil
	case actionCursorUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return nil
	case actionCursorDown:
		if m.cursor < len(m.papers)-1 {
			m.cursor++
		}
		return nil
	case actionChoosePaper:
		return m.choosePaper()
	default:
		log.Printf("[tui] unhandled action %d", a)
		return nil
	}
}

// submitNewPaper names the paper after its arXiv title when the text is an
// arXiv reference, otherwise uses the text as typed.
func (m *model) submitNewPaper(value string) tea.Cmd {
	if m.config.Arxiv != nil && arxiv.ExtractIdentifier(value) != "" {
		m.infoMessage = "Looking up the paper on arXiv…"
		m.lookupInput = value
		return m.jobs.Start(jobKindLookup, lookupPaperJob(m.config.Arxiv, value))
	}
	return m.startPaper(value, nil)
}

func (m *model) startPaper(name string, paper *arxiv.Paper) tea.Cmd {
	m.sess.StartNewPaper(name)
	m.sess.SetScreen(session.Reading)
	m.resetReading()
	m.infoMessage = fmt.Sprintf("Reading %q. Copied passages become highlights.", name)
	if m.config.Recorder != nil {
		m.config.Recorder.Prepare(name)
	}
	if paper == nil || m.config.Arxiv == nil {
		return nil
	}
	m.doc, m.docPaper = excerpt.Build(paper.Abstract), name
	return m.jobs.Start(jobKindFullText, fullTextJob(m.config.Arxiv, name, paper))
}

func (m *model) choosePaper() tea.Cmd {
	if len(m.papers) == 0 || m.cursor >= len(m.papers) {
		m.infoMessage = "Nothing to open yet."
		return nil
	}
	info := m.papers[m.cursor]
	m.sess.StartExistingPaper(info)
	m.sess.SetScreen(session.Reading)
	m.resetReading()
	m.infoMessage = fmt.Sprintf("Reading %q again.", info.Name)
	if m.config.Recorder != nil && (info.Refs == nil || !info.Refs.Complete()) {
		m.config.Recorder.Prepare(info.Name)
	}
	return nil
}

func (m *model) refreshPapers() tea.Cmd {
	if m.config.Papers == nil {
		m.papers = m.sess.Snapshot().KnownPapers
		m.infoMessage = "Notion is not configured; showing papers from this session."
		return nil
	}
	m.infoMessage = "Loading papers from Notion…"
	return m.jobs.Start(jobKindList, listPapersJob(m.config.Papers))
}

func (m *model) explain() tea.Cmd {
	if m.config.Explainer == nil {
		m.infoMessage = "Explanations are not configured (see paperclip config show)."
		return nil
	}
	if m.busy[jobKindExplain] {
		m.infoMessage = "Already explaining…"
		return nil
	}
	if m.lastHighlight == "" {
		m.infoMessage = "Copy a passage first; e explains the latest highlight."
		return nil
	}
	req := m.explainRequest()
	m.infoMessage = fmt.Sprintf("Asking %s…", m.config.Explainer.Name())
	// Mark busy now so a second e before the job starts is refused.
	m.busy[jobKindExplain] = true
	return tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindExplain, explainJob(m.config.Explainer, req)))
}

// explainRequest builds the prompt input for the latest highlight, with
// nearby paper text when the PDF has been indexed.
func (m *model) explainRequest() llm.Request {
	snap := m.sess.Snapshot()
	req := llm.Request{Text: m.lastHighlight, PaperTitle: snap.ActivePaperName}
	if m.docPaper == snap.ActivePaperName && !m.doc.Empty() {
		req.Context = m.doc.Around(m.lastHighlight, excerpt.DefaultBudget)
	}
	return req
}

func (m *model) handleRecorderEvent(ev recorder.Event) {
	switch ev.Kind {
	case recorder.EventHighlightRecorded, recorder.EventHighlightFailed:
		if ev.Paper == m.sess.Snapshot().ActivePaperName {
			m.lastHighlight = ev.Text
		}
	}
	if ev.Failed() {
		m.setError(ev.Message())
		return
	}
	m.infoMessage = ev.Message()
}

func (m *model) resetReading() {
	delete(m.failed, jobKindFullText)
	delete(m.failed, jobKindExplain)
	m.lastHighlight = ""
	m.lastNote = ""
	m.renderedNote = ""
	m.doc, m.docPaper = excerpt.Document{}, ""
	m.helpVisible = false
}

func (m *model) setError(message string) {
	m.lastError = message
	m.lastErrorAt = time.Now()
}

func (m *model) anyBusy() bool {
	for _, running := range m.busy {
		if running {
			return true
		}
	}
	return false
}

func (m *model) renderNote(note string) string {
	width := m.layout.contentWidth
	if m.renderer == nil || m.rendererWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.config.NoteStyle),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			log.Printf("[tui] markdown renderer: %v", err)
			return m.layout.wrap(note)
		}
		m.renderer, m.rendererWidth = r, width
	}
	out, err := m.renderer.Render(note)
	if err != nil {
		return m.layout.wrap(note)
	}
	return strings.Trim(out, "\n")
}
