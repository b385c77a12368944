package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/paperclip/internal/arxiv"
	"github.com/csheth/paperclip/internal/capture"
	"github.com/csheth/paperclip/internal/excerpt"
	"github.com/csheth/paperclip/internal/llm"
	"github.com/csheth/paperclip/internal/recorder"
	"github.com/csheth/paperclip/internal/session"
)

// PaperLister lists the papers already filed remotely.
type PaperLister interface {
	ListPapers(ctx context.Context) ([]session.PaperInfo, error)
}

// PaperLookup resolves arXiv input to metadata and full text.
type PaperLookup interface {
	Lookup(ctx context.Context, input string) (*arxiv.Paper, error)
	FullText(ctx context.Context, p *arxiv.Paper) (string, error)
}

// Recorder is the part of the recorder the screens drive.
type Recorder interface {
	Prepare(paper string) bool
	SubmitNote(paper, text string) bool
}

func lookupPaperJob(lookup PaperLookup, input string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 35*time.Second)
		defer cancel()
		paper, err := lookup.Lookup(ctx, input)
		return paperLookupMsg{input: input, paper: paper, err: err}, err
	}
}

// fullTextJob downloads the PDF and indexes it for explanation context. The
// abstract alone is used when the PDF cannot be read.
func fullTextJob(lookup PaperLookup, name string, paper *arxiv.Paper) jobRunner {
	abstract := paper.Abstract
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		text, err := lookup.FullText(ctx, paper)
		if err != nil || strings.TrimSpace(text) == "" {
			return fullTextMsg{paper: name, doc: excerpt.Build(abstract), err: err}, err
		}
		return fullTextMsg{paper: name, doc: excerpt.Build(abstract + "\n\n" + text)}, nil
	}
}

func listPapersJob(lister PaperLister) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, time.Minute)
		defer cancel()
		papers, err := lister.ListPapers(ctx)
		return papersListedMsg{papers: papers, err: err}, err
	}
}

func explainJob(client llm.Client, req llm.Request) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		note, err := client.Explain(parent, req)
		return explainResultMsg{paper: req.PaperTitle, highlight: req.Text, note: note, err: err}, err
	}
}

// copyNoteJob marks text as seen by the watcher before writing it, so the
// copy does not come back as a highlight.
func copyNoteJob(clip capture.Clipboard, ignore func(string), text string) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		if clip == nil {
			err := errors.New("no clipboard available")
			return copyResultMsg{err: err}, err
		}
		if ignore != nil {
			ignore(text)
		}
		err := clip.Write(text)
		return copyResultMsg{err: err}, err
	}
}

func waitForEvent(events <-chan recorder.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return recorderEventMsg{event: ev}
	}
}
