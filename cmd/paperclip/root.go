package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csheth/paperclip/internal/arxiv"
	"github.com/csheth/paperclip/internal/capture"
	"github.com/csheth/paperclip/internal/config"
	"github.com/csheth/paperclip/internal/guide"
	"github.com/csheth/paperclip/internal/journal"
	"github.com/csheth/paperclip/internal/llm"
	"github.com/csheth/paperclip/internal/notion"
	"github.com/csheth/paperclip/internal/recorder"
	"github.com/csheth/paperclip/internal/retry"
	"github.com/csheth/paperclip/internal/session"
	"github.com/csheth/paperclip/internal/tui"
)

type rootOptions struct {
	configFile  string
	debug       bool
	noAltScreen bool
}

// newRootCommand builds the command tree. Running it bare starts the TUI.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "paperclip",
		Short: "File research paper highlights from the clipboard into Notion",
		Long: `paperclip watches the clipboard while you read a paper. Every passage you
copy is appended to the paper's Highlights page in Notion, and a local model
can explain the latest one into the paper's Notes page.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default ~/.config/paperclip/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Write a debug log (see log.file)")
	rootCmd.Flags().BoolVar(&opts.noAltScreen, "no-alt-screen", false, "Disable the alternate screen buffer")

	rootCmd.AddCommand(newConfigCommand(opts))
	rootCmd.AddCommand(newPapersCommand(opts))
	rootCmd.AddCommand(newJournalCommand(opts))
	return rootCmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o *rootOptions) load() (config.Settings, *viper.Viper, error) {
	s, v, err := config.Load(o.configFile)
	if err != nil {
		return config.Settings{}, nil, err
	}
	if o.debug {
		s.Debug = true
	}
	return s, v, nil
}

// setupLogging sends log output to the debug file, or nowhere. The terminal
// belongs to the TUI either way.
func setupLogging(s config.Settings) (func(), error) {
	if !s.Debug {
		log.SetOutput(io.Discard)
		return func() {}, nil
	}
	f, err := tea.LogToFile(s.LogFile, "paperclip")
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return func() { _ = f.Close() }, nil
}

// app holds everything the TUI session runs on.
type app struct {
	settings config.Settings
	session  *session.Session
	clip     *capture.SystemClipboard
	client   *notion.Client
	papers   *notion.Papers
	explain  llm.Client
	arxiv    *arxiv.Client
	journal  *journal.Store
	recorder *recorder.Recorder
	watcher  *capture.Watcher
}

// buildApp wires the enabled phases. A phase that cannot start is logged and
// left out; only capture is required.
func buildApp(ctx context.Context, s config.Settings) (*app, error) {
	phases := s.Phases()
	if !phases.Capture {
		issues := config.IssuesFor(s.Validate(), config.PhaseCapture)
		return nil, fmt.Errorf("capture settings are invalid: %v (see paperclip config show)", issues[0])
	}

	a := &app{settings: s, session: session.New(), clip: capture.NewSystemClipboard()}

	var (
		pages  recorder.Pages
		papers recorder.PaperStore
		store  recorder.Journal
	)
	if phases.Notion {
		a.client = notion.New(notion.Config{
			Token:      s.Notion.Token,
			BaseURL:    s.Notion.BaseURL,
			APIVersion: s.Notion.APIVersion,
			Timeout:    s.Notion.Timeout,
			Retry:      retry.DefaultPolicy(s.Notion.MaxAttempts),
		})
		a.papers = notion.NewPapers(a.client, s.Notion.ParentPageID)
		pages, papers = a.client, a.papers
	} else {
		log.Printf("[paperclip] notion disabled: %v", config.IssuesFor(s.Validate(), config.PhaseNotion))
	}

	if phases.Explain {
		client, err := llm.New(llm.ConfigFromSettings(s))
		if err != nil {
			log.Printf("[paperclip] explanations disabled: %v", err)
		} else {
			a.explain = client
		}
	}

	if client, err := arxiv.New(arxiv.Options{}); err != nil {
		log.Printf("[paperclip] arxiv lookups disabled: %v", err)
	} else {
		a.arxiv = client
	}

	if s.Journal.Enabled {
		j, err := journal.Open(ctx, s.Journal.Path)
		if err != nil {
			log.Printf("[paperclip] journal disabled: %v", err)
		} else {
			a.journal = j
			store = j
		}
	}

	a.recorder = recorder.New(a.session, papers, pages, store, recorder.Config{QueueDepth: s.Capture.QueueDepth})
	a.watcher = capture.NewWatcher(a.clip, a.session, a.recorder, capture.Config{
		Interval:  s.Capture.Interval,
		MinLength: s.Capture.MinLength,
	})
	return a, nil
}

func (a *app) tuiConfig(ctx context.Context, noteStyle string) tui.Config {
	cfg := tui.Config{
		Session:   a.session,
		Recorder:  a.recorder,
		Events:    a.recorder.Events(),
		Clipboard: a.clip,
		Ignore:    a.watcher.Ignore,
		Guide:     guide.Build(a.settings),
		Width:     a.settings.Window.Width,
		Height:    a.settings.Window.Height,
		Context:   ctx,
		NoteStyle: noteStyle,
	}
	// Interfaces stay nil unless the feature is on.
	if a.explain != nil {
		cfg.Explainer = a.explain
	}
	if a.papers != nil {
		cfg.Papers = a.papers
	}
	if a.arxiv != nil {
		cfg.Arxiv = a.arxiv
	}
	return cfg
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Printf("[paperclip] close journal: %v", err)
		}
	}
}

func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	s, _, err := opts.load()
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(s)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := buildApp(ctx, s)
	if err != nil {
		return err
	}
	defer a.close()

	// Ask the terminal before bubbletea owns stdin.
	noteStyle := "light"
	if lipgloss.HasDarkBackground() {
		noteStyle = "dark"
	}

	// The watcher stops first so nothing new is queued; the recorder then
	// drains on its own context and never aborts an in-flight write.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRecorder()

	var watchWG, recWG sync.WaitGroup
	watchWG.Add(1)
	go func() {
		defer watchWG.Done()
		a.watcher.Run(watchCtx)
	}()
	recWG.Add(1)
	go func() {
		defer recWG.Done()
		a.recorder.Run(recCtx)
	}()

	programOpts := []tea.ProgramOption{}
	if !opts.noAltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	program := tea.NewProgram(tui.New(a.tuiConfig(ctx, noteStyle)), programOpts...)
	_, runErr := program.Run()

	stopWatch()
	watchWG.Wait()
	stopRecorder()
	recWG.Wait()
	cancel()
	if runErr != nil {
		return fmt.Errorf("program error: %w", runErr)
	}
	return nil
}
