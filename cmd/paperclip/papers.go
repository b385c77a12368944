package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/csheth/paperclip/internal/config"
	"github.com/csheth/paperclip/internal/notion"
	"github.com/csheth/paperclip/internal/retry"
	"github.com/csheth/paperclip/internal/session"
)

type paperSource interface {
	ListPapers(ctx context.Context) ([]session.PaperInfo, error)
	SearchPapers(ctx context.Context, query string) ([]session.PaperInfo, error)
}

func newPapersCommand(opts *rootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "papers",
		Short: "List the papers under the Notion parent page",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.load()
			if err != nil {
				return err
			}
			if issues := config.IssuesFor(s.Validate(), config.PhaseNotion); len(issues) > 0 {
				return fmt.Errorf("notion is not configured: %v", issues[0])
			}
			client := notion.New(notion.Config{
				Token:      s.Notion.Token,
				BaseURL:    s.Notion.BaseURL,
				APIVersion: s.Notion.APIVersion,
				Timeout:    s.Notion.Timeout,
				Retry:      retry.DefaultPolicy(s.Notion.MaxAttempts),
			})
			return papersRun(cmd, notion.NewPapers(client, s.Notion.ParentPageID), query)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only papers whose title matches")
	return cmd
}

func papersRun(cmd *cobra.Command, source paperSource, query string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	var (
		papers []session.PaperInfo
		err    error
	)
	if query != "" {
		papers, err = source.SearchPapers(ctx, query)
	} else {
		papers, err = source.ListPapers(ctx)
	}
	if err != nil {
		return fmt.Errorf("list papers: %w", err)
	}

	out := newPrinter(cmd)
	if len(papers) == 0 {
		out.Info("No papers found")
		return nil
	}
	table := out.Table([]string{"Paper", "Created", "Pages", "ID"})
	for _, paper := range papers {
		created := ""
		if paper.CreatedAt != nil {
			created = paper.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		state, id := "incomplete", ""
		if paper.Refs != nil {
			id = paper.Refs.PageID
			if paper.Refs.Complete() {
				state = "ready"
			}
		}
		_ = table.Append([]string{paper.Name, created, statusColor(state), faint(id)})
	}
	return table.Render()
}
