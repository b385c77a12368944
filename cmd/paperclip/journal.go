package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"

	"github.com/csheth/paperclip/internal/journal"
)

const journalBodyWidth = 60

type journalOptions struct {
	paper  string
	status string
	limit  int
	papers bool
}

func newJournalCommand(opts *rootOptions) *cobra.Command {
	jopts := journalOptions{}
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show highlights and notes recorded on this machine",
		Long: `Show the local journal of highlights and notes and whether each one
reached Notion. Failed and dropped entries are listed but never retried.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.load()
			if err != nil {
				return err
			}
			if !s.Journal.Enabled {
				return fmt.Errorf("the journal is disabled (journal.enabled)")
			}
			store, err := journal.Open(cmd.Context(), s.Journal.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			return journalRun(cmd, store, jopts)
		},
	}
	cmd.Flags().StringVar(&jopts.paper, "paper", "", "Only entries for this paper")
	cmd.Flags().StringVar(&jopts.status, "status", "", "Only entries with this status (synced, failed, dropped)")
	cmd.Flags().IntVarP(&jopts.limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().BoolVar(&jopts.papers, "papers", false, "Summarize per paper instead of listing entries")
	return cmd
}

type journalReader interface {
	Recent(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
	Papers(ctx context.Context) ([]journal.PaperSummary, error)
}

func journalRun(cmd *cobra.Command, store journalReader, jopts journalOptions) error {
	out := newPrinter(cmd)
	if jopts.papers {
		summaries, err := store.Papers(cmd.Context())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			out.Info("The journal is empty")
			return nil
		}
		table := out.Table([]string{"Paper", "Highlights", "Notes", "Failed", "Last"})
		for _, sum := range summaries {
			failed := strconv.Itoa(sum.Failed)
			if sum.Failed > 0 {
				failed = red(failed)
			}
			_ = table.Append([]string{
				sum.Paper,
				strconv.Itoa(sum.Highlights),
				strconv.Itoa(sum.Notes),
				failed,
				sum.LastAt.Local().Format("2006-01-02 15:04"),
			})
		}
		return table.Render()
	}

	switch journal.Status(jopts.status) {
	case "", journal.StatusSynced, journal.StatusFailed, journal.StatusDropped:
	default:
		return fmt.Errorf("unknown status %q (want synced, failed or dropped)", jopts.status)
	}
	entries, err := store.Recent(cmd.Context(), journal.Filter{
		Paper:  jopts.paper,
		Status: journal.Status(jopts.status),
		Limit:  jopts.limit,
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		out.Info("No matching entries")
		return nil
	}
	table := out.Table([]string{"Captured", "Kind", "Status", "Paper", "Text"})
	for _, e := range entries {
		text := strings.Join(strings.Fields(e.Body), " ")
		text = truncate.StringWithTail(text, journalBodyWidth, "…")
		if e.Error != "" {
			text += "\n" + red(truncate.StringWithTail(e.Error, journalBodyWidth, "…"))
		}
		_ = table.Append([]string{
			e.CapturedAt.Local().Format("01-02 15:04:05"),
			string(e.Kind),
			statusColor(string(e.Status)),
			e.Paper,
			text,
		})
	}
	return table.Render()
}
