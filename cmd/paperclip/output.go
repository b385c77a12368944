package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// printer writes the colored, non-TUI output of the subcommands.
type printer struct {
	out io.Writer
	err io.Writer
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	faint         = color.New(color.Faint).SprintFunc()
)

func (p printer) Info(format string, a ...any) {
	fmt.Fprintf(p.out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (p printer) Success(format string, a ...any) {
	fmt.Fprintf(p.out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (p printer) Warning(format string, a ...any) {
	fmt.Fprintf(p.err, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (p printer) Error(format string, a ...any) {
	fmt.Fprintf(p.err, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

// Table returns a borderless table with left aligned columns.
func (p printer) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(p.out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

func statusColor(status string) string {
	switch status {
	case "synced", "ready":
		return green(status)
	case "dropped", "incomplete":
		return yellow(status)
	case "failed", "disabled":
		return red(status)
	default:
		return status
	}
}
