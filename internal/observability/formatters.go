// Package observability renders run and scoring summaries for the console.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jonathan/logishift/internal/types"
)

const (
	// boxWidth is the display width of formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
	titleWidth     = 48
)

// Printer handles formatted console output.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// fit truncates s to width display cells and pads it to exactly width.
// Japanese and Chinese titles take two cells per character.
func fit(s string, width int) string {
	s = runewidth.Truncate(s, width, "...")
	return runewidth.FillRight(s, width)
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", fit(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", fit(line, inner))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintScoreReport outputs the score distribution and the top articles at or
// above the report threshold.
func (p *Printer) PrintScoreReport(report *types.ScoreReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Scored:     %d\n", report.Total))
	sb.WriteString(fmt.Sprintf("Threshold:  %d\n", report.Threshold))
	sb.WriteString(fmt.Sprintf("Above:      %d\n", report.HighScoreCount))
	if errs := countErrors(report.Articles); errs > 0 {
		sb.WriteString(fmt.Sprintf("Errors:     %d\n", errs))
	}

	if len(report.HighScoreArticles) > 0 {
		sb.WriteString("\n")
		count := min(len(report.HighScoreArticles), maxItemsToShow)
		for i := 0; i < count; i++ {
			a := report.HighScoreArticles[i]
			sb.WriteString(fmt.Sprintf("%3d  %-6s  %s  %s\n", a.Score, a.Relevance, fit(a.Title, titleWidth-8), a.Source))
		}
		if len(report.HighScoreArticles) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(report.HighScoreArticles)-maxItemsToShow))
		}
	}

	p.printBox("SCORE REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRunReport outputs the counts and per-item outcomes of a pipeline run.
func (p *Printer) PrintRunReport(report *types.RunReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:        %s\n", report.RunID))
	if report.DryRun {
		sb.WriteString("Mode:       dry run\n")
	}
	sb.WriteString(fmt.Sprintf("Collected:  %d\n", report.Collected))
	sb.WriteString(fmt.Sprintf("Scored:     %d\n", report.Scored))
	sb.WriteString(fmt.Sprintf("Above %-3d   %d\n", report.Threshold, report.AboveThreshold))
	sb.WriteString(fmt.Sprintf("Generated:  %d\n", report.Generated()))
	if d := report.Count(types.StatusDuplicate); d > 0 {
		sb.WriteString(fmt.Sprintf("Duplicates: %d\n", d))
	}
	if f := report.Count(types.StatusFailed); f > 0 {
		sb.WriteString(fmt.Sprintf("Failed:     %d\n", f))
	}
	if !report.FinishedAt.IsZero() && !report.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Duration:   %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Second)))
	}

	if len(report.Outcomes) > 0 {
		sb.WriteString("\n")
		for _, o := range report.Outcomes {
			sb.WriteString(fmt.Sprintf("%s %-9s %3d  %s\n", statusMark(o.Status), o.Status, o.Score, fit(o.Title, titleWidth)))
			if o.Link != "" {
				sb.WriteString(fmt.Sprintf("    %s\n", o.Link))
			} else if o.Reason != "" {
				sb.WriteString(fmt.Sprintf("    %s\n", o.Reason))
			}
		}
	}

	p.printBox("PIPELINE RUN", strings.TrimSuffix(sb.String(), "\n"))
}

func statusMark(s types.ItemStatus) string {
	switch s {
	case types.StatusPublished, types.StatusDryRun:
		return "✓"
	case types.StatusDuplicate:
		return "="
	default:
		return "✗"
	}
}

func countErrors(articles []types.ScoredArticle) int {
	n := 0
	for _, a := range articles {
		if a.Relevance == types.RelevanceError {
			n++
		}
	}
	return n
}
