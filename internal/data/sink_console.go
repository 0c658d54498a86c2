package data

import (
	"context"
	"fmt"
	"io"
	"sync"

	"movietrends/internal/biz"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6EC4F4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6ef4a1ff"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F45E6E"))
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

var analysisTitles = map[string]string{
	biz.AnalysisAllTime:    "Top K Movies of all time",
	biz.AnalysisAgeGroup:   "Top K Movies for a specific Age Group",
	biz.AnalysisSeason:     "Top K Movies for a specific Season",
	biz.AnalysisOccupation: "Top K Movies for users with a specific Occupation",
	biz.AnalysisGender:     "Top K Movies for each Gender",
	biz.AnalysisGenre:      "Top K Movies for each Genre",
}

// ConsoleSink prints every ranking as a table under its heading. Whole tables
// are written under one lock so concurrent analyses never interleave.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink creates a console sink writing to w
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Emit(_ context.Context, _ string, r *biz.Ranking) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(r.Columns()...).
		Rows(r.Records()...)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s\n%s\n\n", headingStyle.Render(r.Label+":"), t.Render())
	return err
}

func (s *ConsoleSink) RunStarted(analyses []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, infoStyle.Render("We will be analyzing the following trends:"))
	for i, name := range analyses {
		title, ok := analysisTitles[name]
		if !ok {
			title = name
		}
		fmt.Fprintln(s.w, infoStyle.Render(fmt.Sprintf("%d. %s", i+1, title)))
	}
	fmt.Fprintln(s.w)
}

func (s *ConsoleSink) RunFinished(report *biz.TrendReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failed := report.Failed(); len(failed) > 0 {
		for _, a := range failed {
			fmt.Fprintln(s.w, errorStyle.Render(fmt.Sprintf("Analysis %s failed: %v", a.Name, a.Err)))
		}
		return
	}
	fmt.Fprintln(s.w, successStyle.Render("Analysis Completed and Output Files Generated!"))
}
