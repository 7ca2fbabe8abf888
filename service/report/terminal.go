package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/viant/intake/model/submission"
	"github.com/viant/intake/service/scoring"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	tierStyles = map[Tier]lipgloss.Style{
		TierLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		TierMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		TierHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	}
)

// Terminal renders the score summary for a terminal.
func Terminal(s *submission.Submission, r *scoring.Result) string {
	view := NewView(s, r)
	width := len("total")
	for _, row := range view.Rows {
		if len(row.Dimension) > width {
			width = len(row.Dimension)
		}
	}
	var lines []string
	lines = append(lines, titleStyle.Render(view.Project))
	if view.Organization != "" {
		lines = append(lines, view.Organization)
	}
	for _, row := range view.Rows {
		lines = append(lines, fmt.Sprintf("%-*s %s", width, row.Dimension, tierStyles[row.Tier].Render(fmt.Sprintf("%3.0f%%", row.Percent))))
	}
	lines = append(lines, fmt.Sprintf("%-*s %s", width, "total", tierStyles[view.TotalTier].Render(fmt.Sprintf("%3.0f", view.Total))))
	for _, d := range view.Diagnostics {
		lines = append(lines, fmt.Sprintf("! %v %q %v", d.QuestionID, d.Answer, d.Reason))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func sortedKeys(m map[string]float64) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Plain strips styling, used when output is not a terminal.
func Plain(s *submission.Submission, r *scoring.Result) string {
	view := NewView(s, r)
	builder := strings.Builder{}
	builder.WriteString(view.Project + "\n")
	for _, row := range view.Rows {
		builder.WriteString(fmt.Sprintf("%v\t%.0f%%\t%v\n", row.Dimension, row.Percent, row.Tier))
	}
	builder.WriteString(fmt.Sprintf("total\t%.0f\t%v\n", view.Total, view.TotalTier))
	return builder.String()
}
