package handlers

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"caterpillar/internal/quality"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	totalStyle  = lipgloss.NewStyle().Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// reportRow is one labeled line of a metrics table
type reportRow struct {
	Name    string
	Metrics quality.Metrics
}

var reportColumns = []string{"", "runs", "tp", "t", "p", "precision", "recall", "f1", "iou", "noise"}

func (r reportRow) cells() []string {
	m := r.Metrics
	return []string{
		r.Name,
		fmt.Sprint(m.Runs),
		fmt.Sprint(m.TruePositives),
		fmt.Sprint(m.TrueClusters),
		fmt.Sprint(m.Predicted),
		fmt.Sprintf("%.3f", m.Precision),
		fmt.Sprintf("%.3f", m.Recall),
		fmt.Sprintf("%.3f", m.F1),
		fmt.Sprintf("%.3f", m.MeanIoU),
		fmt.Sprintf("%.3f", m.NoiseFraction),
	}
}

// renderReport lays out rows as an aligned table. The total row, if given, is
// printed last in bold.
func renderReport(title string, rows []reportRow, total *reportRow) string {
	table := [][]string{reportColumns}
	for _, r := range rows {
		table = append(table, r.cells())
	}
	if total != nil {
		table = append(table, total.cells())
	}

	widths := make([]int, len(reportColumns))
	for _, line := range table {
		for c, cell := range line {
			widths[c] = max(widths[c], lipgloss.Width(cell))
		}
	}

	var lines []string
	for i, line := range table {
		cells := make([]string, len(line))
		for c, cell := range line {
			cells[c] = cellStyle.Width(widths[c] + 2).Render(cell)
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
		switch {
		case i == 0:
			row = headerStyle.Render(row)
		case total != nil && i == len(table)-1:
			row = totalStyle.Render(row)
		}
		lines = append(lines, row)
	}

	body := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), strings.Join(lines, "\n"))
	return boxStyle.Render(body)
}

// renderFolds lists the validation ids of every fold
func renderFolds(folds [][]int) string {
	lines := []string{titleStyle.Render("Validation folds")}
	for f, ids := range folds {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprint(id)
		}
		lines = append(lines, fmt.Sprintf("%s %s", headerStyle.Render(fmt.Sprintf("fold %d:", f)), strings.Join(parts, ", ")))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
