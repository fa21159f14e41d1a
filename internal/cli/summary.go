package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/trsync/internal/engine"
	"github.com/Veraticus/trsync/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// RenderRunSummary renders the outcome of a sync run.
func RenderRunSummary(result *engine.RunResult) string {
	var b strings.Builder

	f := result.Filtered
	fmt.Fprintf(&b, "%s %d\n", BoldStyle.Render("Feed entries:"), f.Total)
	if f.Dropped() > 0 {
		fmt.Fprintf(&b, "%s\n", SubtleStyle.Render(fmt.Sprintf(
			"  skipped %d (other currency %d, vault inflow %d, declined %d)",
			f.Dropped(), f.Currency, f.VaultInflow, f.Declined)))
	}

	switch {
	case result.Bootstrapped && result.MarkerBefore != "":
		b.WriteString(FormatWarning(fmt.Sprintf("Marker %s was not in the feed; starting over from the latest transaction", result.MarkerBefore)))
		b.WriteString("\n")
	case result.Bootstrapped:
		b.WriteString(FormatInfo("First run: history before now is not pushed"))
		b.WriteString("\n")
	}

	if result.DryRun {
		fmt.Fprintf(&b, "%s %d\n", BoldStyle.Render("Would push:"), len(result.Planned))
	} else {
		fmt.Fprintf(&b, "%s %d\n", BoldStyle.Render("Pushed:"), len(result.Pushed))
	}

	before := result.MarkerBefore
	if before == "" {
		before = "(none)"
	}
	after := result.MarkerAfter
	if after == "" {
		after = "(none)"
	}
	label := "Marker:"
	if result.DryRun {
		label = "Marker (not written):"
	}
	if result.MarkerChanged() {
		fmt.Fprintf(&b, "%s %s → %s", BoldStyle.Render(label), before, after)
	} else {
		fmt.Fprintf(&b, "%s %s (unchanged)", BoldStyle.Render(label), before)
	}

	title := "Sync complete"
	if result.DryRun {
		title = "Dry run"
	}
	return RenderBox(title, b.String())
}

// RenderPlan renders classified transactions as a table.
func RenderPlan(planned []model.ClassifiedTransaction) string {
	if len(planned) == 0 {
		return ""
	}

	headers := []string{"Date", "Kind", "Amount", "From", "To", "Category"}
	rows := make([][]string, 0, len(planned))
	for _, tx := range planned {
		rows = append(rows, []string{
			tx.Date,
			string(tx.Kind),
			model.FormatAmount(tx.Amount.Abs()) + " " + tx.Currency,
			tx.Source.String(),
			tx.Destination.String(),
			tx.Category,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		rendered := make([]string, len(cells))
		for i, cell := range cells {
			rendered[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	}

	lines := []string{renderRow(headers, TableHeaderStyle)}
	for _, row := range rows {
		lines = append(lines, renderRow(row, lipgloss.NewStyle()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
