package loadtest

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	colorPrimary = lipgloss.Color("#6C63FF")
	colorMuted   = lipgloss.Color("#666666")
	colorSuccess = lipgloss.Color("#2ECC71")
	colorError   = lipgloss.Color("#E74C3C")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted).Width(24)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// maxListedMismatches caps the mismatch lines printed in a report.
const maxListedMismatches = 20

// Render writes the run summary, the verdict and the top of the total board.
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder
	s := r.Stats

	b.WriteString(titleStyle.Render("Ledger load run") + "\n\n")
	for _, row := range [][2]string{
		{"requests", strconv.FormatInt(s.Requests.Load(), 10)},
		{"failed requests", strconv.FormatInt(s.Failed.Load(), 10)},
		{"profiles created", strconv.FormatInt(s.ProfilesCreated.Load(), 10)},
		{"tasks completed", strconv.FormatInt(s.TasksCompleted.Load(), 10)},
		{"events billed", strconv.FormatInt(s.EventsBilled.Load(), 10)},
		{"transactions confirmed", strconv.FormatInt(s.TransactionsConfirmed.Load(), 10)},
		{"profiles verified", strconv.FormatInt(s.ProfilesVerified.Load(), 10)},
		{"duration", s.Duration.Round(time.Millisecond).String()},
		{"requests/s", fmt.Sprintf("%.1f", r.throughput())},
	} {
		b.WriteString(labelStyle.Render(row[0]) + row[1] + "\n")
	}
	b.WriteString("\n")

	if r.Passed() {
		b.WriteString(successStyle.Render("PASS: every profile matches its ledger") + "\n")
	} else {
		b.WriteString(errorStyle.Render(fmt.Sprintf("FAIL: %d mismatches", len(r.Mismatches))) + "\n")
		for i, m := range r.Mismatches {
			if i == maxListedMismatches {
				b.WriteString(fmt.Sprintf("  ... and %d more\n", len(r.Mismatches)-i))
				break
			}
			b.WriteString("  " + m + "\n")
		}
	}

	if len(r.Top) > 0 {
		b.WriteString("\n" + r.topTable() + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Passed reports whether the audit found nothing wrong.
func (r *Report) Passed() bool { return len(r.Mismatches) == 0 }

func (r *Report) throughput() float64 {
	if r.Stats.Duration <= 0 {
		return 0
	}
	return float64(r.Stats.Requests.Load()) / r.Stats.Duration.Seconds()
}

func (r *Report) topTable() string {
	rows := make([][]string, len(r.Top))
	for i, s := range r.Top {
		rows[i] = []string{strconv.Itoa(s.CurrentRank), s.Name, strconv.FormatInt(s.Score, 10), s.Arrow}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers("rank", "name", "total", "trend").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}
