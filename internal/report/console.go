package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ginjaninja78/warranty-orders/internal/batch"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// RenderSummary prints a human readable batch summary. Labels are padded by
// display width so accented status names stay aligned.
func RenderSummary(w io.Writer, source string, s *batch.Summary) error {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Processing summary: " + source))
	sb.WriteString("\n\n")

	writeTable(&sb, [][2]string{
		{"Total rows", strconv.Itoa(s.TotalRows)},
		{"Valid rows", fmt.Sprintf("%d (%.1f%%)", s.ValidRows, s.ValidRate())},
		{"Rejected rows", strconv.Itoa(s.RejectedRows())},
		{"Blank rows skipped", strconv.Itoa(s.BlankRows)},
		{"Verified calculations", strconv.Itoa(s.VerifiedCalculations)},
	})

	sb.WriteString("\n")
	sb.WriteString(sectionStyle.Render("Rejections by cause"))
	sb.WriteString("\n")
	causes := make([][2]string, 0, len(types.Causes))
	for _, c := range types.Causes {
		causes = append(causes, [2]string{string(c), strconv.Itoa(s.Rejections[c])})
	}
	writeTable(&sb, causes)

	sb.WriteString("\n")
	sb.WriteString(sectionStyle.Render("Status distribution"))
	sb.WriteString("\n")
	if len(s.StatusDistribution) == 0 {
		sb.WriteString("  " + mutedStyle.Render("(none)") + "\n")
	} else {
		statuses := make([][2]string, 0, len(s.StatusDistribution))
		for _, k := range s.Statuses() {
			statuses = append(statuses, [2]string{k, strconv.Itoa(s.StatusDistribution[k])})
		}
		writeTable(&sb, statuses)
	}

	sb.WriteString("\n")
	sb.WriteString(sectionStyle.Render("Orders per year"))
	sb.WriteString("\n")
	if len(s.YearDistribution) == 0 {
		sb.WriteString("  " + mutedStyle.Render("(none)") + "\n")
	} else {
		years := make([][2]string, 0, len(s.YearDistribution))
		for _, y := range s.Years() {
			years = append(years, [2]string{strconv.Itoa(y), strconv.Itoa(s.YearDistribution[y])})
		}
		writeTable(&sb, years)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeTable(sb *strings.Builder, rows [][2]string) {
	width := 0
	for _, r := range rows {
		if n := runewidth.StringWidth(r[0]); n > width {
			width = n
		}
	}
	for _, r := range rows {
		sb.WriteString("  ")
		sb.WriteString(runewidth.FillRight(r[0], width))
		sb.WriteString("  ")
		sb.WriteString(r[1])
		sb.WriteString("\n")
	}
}
