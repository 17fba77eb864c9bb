// Package render provides output formatting for detbuild commands.
package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Column headers of the results grid.
const (
	HeaderOff = "HOOK OFF"
	HeaderOn  = "HOOK ON"
)

// Grid labels, keyed by case outcome.
var outcomeLabels = map[string]string{
	"deterministic":     "SUCCESS",
	"non-deterministic": "FAIL",
	"inconclusive":      "INCONCLUSIVE",
	"unknown":           "UNKNOWN",
}

var outcomeColors = map[string]color.Attribute{
	"deterministic":     color.FgGreen,
	"non-deterministic": color.FgRed,
	"inconclusive":      color.FgYellow,
	"unknown":           color.FgWhite,
}

// NameMaxLen is the maximum display width of a case name.
const NameMaxLen = 60

// GridRow is one case in the results grid. Off and On hold outcome names;
// empty means the hook state was not run.
type GridRow struct {
	Case string
	Off  string
	On   string
}

// OutcomeLabel returns the grid label for outcome.
func OutcomeLabel(outcome string) string {
	if label, ok := outcomeLabels[outcome]; ok {
		return label
	}
	return "UNKNOWN"
}

// WriteGrid writes the per-case results grid.
//
// Output format:
//
//	                    HOOK OFF      HOOK ON
//	datetime-macro      FAIL          SUCCESS
//	empty-lib           SUCCESS       SUCCESS
func WriteGrid(w io.Writer, rows []GridRow, colorOn bool) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no cases run")
		return err
	}

	nameW := len("CASE")
	for _, r := range rows {
		if n := len([]rune(TruncateForDisplay(r.Case, NameMaxLen))); n > nameW {
			nameW = n
		}
	}
	cellW := len("INCONCLUSIVE") + 2

	header := paint(colorOn, fmt.Sprintf("%-*s  %-*s%s", nameW, "", cellW, HeaderOff, HeaderOn), color.FgHiMagenta)
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}

	for _, r := range rows {
		line := fmt.Sprintf("%s  %s%s",
			paint(colorOn, padRight(TruncateForDisplay(r.Case, NameMaxLen), nameW), color.FgHiMagenta),
			gridCell(colorOn, r.Off, cellW),
			gridCell(colorOn, r.On, 0),
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// gridCell pads before coloring so escape codes do not skew alignment.
func gridCell(colorOn bool, outcome string, width int) string {
	if outcome == "" {
		return padRight("-", width)
	}
	attr, ok := outcomeColors[outcome]
	if !ok {
		attr = color.FgWhite
	}
	return paint(colorOn, padRight(OutcomeLabel(outcome), width), attr)
}

func padRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return fmt.Sprintf("%s%*s", s, width-n, "")
}

// TruncateForDisplay truncates s to maxLen runes, adding an ellipsis if needed.
func TruncateForDisplay(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

// paint applies attrs when colorOn. The color is forced on or off per call
// so output does not depend on fatih/color's global NoColor detection.
func paint(colorOn bool, s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if colorOn {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}
