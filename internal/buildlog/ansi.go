package buildlog

import "regexp"

// escapeSeq matches the terminal escape sequences build tools emit when they
// believe they are attached to a color terminal: CSI color and cursor codes,
// OSC titles terminated by BEL or ST, DCS/PM/APC strings, two-byte escapes,
// and a truncated sequence at end of input.
var escapeSeq = regexp.MustCompile(
	`\x1b\[[0-9;:<=>?]*[ -/]*[@-~]` +
		`|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)?` +
		`|\x1b[PX^_][^\x1b]*\x1b\\` +
		`|\x1b.` +
		`|\x1b\[?$`,
)

// StripANSI removes escape sequences so markers match colored logs.
func StripANSI(s string) string {
	if s == "" {
		return s
	}
	return escapeSeq.ReplaceAllString(s, "")
}
