package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ryanuber/columnize"

	"github.com/NielsdaWheelz/detbuild/internal/patcher"
	"github.com/NielsdaWheelz/detbuild/internal/store"
)

// DigestMaxLen is the display width of digests in tables.
const DigestMaxLen = 19

func writeColumns(w io.Writer, lines []string) error {
	_, err := fmt.Fprintln(w, columnize.SimpleFormat(lines))
	return err
}

// WriteHistory writes stored checksums, one row per artifact per build.
// CHANGE compares each row with the previous row for the same case, hook
// state and artifact: "new", "same" or "changed".
func WriteHistory(w io.Writer, entries []store.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no history recorded")
		return err
	}

	lines := []string{"RUN | RECORDED | CASE | HOOK | REP | ARTIFACT | SIZE | DIGEST | CHANGE"}
	last := make(map[string]string)
	for _, e := range entries {
		key := e.Case + "\x00" + e.Hook + "\x00" + e.Artifact
		change := "new"
		if prev, ok := last[key]; ok {
			change = "same"
			if prev != e.Digest {
				change = "changed"
			}
		}
		last[key] = e.Digest

		lines = append(lines, strings.Join([]string{
			e.RunID,
			e.RecordedAt,
			e.Case,
			e.Hook,
			fmt.Sprint(e.Repetition),
			e.Artifact,
			humanize.IBytes(uint64(max(e.Size, 0))),
			TruncateForDisplay(e.Digest, DigestMaxLen),
			change,
		}, " | "))
	}
	return writeColumns(w, lines)
}

// WritePatchReport writes one row per handled file and a summary line.
func WritePatchReport(w io.Writer, r *patcher.Report) error {
	if len(r.Files) == 0 {
		_, err := fmt.Fprintf(w, "no archives or binaries found under %s\n", r.Root)
		return err
	}

	lines := []string{"FILE | CLASS | OUTCOME | VALUE | ASCII | PACKED | REASON"}
	for _, f := range r.Files {
		value := "-"
		if f.Value != 0 {
			value = fmt.Sprint(f.Value)
		}
		lines = append(lines, strings.Join([]string{
			f.Path,
			string(f.Class),
			string(f.Outcome),
			value,
			fmt.Sprint(len(f.ASCIIOffsets)),
			fmt.Sprint(len(f.PackedOffsets)),
			orDash(f.Reason),
		}, " | "))
	}
	if err := writeColumns(w, lines); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d patched, %d already neutral, %d unverified\n",
		r.Count(patcher.OutcomePatched)+r.Count(patcher.OutcomeRewritten),
		r.Count(patcher.OutcomeAlreadyNeutral),
		len(r.Unverified()),
	)
	return err
}

// WriteInspection writes a dry-run view of one archive.
func WriteInspection(w io.Writer, in *patcher.Inspection) error {
	value := "-"
	if in.Value != 0 {
		value = fmt.Sprint(in.Value)
	}
	lines := []string{
		"path: | " + in.Path,
		"size: | " + humanize.IBytes(uint64(max(in.Size, 0))),
		fmt.Sprintf("header field: | %q", string(in.Raw)),
		"timestamp: | " + value,
		"outcome: | " + string(in.Outcome),
		fmt.Sprintf("ascii matches: | %d %s", len(in.ASCIIOffsets), offsets(in.ASCIIOffsets)),
		fmt.Sprintf("packed matches: | %d %s", len(in.PackedOffsets), offsets(in.PackedOffsets)),
	}
	if in.Reason != "" {
		lines = append(lines, "reason: | "+in.Reason)
	}
	return writeColumns(w, lines)
}

func offsets(offs []int) string {
	if len(offs) == 0 {
		return ""
	}
	parts := make([]string, len(offs))
	for i, o := range offs {
		parts[i] = fmt.Sprintf("0x%x", o)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
