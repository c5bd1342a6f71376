package infer

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// FormatError renders one finding as a human-readable diagnostic. When the
// source text of the analyzed file is supplied, the offending line is shown
// with a caret under the column; caret alignment is display-width aware so
// wide runes in the source do not skew it.
//
//	mod.py:3:9: [unresolved-attribute] no attribute bit_length on str
//	    y = x.bit_length
//	        ^
func FormatError(e Error, source string) string {
	var b strings.Builder

	if e.Line > 0 {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Func, e.Line, e.Col)
	} else {
		fmt.Fprintf(&b, "%s: ", e.Func)
	}
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if len(e.Snapshot) > 0 {
		fmt.Fprintf(&b, " (value: %s)", snapshotString(e.Snapshot))
	}

	line := sourceLine(source, e.Line)
	if line != "" && e.Col >= 1 && e.Col <= len([]rune(line))+1 {
		b.WriteString("\n    ")
		b.WriteString(line)
		b.WriteString("\n    ")
		prefix := string([]rune(line)[:e.Col-1])
		b.WriteString(strings.Repeat(" ", runewidth.StringWidth(prefix)))
		b.WriteString("^")
	}
	return b.String()
}

// FormatErrors renders all findings, one per paragraph.
func FormatErrors(errs []Error, source string) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = FormatError(e, source)
	}
	return strings.Join(parts, "\n")
}

func sourceLine(source string, line int) string {
	if source == "" || line < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}
