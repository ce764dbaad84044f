// Package ansi removes terminal escape sequences from raw output so the
// buffered history holds only visible text.
package ansi

import "regexp"

var (
	// OSC sequences terminate with BEL or ST (ESC \). Unterminated OSC at
	// the end of a chunk is consumed to the end of the string.
	oscSeq = regexp.MustCompile("\x1b\\][^\x07\x1b]*(?:\x07|\x1b\\\\)?")
	// CSI: parameter bytes, intermediate bytes, one final byte.
	csiSeq = regexp.MustCompile("\x1b\\[[0-?]*[ -/]*[@-~]")
	// Remaining two-character escapes (ESC + Fe byte).
	escSeq = regexp.MustCompile("\x1b[@-_]")
	// C1 control codes encoded as single runes, CSI/OSC included.
	c1Ctrl = regexp.MustCompile("[-]")
)

// Strip removes ANSI/VT escape sequences from raw, leaving printable text
// and newlines intact. It never fails and is idempotent: text that is not
// part of a recognized escape grammar passes through verbatim.
func Strip(raw string) string {
	if raw == "" {
		return ""
	}
	out := oscSeq.ReplaceAllString(raw, "")
	out = csiSeq.ReplaceAllString(out, "")
	out = escSeq.ReplaceAllString(out, "")
	out = c1Ctrl.ReplaceAllString(out, "")
	return out
}
