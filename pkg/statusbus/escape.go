// Package statusbus implements the line-oriented stdout transport the core
// process uses to talk to the UI, and the stdin reader for commands coming
// back. Grounded in the teacher's single-writer event loop
// (pkg/orchestrator's event channel consumed by one goroutine), adapted
// from an in-process channel into a line-delimited external-process
// protocol.
package statusbus

import "strings"

// Escape converts literal newlines and carriage returns into the two-
// character sequences \n and \r so a multi-line chunk survives the
// line-oriented transport intact. This is, per design note, the single
// most important contract in the package: every other message kind is
// built on top of it holding.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}

// Unescape reverses Escape. It is deliberately the exact inverse: for any s
// containing \n, \r, \t, quotes, or Unicode, Unescape(Escape(s)) == s.
func Unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
