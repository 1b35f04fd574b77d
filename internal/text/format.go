// Package text holds the stateless formatting-code helpers. These are pure
// string transforms with no bearing on protocol correctness.
package text

import "github.com/ergochat/irc-go/ircfmt"

// Formatting control bytes used in message bodies.
const (
	Bold          = "\x02"
	Color         = "\x03"
	Monospace     = "\x11"
	Reverse       = "\x16"
	Italic        = "\x1d"
	Strikethrough = "\x1e"
	Underline     = "\x1f"
	Reset         = "\x0f"
)

// Strip removes all formatting and color codes from a message body.
func Strip(s string) string {
	return ircfmt.Strip(s)
}

// Escape converts raw formatting codes into the readable $-escaped form.
func Escape(s string) string {
	return ircfmt.Escape(s)
}

// Unescape converts $-escaped formatting back into raw control codes.
func Unescape(s string) string {
	return ircfmt.Unescape(s)
}
