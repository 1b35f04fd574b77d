package proto

import "strings"

// ctcpDelim frames a CTCP request inside a PRIVMSG or NOTICE body.
const ctcpDelim = "\x01"

// CTCP is the decoded client-to-client payload of a message body.
type CTCP struct {
	// Verb is the uppercased CTCP command, e.g. ACTION, VERSION, DCC.
	Verb string
	// Arg is everything after the verb, unaltered.
	Arg string
}

// DecodeCTCP extracts a CTCP payload from a PRIVMSG/NOTICE trailing
// parameter. An unterminated or empty wrapping degrades to plain text: ok is
// false and the caller treats the body as an ordinary message.
func DecodeCTCP(m *Message) (CTCP, bool) {
	if m.Command != CmdPrivmsg && m.Command != CmdNotice {
		return CTCP{}, false
	}
	if len(m.Params) < 2 {
		return CTCP{}, false
	}
	body := m.Params[len(m.Params)-1]
	if len(body) < 2 || !strings.HasPrefix(body, ctcpDelim) || !strings.HasSuffix(body, ctcpDelim) {
		return CTCP{}, false
	}
	inner := body[1 : len(body)-1]
	if inner == "" {
		return CTCP{}, false
	}
	verb, arg, _ := strings.Cut(inner, " ")
	return CTCP{Verb: strings.ToUpper(verb), Arg: arg}, true
}

// EncodeCTCP wraps a verb and argument for embedding as a message body.
func EncodeCTCP(verb, arg string) string {
	if arg == "" {
		return ctcpDelim + strings.ToUpper(verb) + ctcpDelim
	}
	return ctcpDelim + strings.ToUpper(verb) + " " + arg + ctcpDelim
}
