package proto

import (
	"errors"
	"fmt"
	"strings"
)

// Protocol line limits, per RFC 1459 and the IRCv3 message-tags extension.
// The base limit covers everything including the trailing CRLF. When the
// message-tags capability has been negotiated, the tag block gets its own
// separate budget and does not count against the base limit.
const (
	MaxLineLen = 512
	MaxTagsLen = 8191
)

// Limits controls the length ceilings applied while decoding or encoding.
// Tags == 0 means the tag block counts against Line (message-tags not
// negotiated); Tags > 0 gives the tag block its own ceiling.
type Limits struct {
	Line int
	Tags int
}

// DefaultLimits is deliberately lenient on the tag budget: some networks
// attach tags before the capability handshake completes.
var DefaultLimits = Limits{Line: MaxLineLen, Tags: MaxTagsLen}

var (
	ErrTooLong   = errors.New("line exceeds length limit")
	ErrEmpty     = errors.New("empty line")
	ErrMalformed = errors.New("malformed line")
)

// ParseError reports a line that could not be decoded. The offending unit is
// dropped by callers; a parse failure never kills the connection.
type ParseError struct {
	Err  error
	Line string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EncodeError reports a message that could not be rendered within the active
// limits.
type EncodeError struct {
	Err     error
	Command string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Command, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Prefix is the source of a message: a bare server name, or nick!user@host
// for messages relayed from another client.
type Prefix struct {
	Name string
	User string
	Host string
}

// ParsePrefix splits a raw prefix token on !/@. A token without both
// separators is a bare server or nick name.
func ParsePrefix(raw string) Prefix {
	p := Prefix{Name: raw}
	i := strings.Index(raw, "!")
	j := strings.Index(raw, "@")
	if i > -1 && j > i {
		p.Name = raw[:i]
		p.User = raw[i+1 : j]
		p.Host = raw[j+1:]
	} else if j > -1 {
		p.Name = raw[:j]
		p.Host = raw[j+1:]
	}
	return p
}

func (p Prefix) String() string {
	switch {
	case p.User != "" && p.Host != "":
		return p.Name + "!" + p.User + "@" + p.Host
	case p.Host != "":
		return p.Name + "@" + p.Host
	default:
		return p.Name
	}
}

// IsServer reports whether the prefix names a server rather than a user.
// Servers never carry an ident, and their names contain dots.
func (p Prefix) IsServer() bool {
	return p.User == "" && p.Host == "" && strings.Contains(p.Name, ".")
}

// Message is one parsed IRC protocol line. It is not modified after parsing.
type Message struct {
	// Tags holds IRCv3 message tags. A tag present without a value maps to
	// the empty string; absence is distinguished by map lookup.
	Tags   map[string]string
	Prefix Prefix
	// Command is an uppercased verb, or a 3-digit numeric kept verbatim.
	Command string
	Params  []string
}

// New builds an outbound message with no tags or prefix.
func New(command string, params ...string) *Message {
	return &Message{Command: strings.ToUpper(command), Params: params}
}

// Nick returns the nick portion of the prefix.
func (m *Message) Nick() string { return m.Prefix.Name }

// Trailing returns the final parameter, or "".
func (m *Message) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// IsNumeric reports whether the command is a 3-digit reply code.
func (m *Message) IsNumeric() bool {
	if len(m.Command) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if m.Command[i] < '0' || m.Command[i] > '9' {
			return false
		}
	}
	return true
}

// ParseLine decodes a single protocol line under DefaultLimits. The line may
// carry its CRLF terminator; it is stripped before parsing.
func ParseLine(line string) (*Message, error) {
	return ParseLineLimits(line, DefaultLimits)
}

// ParseLineLimits decodes a line under explicit length limits.
func ParseLineLimits(line string, lim Limits) (*Message, error) {
	raw := line
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return nil, &ParseError{Err: ErrEmpty, Line: raw}
	}

	msg := &Message{}

	// Optional IRCv3 tag block. With message-tags negotiated the block has
	// its own budget ("@" + tags + separating space); otherwise it counts
	// against the base line limit like everything else.
	if line[0] == '@' {
		i := strings.Index(line, " ")
		if i < 0 {
			return nil, &ParseError{Err: ErrMalformed, Line: raw}
		}
		if lim.Tags > 0 && i+1 > lim.Tags {
			return nil, &ParseError{Err: ErrTooLong, Line: truncate(raw)}
		}
		if lim.Tags == 0 && len(line)+2 > lim.Line {
			return nil, &ParseError{Err: ErrTooLong, Line: truncate(raw)}
		}
		msg.Tags = parseTags(line[1:i])
		line = line[i+1:]
	}

	// CRLF is part of the protocol limit even when the caller stripped it.
	if len(line)+2 > lim.Line {
		return nil, &ParseError{Err: ErrTooLong, Line: truncate(raw)}
	}

	// Optional prefix.
	if line != "" && line[0] == ':' {
		i := strings.Index(line, " ")
		if i < 0 {
			return nil, &ParseError{Err: ErrMalformed, Line: raw}
		}
		msg.Prefix = ParsePrefix(line[1:i])
		line = line[i+1:]
	}

	// Command token.
	line = strings.TrimLeft(line, " ")
	if line == "" {
		return nil, &ParseError{Err: ErrMalformed, Line: raw}
	}
	var cmd string
	if i := strings.Index(line, " "); i > -1 {
		cmd, line = line[:i], line[i+1:]
	} else {
		cmd, line = line, ""
	}
	if isNumericToken(cmd) {
		msg.Command = cmd
	} else {
		msg.Command = strings.ToUpper(cmd)
	}

	// Parameters: space separated, ':' introduces the trailing parameter
	// which consumes the rest of the line (and may be empty).
	for line != "" {
		if line[0] == ':' {
			msg.Params = append(msg.Params, line[1:])
			break
		}
		if i := strings.Index(line, " "); i > -1 {
			if i > 0 {
				msg.Params = append(msg.Params, line[:i])
			}
			line = line[i+1:]
			continue
		}
		msg.Params = append(msg.Params, line)
		break
	}

	return msg, nil
}

// Line renders the message as a protocol line without CRLF, under
// DefaultLimits.
func (m *Message) Line() (string, error) {
	return m.LineLimits(DefaultLimits)
}

// LineLimits renders the message under explicit limits. It is the exact
// inverse of ParseLineLimits for well-formed messages.
func (m *Message) LineLimits(lim Limits) (string, error) {
	var tagPart string
	if len(m.Tags) > 0 {
		tagPart = "@" + encodeTags(m.Tags) + " "
		if lim.Tags > 0 && len(tagPart) > lim.Tags {
			return "", &EncodeError{Err: ErrTooLong, Command: m.Command}
		}
	}

	var b strings.Builder
	if m.Prefix.Name != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix.String())
		b.WriteByte(' ')
	}
	if m.Command == "" {
		return "", &EncodeError{Err: ErrMalformed, Command: m.Command}
	}
	b.WriteString(m.Command)
	for i, p := range m.Params {
		last := i == len(m.Params)-1
		if strings.ContainsAny(p, "\r\n") {
			return "", &EncodeError{Err: ErrMalformed, Command: m.Command}
		}
		if !last && (p == "" || strings.Contains(p, " ") || p[0] == ':') {
			return "", &EncodeError{Err: ErrMalformed, Command: m.Command}
		}
		b.WriteByte(' ')
		if last && (p == "" || strings.Contains(p, " ") || p[0] == ':') {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}

	body := b.String()
	if len(body)+2 > lim.Line {
		return "", &EncodeError{Err: ErrTooLong, Command: m.Command}
	}
	if lim.Tags == 0 && len(tagPart)+len(body)+2 > lim.Line {
		return "", &EncodeError{Err: ErrTooLong, Command: m.Command}
	}
	return tagPart + body, nil
}

// Bytes renders the message with its CRLF terminator, ready for the send
// path.
func (m *Message) Bytes(lim Limits) ([]byte, error) {
	line, err := m.LineLimits(lim)
	if err != nil {
		return nil, err
	}
	return append([]byte(line), '\r', '\n'), nil
}

// String renders without limits enforcement, for logging only.
func (m *Message) String() string {
	line, err := m.LineLimits(Limits{Line: 1 << 20, Tags: 1 << 20})
	if err != nil {
		return fmt.Sprintf("<%s invalid: %v>", m.Command, err)
	}
	return line
}

func isNumericToken(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func truncate(line string) string {
	const keep = 64
	if len(line) <= keep {
		return line
	}
	return line[:keep] + "..."
}
