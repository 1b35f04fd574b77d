package proto

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ergochat/irc-go/ircmsg"
)

func TestParseLineBasic(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		command string
		params  []string
		prefix  Prefix
	}{
		{
			name:    "privmsg with trailing",
			line:    ":nick!user@host PRIVMSG #chan :hello world",
			command: "PRIVMSG",
			params:  []string{"#chan", "hello world"},
			prefix:  Prefix{Name: "nick", User: "user", Host: "host"},
		},
		{
			name:    "server numeric",
			line:    ":irc.example.org 001 me :Welcome to the network",
			command: "001",
			params:  []string{"me", "Welcome to the network"},
			prefix:  Prefix{Name: "irc.example.org"},
		},
		{
			name:    "no prefix",
			line:    "PING :token",
			command: "PING",
			params:  []string{"token"},
		},
		{
			name:    "lowercase command uppercased",
			line:    "privmsg #chan hi",
			command: "PRIVMSG",
			params:  []string{"#chan", "hi"},
		},
		{
			name:    "empty trailing kept",
			line:    ":n!u@h TOPIC #chan :",
			command: "TOPIC",
			params:  []string{"#chan", ""},
			prefix:  Prefix{Name: "n", User: "u", Host: "h"},
		},
		{
			name:    "runs of spaces between params",
			line:    "MODE  #chan   +o  nick",
			command: "MODE",
			params:  []string{"#chan", "+o", "nick"},
		},
		{
			name:    "crlf stripped",
			line:    "PONG :token\r\n",
			command: "PONG",
			params:  []string{"token"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine failed: %v", err)
			}
			if msg.Command != tt.command {
				t.Errorf("Expected command %q, got %q", tt.command, msg.Command)
			}
			if !reflect.DeepEqual(msg.Params, tt.params) {
				t.Errorf("Expected params %v, got %v", tt.params, msg.Params)
			}
			if msg.Prefix != tt.prefix {
				t.Errorf("Expected prefix %+v, got %+v", tt.prefix, msg.Prefix)
			}
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"empty", "", ErrEmpty},
		{"crlf only", "\r\n", ErrEmpty},
		{"prefix only", ":nick!u@h", ErrMalformed},
		{"spaces only", "   ", ErrMalformed},
		{"tags without command", "@a=b ", ErrMalformed},
		{"over line limit", "PRIVMSG #chan :" + strings.Repeat("x", 510), ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("Expected *ParseError, got %T", err)
			}
		})
	}
}

func TestParseLineTags(t *testing.T) {
	msg, err := ParseLine("@time=2024-01-01T00:00:00.000Z;msgid=abc;+draft/x :n!u@h PRIVMSG #c :hi")
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if got := msg.Tags["time"]; got != "2024-01-01T00:00:00.000Z" {
		t.Errorf("Expected time tag, got %q", got)
	}
	if got := msg.Tags["msgid"]; got != "abc" {
		t.Errorf("Expected msgid abc, got %q", got)
	}
	if v, ok := msg.Tags["+draft/x"]; !ok || v != "" {
		t.Errorf("Expected valueless tag present with empty value, got %q ok=%v", v, ok)
	}
	if msg.Command != "PRIVMSG" {
		t.Errorf("Expected PRIVMSG after tags, got %q", msg.Command)
	}
}

func TestTagValueEscaping(t *testing.T) {
	tests := []struct {
		escaped   string
		unescaped string
	}{
		{`a\:b`, "a;b"},
		{`a\sb`, "a b"},
		{`a\\b`, `a\b`},
		{`a\rb`, "a\rb"},
		{`a\nb`, "a\nb"},
		{`a\db`, `a\db`}, // unknown escape keeps the backslash
		{`ab\`, `ab\`},   // lone trailing backslash kept
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := unescapeTagValue(tt.escaped); got != tt.unescaped {
			t.Errorf("unescape(%q): expected %q, got %q", tt.escaped, tt.unescaped, got)
		}
	}

	// Escaping is the strict inverse for the defined set.
	for _, v := range []string{"a;b", "a b", `a\b`, "a\rb", "a\nb", "plain"} {
		if got := unescapeTagValue(escapeTagValue(v)); got != v {
			t.Errorf("unescape(escape(%q)): got %q", v, got)
		}
	}
}

func TestTagBudgetSeparateFromLine(t *testing.T) {
	// A large tag block must not count against the 512-byte line budget
	// once message-tags has been negotiated.
	big := "@data=" + strings.Repeat("x", 4000) + " PRIVMSG #c :hi"
	msg, err := ParseLineLimits(big, Limits{Line: MaxLineLen, Tags: MaxTagsLen})
	if err != nil {
		t.Fatalf("ParseLineLimits failed: %v", err)
	}
	if len(msg.Tags["data"]) != 4000 {
		t.Errorf("Expected 4000-byte tag value, got %d", len(msg.Tags["data"]))
	}

	// Without the negotiated budget the same line is over limit.
	if _, err := ParseLineLimits(big, Limits{Line: MaxLineLen}); !errors.Is(err, ErrTooLong) {
		t.Errorf("Expected ErrTooLong without tag budget, got %v", err)
	}

	// And the tag budget itself is enforced.
	huge := "@data=" + strings.Repeat("x", MaxTagsLen) + " PING :t"
	if _, err := ParseLineLimits(huge, DefaultLimits); !errors.Is(err, ErrTooLong) {
		t.Errorf("Expected ErrTooLong for oversize tags, got %v", err)
	}
}

func TestLineRoundTrip(t *testing.T) {
	lines := []string{
		":nick!user@host PRIVMSG #chan :hello world",
		":irc.example.org 001 me :Welcome",
		"PING :token",
		"JOIN #a,#b key",
		":n!u@h TOPIC #chan :",
		"@msgid=abc :n!u@h PRIVMSG #c :hi",
	}

	for _, line := range lines {
		msg, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q) failed: %v", line, err)
		}
		out, err := msg.Line()
		if err != nil {
			t.Fatalf("Line() for %q failed: %v", line, err)
		}
		back, err := ParseLine(out)
		if err != nil {
			t.Fatalf("re-parse of %q failed: %v", out, err)
		}
		if back.Command != msg.Command || !reflect.DeepEqual(back.Params, msg.Params) ||
			back.Prefix != msg.Prefix || !reflect.DeepEqual(back.Tags, msg.Tags) {
			t.Errorf("Round trip of %q changed the message: got %q", line, out)
		}
	}
}

func TestLineTrailingRules(t *testing.T) {
	tests := []struct {
		name   string
		msg    *Message
		want   string
		broken bool
	}{
		{
			name: "space in trailing gets colon",
			msg:  New("PRIVMSG", "#c", "hello world"),
			want: "PRIVMSG #c :hello world",
		},
		{
			name: "empty trailing gets colon",
			msg:  New("TOPIC", "#c", ""),
			want: "TOPIC #c :",
		},
		{
			name: "colon-leading trailing gets colon",
			msg:  New("PRIVMSG", "#c", ":)"),
			want: "PRIVMSG #c ::)",
		},
		{
			name: "plain params unquoted",
			msg:  New("MODE", "#c", "+o", "nick"),
			want: "MODE #c +o nick",
		},
		{
			name:   "space in middle param rejected",
			msg:    New("PRIVMSG", "#c d", "hi"),
			broken: true,
		},
		{
			name:   "empty middle param rejected",
			msg:    New("MODE", "", "+o"),
			broken: true,
		},
		{
			name:   "newline in trailing rejected",
			msg:    New("PRIVMSG", "#c", "a\nb"),
			broken: true,
		},
		{
			name:   "empty command rejected",
			msg:    &Message{Params: []string{"x"}},
			broken: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.msg.Line()
			if tt.broken {
				if err == nil {
					t.Fatalf("Expected error, got %q", out)
				}
				var ee *EncodeError
				if !errors.As(err, &ee) {
					t.Errorf("Expected *EncodeError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Line failed: %v", err)
			}
			if out != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, out)
			}
		})
	}
}

func TestLineTooLong(t *testing.T) {
	msg := New("PRIVMSG", "#chan", strings.Repeat("x", 600))
	if _, err := msg.Line(); !errors.Is(err, ErrTooLong) {
		t.Errorf("Expected ErrTooLong, got %v", err)
	}
}

func TestBytesAppendsCRLF(t *testing.T) {
	b, err := New("PING", "token").Bytes(DefaultLimits)
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if got := string(b); got != "PING token\r\n" {
		t.Errorf("Expected terminated line, got %q", got)
	}
}

func TestPrefixParsing(t *testing.T) {
	tests := []struct {
		raw    string
		want   Prefix
		server bool
	}{
		{"nick!user@host", Prefix{Name: "nick", User: "user", Host: "host"}, false},
		{"nick@host", Prefix{Name: "nick", Host: "host"}, false},
		{"irc.example.org", Prefix{Name: "irc.example.org"}, true},
		{"nick", Prefix{Name: "nick"}, false},
	}

	for _, tt := range tests {
		got := ParsePrefix(tt.raw)
		if got != tt.want {
			t.Errorf("ParsePrefix(%q): expected %+v, got %+v", tt.raw, tt.want, got)
		}
		if got.IsServer() != tt.server {
			t.Errorf("IsServer(%q): expected %v", tt.raw, tt.server)
		}
		if got.String() != tt.raw {
			t.Errorf("String round trip of %q: got %q", tt.raw, got.String())
		}
	}
}

// TestParseAgainstIrcmsg cross-checks the decoder against the ergochat
// parser on common line shapes.
func TestParseAgainstIrcmsg(t *testing.T) {
	lines := []string{
		":nick!user@host PRIVMSG #chan :hello world",
		":irc.example.org 005 me CASEMAPPING=rfc1459 :are supported",
		"@time=2024-01-01T00:00:00.000Z :n!u@h PRIVMSG #c :hi",
		"PING :token",
		":n!u@h KICK #chan victim :bye",
	}

	for _, line := range lines {
		ours, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q) failed: %v", line, err)
		}
		ref, err := ircmsg.ParseLine(line)
		if err != nil {
			t.Fatalf("ircmsg.ParseLine(%q) failed: %v", line, err)
		}
		if ours.Command != ref.Command {
			t.Errorf("%q: command %q vs reference %q", line, ours.Command, ref.Command)
		}
		if !reflect.DeepEqual(ours.Params, ref.Params) {
			t.Errorf("%q: params %v vs reference %v", line, ours.Params, ref.Params)
		}
		if ours.Prefix.String() != ref.Source {
			t.Errorf("%q: prefix %q vs reference %q", line, ours.Prefix.String(), ref.Source)
		}
	}
}
