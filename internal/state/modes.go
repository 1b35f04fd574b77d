package state

import "strings"

// ModeChange is one atom of a MODE line: +o nick, -t, +l 50, ...
type ModeChange struct {
	On   bool
	Mode byte
	Arg  string
}

// ParseModeChanges splits a mode string and its arguments into individual
// changes. Arguments are consumed in order by the modes that take one,
// according to argModes; status modes from the prefix table always take a
// nick argument.
func ParseModeChanges(params []string, prefixes PrefixTable) []ModeChange {
	if len(params) == 0 {
		return nil
	}
	modes, args := params[0], params[1:]
	var out []ModeChange
	on := true
	for i := 0; i < len(modes); i++ {
		switch modes[i] {
		case '+':
			on = true
		case '-':
			on = false
		default:
			ch := ModeChange{On: on, Mode: modes[i]}
			if prefixes.takesArg(modes[i], on) && len(args) > 0 {
				ch.Arg = args[0]
				args = args[1:]
			}
			out = append(out, ch)
		}
	}
	return out
}

// PrefixTable maps membership status sigils (@, +, %, ...) to their mode
// letters, as advertised by ISUPPORT PREFIX=(modes)sigils.
type PrefixTable struct {
	modes  string
	sigils string
}

// DefaultPrefixes covers servers that advertise nothing: ops and voice.
var DefaultPrefixes = PrefixTable{modes: "ov", sigils: "@+"}

// ParsePrefixTable decodes an ISUPPORT PREFIX value like "(qaohv)~&@%+".
// A malformed value falls back to the default table.
func ParsePrefixTable(value string) PrefixTable {
	if !strings.HasPrefix(value, "(") {
		return DefaultPrefixes
	}
	i := strings.Index(value, ")")
	if i < 0 || len(value[1:i]) != len(value[i+1:]) || i == 1 {
		return DefaultPrefixes
	}
	return PrefixTable{modes: value[1:i], sigils: value[i+1:]}
}

// ModeFor returns the mode letter for a status sigil.
func (t PrefixTable) ModeFor(sigil byte) (byte, bool) {
	i := strings.IndexByte(t.sigils, sigil)
	if i < 0 {
		return 0, false
	}
	return t.modes[i], true
}

// IsStatusMode reports whether a mode letter is a membership status mode.
func (t PrefixTable) IsStatusMode(mode byte) bool {
	return strings.IndexByte(t.modes, mode) > -1
}

// channel modes that consume an argument outside the prefix set. Type A and
// B modes always do; type C only when setting.
const (
	argModesAlways  = "beIqk"
	argModesWhenSet = "l"
)

func (t PrefixTable) takesArg(mode byte, on bool) bool {
	if t.IsStatusMode(mode) {
		return true
	}
	if strings.IndexByte(argModesAlways, mode) > -1 {
		return true
	}
	return on && strings.IndexByte(argModesWhenSet, mode) > -1
}
