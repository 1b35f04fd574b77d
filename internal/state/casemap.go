package state

// Casemapping is the character folding rule a server advertises through
// ISUPPORT. Nick and channel-name equality is always evaluated through the
// active mapping, never by raw byte comparison.
type Casemapping int

const (
	// CasemapRFC1459 folds A-Z onto a-z and {}|~ onto []\^ as RFC 1459
	// defines. It is the default when the server advertises nothing.
	CasemapRFC1459 Casemapping = iota
	// CasemapRFC1459Strict folds {}| but not ~.
	CasemapRFC1459Strict
	// CasemapASCII folds A-Z only.
	CasemapASCII
)

// ParseCasemapping maps an ISUPPORT CASEMAPPING token onto a Casemapping.
// Unknown tokens fall back to rfc1459.
func ParseCasemapping(token string) Casemapping {
	switch token {
	case "ascii":
		return CasemapASCII
	case "strict-rfc1459", "rfc1459-strict":
		return CasemapRFC1459Strict
	default:
		return CasemapRFC1459
	}
}

func (cm Casemapping) String() string {
	switch cm {
	case CasemapASCII:
		return "ascii"
	case CasemapRFC1459Strict:
		return "rfc1459-strict"
	default:
		return "rfc1459"
	}
}

// Fold normalizes a nick or channel name for lookup under the mapping.
func (cm Casemapping) Fold(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		case cm == CasemapASCII:
			// ASCII folds letters only.
		case c == '{':
			b[i] = '['
		case c == '}':
			b[i] = ']'
		case c == '|':
			b[i] = '\\'
		case c == '~' && cm == CasemapRFC1459:
			b[i] = '^'
		}
	}
	return string(b)
}

// Eq reports whether two names are equal under the mapping.
func (cm Casemapping) Eq(a, b string) bool {
	return cm.Fold(a) == cm.Fold(b)
}
