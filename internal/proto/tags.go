package proto

import (
	"sort"
	"strings"
)

// Tag value escaping per the IRCv3 message-tags specification. Decoding is
// lenient: an escape sequence outside the defined set keeps its backslash
// literally, and a malformed tag never fails the whole line.

func parseTags(data string) map[string]string {
	tags := make(map[string]string)
	for _, kv := range strings.Split(data, ";") {
		if kv == "" {
			continue
		}
		key, val, found := strings.Cut(kv, "=")
		if key == "" {
			continue
		}
		if !found {
			tags[key] = ""
			continue
		}
		tags[key] = unescapeTagValue(val)
	}
	return tags
}

func unescapeTagValue(v string) string {
	if !strings.Contains(v, "\\") {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] != '\\' || i == len(v)-1 {
			b.WriteByte(v[i])
			continue
		}
		i++
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte('\\')
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

func escapeTagValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case ';':
			b.WriteString("\\:")
		case ' ':
			b.WriteString("\\s")
		case '\\':
			b.WriteString("\\\\")
		case '\r':
			b.WriteString("\\r")
		case '\n':
			b.WriteString("\\n")
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

func encodeTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	// Deterministic output keeps encode(decode(x)) stable.
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		if v := tags[k]; v != "" {
			b.WriteByte('=')
			b.WriteString(escapeTagValue(v))
		}
	}
	return b.String()
}
