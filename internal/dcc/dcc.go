// Package dcc parses and builds Direct Client-to-Client offer descriptors
// carried inside CTCP payloads. The engine only negotiates offers; the
// transfer itself is performed by an external collaborator, which also owns
// accept/decline/timeout policy.
package dcc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Kind is the transfer kind of an offer.
type Kind int

const (
	Send Kind = iota
	Chat
	Resume
)

func (k Kind) String() string {
	switch k {
	case Chat:
		return "CHAT"
	case Resume:
		return "RESUME"
	default:
		return "SEND"
	}
}

// ErrMalformed reports an offer with an unparseable shape, address or port.
// Malformed offers surface as non-fatal notifications, never as connection
// errors.
var ErrMalformed = errors.New("malformed DCC offer")

// Error carries the raw payload alongside the cause.
type Error struct {
	Arg    string
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("dcc %q: %s", e.Arg, e.Reason) }

func (e *Error) Unwrap() error { return ErrMalformed }

// Offer is a parsed transfer offer. Token correlates the offer across the
// notification surface and whatever collaborator executes the transfer.
type Offer struct {
	Kind     Kind
	Filename string
	Addr     netip.Addr
	Port     uint16
	// Size is the advertised byte size; 0 means not advertised.
	Size uint64
	// Position is the resume offset for Resume offers.
	Position uint64
	Token    string
}

// ParseOffer decodes a CTCP DCC payload. The verb must be DCC; any other
// verb returns (nil, nil) so callers can fall through to plain CTCP
// handling.
func ParseOffer(ctcpVerb, ctcpArg string) (*Offer, error) {
	if !strings.EqualFold(ctcpVerb, "DCC") {
		return nil, nil
	}
	kindTok, rest := splitToken(ctcpArg)
	offer := &Offer{Token: uuid.NewString()}
	switch strings.ToUpper(kindTok) {
	case "SEND":
		offer.Kind = Send
		return parseSend(offer, ctcpArg, rest)
	case "CHAT":
		offer.Kind = Chat
		return parseChat(offer, ctcpArg, rest)
	case "RESUME":
		offer.Kind = Resume
		return parseResume(offer, ctcpArg, rest)
	default:
		return nil, &Error{Arg: ctcpArg, Reason: "unknown kind"}
	}
}

// DCC SEND <filename> <ip> <port> [size]
func parseSend(o *Offer, arg, rest string) (*Offer, error) {
	name, rest, ok := splitFilename(rest)
	if !ok {
		return nil, &Error{Arg: arg, Reason: "missing filename"}
	}
	o.Filename = name
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil, &Error{Arg: arg, Reason: "missing address or port"}
	}
	addr, err := parseAddr(fields[0])
	if err != nil {
		return nil, &Error{Arg: arg, Reason: "bad address"}
	}
	port, err := parsePort(fields[1])
	if err != nil {
		return nil, &Error{Arg: arg, Reason: "bad port"}
	}
	o.Addr, o.Port = addr, port
	if len(fields) > 2 {
		size, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, &Error{Arg: arg, Reason: "bad size"}
		}
		o.Size = size
	}
	return o, nil
}

// DCC CHAT chat <ip> <port>
func parseChat(o *Offer, arg, rest string) (*Offer, error) {
	fields := strings.Fields(rest)
	if len(fields) > 0 && strings.EqualFold(fields[0], "chat") {
		fields = fields[1:]
	}
	if len(fields) < 2 {
		return nil, &Error{Arg: arg, Reason: "missing address or port"}
	}
	addr, err := parseAddr(fields[0])
	if err != nil {
		return nil, &Error{Arg: arg, Reason: "bad address"}
	}
	port, err := parsePort(fields[1])
	if err != nil {
		return nil, &Error{Arg: arg, Reason: "bad port"}
	}
	o.Addr, o.Port = addr, port
	return o, nil
}

// DCC RESUME <filename> <port> <position>
func parseResume(o *Offer, arg, rest string) (*Offer, error) {
	name, rest, ok := splitFilename(rest)
	if !ok {
		return nil, &Error{Arg: arg, Reason: "missing filename"}
	}
	o.Filename = name
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil, &Error{Arg: arg, Reason: "missing port or position"}
	}
	port, err := parsePort(fields[0])
	if err != nil {
		return nil, &Error{Arg: arg, Reason: "bad port"}
	}
	pos, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, &Error{Arg: arg, Reason: "bad position"}
	}
	o.Port, o.Position = port, pos
	return o, nil
}

// BuildOffer renders an offer back into a CTCP DCC argument string, the
// inverse of ParseOffer. Filenames containing spaces are quoted; IPv4
// addresses use the legacy 32-bit integer form.
func BuildOffer(o *Offer) string {
	var b strings.Builder
	b.WriteString("DCC ")
	b.WriteString(o.Kind.String())
	switch o.Kind {
	case Chat:
		b.WriteString(" chat ")
		b.WriteString(formatAddr(o.Addr))
		fmt.Fprintf(&b, " %d", o.Port)
	case Resume:
		b.WriteByte(' ')
		b.WriteString(quoteFilename(o.Filename))
		fmt.Fprintf(&b, " %d %d", o.Port, o.Position)
	default:
		b.WriteByte(' ')
		b.WriteString(quoteFilename(o.Filename))
		b.WriteByte(' ')
		b.WriteString(formatAddr(o.Addr))
		fmt.Fprintf(&b, " %d", o.Port)
		if o.Size > 0 {
			fmt.Fprintf(&b, " %d", o.Size)
		}
	}
	return b.String()
}

// parseAddr accepts the legacy unsigned 32-bit integer form or a textual
// address; both normalize to the same representation.
func parseAddr(tok string) (netip.Addr, error) {
	if n, err := strconv.ParseUint(tok, 10, 32); err == nil {
		var quad [4]byte
		binary.BigEndian.PutUint32(quad[:], uint32(n))
		return netip.AddrFrom4(quad), nil
	}
	addr, err := netip.ParseAddr(tok)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr, nil
}

func formatAddr(addr netip.Addr) string {
	if addr.Is4() {
		quad := addr.As4()
		return strconv.FormatUint(uint64(binary.BigEndian.Uint32(quad[:])), 10)
	}
	return addr.String()
}

func parsePort(tok string) (uint16, error) {
	n, err := strconv.ParseUint(tok, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// splitFilename consumes a filename token, honoring double quotes around
// names that contain spaces.
func splitFilename(s string) (name, rest string, ok bool) {
	s = strings.TrimLeft(s, " ")
	if s == "" {
		return "", "", false
	}
	if s[0] == '"' {
		i := strings.Index(s[1:], `"`)
		if i < 0 {
			return "", "", false
		}
		return s[1 : 1+i], s[i+2:], true
	}
	name, rest = splitToken(s)
	return name, rest, name != ""
}

func quoteFilename(name string) string {
	if strings.Contains(name, " ") {
		return `"` + name + `"`
	}
	return name
}

func splitToken(s string) (tok, rest string) {
	s = strings.TrimLeft(s, " ")
	if i := strings.Index(s, " "); i > -1 {
		return s[:i], s[i+1:]
	}
	return s, ""
}
