package dcc

import (
	"errors"
	"net/netip"
	"testing"
)

func TestParseSend(t *testing.T) {
	offer, err := ParseOffer("DCC", "SEND file.txt 3232235521 1234 5000")
	if err != nil {
		t.Fatalf("ParseOffer failed: %v", err)
	}
	if offer.Kind != Send {
		t.Errorf("Expected Send, got %v", offer.Kind)
	}
	if offer.Filename != "file.txt" {
		t.Errorf("Expected file.txt, got %q", offer.Filename)
	}
	if want := netip.MustParseAddr("192.168.0.1"); offer.Addr != want {
		t.Errorf("Expected %v, got %v", want, offer.Addr)
	}
	if offer.Port != 1234 {
		t.Errorf("Expected port 1234, got %d", offer.Port)
	}
	if offer.Size != 5000 {
		t.Errorf("Expected size 5000, got %d", offer.Size)
	}
	if offer.Token == "" {
		t.Error("Expected a correlation token")
	}
}

func TestParseSendVariants(t *testing.T) {
	// Size is optional.
	offer, err := ParseOffer("DCC", "SEND file.txt 3232235521 1234")
	if err != nil {
		t.Fatalf("ParseOffer failed: %v", err)
	}
	if offer.Size != 0 {
		t.Errorf("Expected size 0 when not advertised, got %d", offer.Size)
	}

	// Quoted filename with spaces.
	offer, err = ParseOffer("DCC", `SEND "my file.txt" 3232235521 1234 99`)
	if err != nil {
		t.Fatalf("ParseOffer failed: %v", err)
	}
	if offer.Filename != "my file.txt" {
		t.Errorf("Expected quoted filename kept whole, got %q", offer.Filename)
	}

	// Dotted-quad addresses are accepted too.
	offer, err = ParseOffer("DCC", "SEND f.txt 10.0.0.7 5555")
	if err != nil {
		t.Fatalf("ParseOffer failed: %v", err)
	}
	if want := netip.MustParseAddr("10.0.0.7"); offer.Addr != want {
		t.Errorf("Expected %v, got %v", want, offer.Addr)
	}

	// IPv6 textual form.
	offer, err = ParseOffer("DCC", "SEND f.txt 2001:db8::1 5555")
	if err != nil {
		t.Fatalf("ParseOffer failed: %v", err)
	}
	if want := netip.MustParseAddr("2001:db8::1"); offer.Addr != want {
		t.Errorf("Expected %v, got %v", want, offer.Addr)
	}
}

func TestParseChat(t *testing.T) {
	offer, err := ParseOffer("DCC", "CHAT chat 3232235521 7777")
	if err != nil {
		t.Fatalf("ParseOffer failed: %v", err)
	}
	if offer.Kind != Chat {
		t.Errorf("Expected Chat, got %v", offer.Kind)
	}
	if offer.Port != 7777 {
		t.Errorf("Expected port 7777, got %d", offer.Port)
	}
}

func TestParseResume(t *testing.T) {
	offer, err := ParseOffer("DCC", "RESUME file.txt 1234 2048")
	if err != nil {
		t.Fatalf("ParseOffer failed: %v", err)
	}
	if offer.Kind != Resume {
		t.Errorf("Expected Resume, got %v", offer.Kind)
	}
	if offer.Position != 2048 {
		t.Errorf("Expected position 2048, got %d", offer.Position)
	}
}

func TestParseNonDCCVerb(t *testing.T) {
	offer, err := ParseOffer("ACTION", "waves")
	if offer != nil || err != nil {
		t.Errorf("Expected (nil, nil) for non-DCC verb, got %v %v", offer, err)
	}
}

func TestParseMalformed(t *testing.T) {
	payloads := []string{
		"",
		"BOGUS file.txt 1 2",
		"SEND",
		"SEND file.txt",
		"SEND file.txt 3232235521",
		"SEND file.txt notanip 1234",
		"SEND file.txt 3232235521 99999",
		"SEND file.txt 3232235521 1234 notasize",
		`SEND "unterminated 3232235521 1234`,
		"CHAT chat 3232235521",
		"RESUME file.txt 1234 notapos",
	}

	for _, p := range payloads {
		offer, err := ParseOffer("DCC", p)
		if err == nil {
			t.Errorf("ParseOffer(%q): expected error, got %+v", p, offer)
			continue
		}
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseOffer(%q): expected ErrMalformed, got %v", p, err)
		}
		var de *Error
		if !errors.As(err, &de) {
			t.Errorf("ParseOffer(%q): expected *Error, got %T", p, err)
		}
	}
}

func TestBuildOfferRoundTrip(t *testing.T) {
	offers := []*Offer{
		{Kind: Send, Filename: "file.txt", Addr: netip.MustParseAddr("192.168.0.1"), Port: 1234, Size: 5000},
		{Kind: Send, Filename: "my file.txt", Addr: netip.MustParseAddr("10.0.0.7"), Port: 9},
		{Kind: Send, Filename: "f", Addr: netip.MustParseAddr("2001:db8::1"), Port: 443, Size: 1},
		{Kind: Chat, Addr: netip.MustParseAddr("192.168.0.1"), Port: 7777},
		{Kind: Resume, Filename: "file.txt", Port: 1234, Position: 2048},
	}

	for _, o := range offers {
		arg := BuildOffer(o)
		verb, rest, _ := cutVerb(arg)
		if verb != "DCC" {
			t.Fatalf("BuildOffer(%+v): expected DCC prefix, got %q", o, arg)
		}
		back, err := ParseOffer(verb, rest)
		if err != nil {
			t.Fatalf("re-parse of %q failed: %v", arg, err)
		}
		if back.Kind != o.Kind || back.Filename != o.Filename || back.Addr != o.Addr ||
			back.Port != o.Port || back.Size != o.Size || back.Position != o.Position {
			t.Errorf("Round trip of %+v via %q gave %+v", o, arg, back)
		}
	}
}

func TestBuildOfferWireForms(t *testing.T) {
	o := &Offer{Kind: Send, Filename: "file.txt", Addr: netip.MustParseAddr("192.168.0.1"), Port: 1234, Size: 5000}
	if got := BuildOffer(o); got != "DCC SEND file.txt 3232235521 1234 5000" {
		t.Errorf("Expected legacy integer address form, got %q", got)
	}
	o = &Offer{Kind: Send, Filename: "my file.txt", Addr: netip.MustParseAddr("10.0.0.7"), Port: 9}
	if got := BuildOffer(o); got != `DCC SEND "my file.txt" 167772167 9` {
		t.Errorf("Expected quoted filename, got %q", got)
	}
}

func cutVerb(s string) (verb, rest string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
