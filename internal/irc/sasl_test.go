package irc

import (
	"strings"
	"testing"

	"github.com/whisprer/hexchat/internal/config"
)

func TestNewSASLClient(t *testing.T) {
	for _, mech := range []string{"PLAIN", "plain", "EXTERNAL", "SCRAM-SHA-256"} {
		sc, err := newSASLClient(config.SASL{Mechanism: mech, Username: "u", Password: "p"})
		if err != nil {
			t.Fatalf("newSASLClient(%s) failed: %v", mech, err)
		}
		if got := sc.Mechanism(); got != strings.ToUpper(mech) {
			t.Errorf("Expected mechanism %s, got %s", strings.ToUpper(mech), got)
		}
	}

	if _, err := newSASLClient(config.SASL{Mechanism: "SCRAM-SHA-1"}); err == nil {
		t.Error("Expected error for unsupported mechanism")
	}
}

func TestSASLPlain(t *testing.T) {
	sc, _ := newSASLClient(config.SASL{Mechanism: "PLAIN", Username: "user", Password: "pencil"})

	payload, err := sc.Step(nil)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if string(payload) != "\x00user\x00pencil" {
		t.Errorf("Unexpected PLAIN payload %q", payload)
	}

	if _, err := sc.Step(nil); err == nil {
		t.Error("Expected error on second PLAIN step")
	}
}

func TestSASLPlainAuthzid(t *testing.T) {
	sc, _ := newSASLClient(config.SASL{Mechanism: "PLAIN", Username: "user", Password: "p", Authzid: "admin"})
	payload, err := sc.Step(nil)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if string(payload) != "admin\x00user\x00p" {
		t.Errorf("Unexpected payload %q", payload)
	}
}

func TestSASLExternal(t *testing.T) {
	sc, _ := newSASLClient(config.SASL{Mechanism: "EXTERNAL"})
	payload, err := sc.Step(nil)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if len(payload) != 0 {
		t.Errorf("Expected empty EXTERNAL payload, got %q", payload)
	}
}

// Exchange from RFC 7677 section 3: user "user", password "pencil", client
// nonce "rOprNGfwEbeRWgbNEkqO".
func TestSASLScramKnownExchange(t *testing.T) {
	sc := &saslScram{
		cfg:         config.SASL{Mechanism: "SCRAM-SHA-256", Username: "user", Password: "pencil"},
		clientNonce: "rOprNGfwEbeRWgbNEkqO",
	}

	first, err := sc.Step(nil)
	if err != nil {
		t.Fatalf("client-first failed: %v", err)
	}
	if string(first) != "n,,n=user,r=rOprNGfwEbeRWgbNEkqO" {
		t.Fatalf("Unexpected client-first %q", first)
	}

	serverFirst := "r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096"
	final, err := sc.Step([]byte(serverFirst))
	if err != nil {
		t.Fatalf("client-final failed: %v", err)
	}
	want := "c=biws,r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,p=dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ="
	if string(final) != want {
		t.Fatalf("Unexpected client-final\n got %q\nwant %q", final, want)
	}

	if _, err := sc.Step([]byte("v=6rriTRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4=")); err != nil {
		t.Fatalf("server signature verification failed: %v", err)
	}
}

func TestSASLScramRejectsBadServer(t *testing.T) {
	serverFirst := "r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096"

	// Tampered server signature.
	sc := &saslScram{
		cfg:         config.SASL{Username: "user", Password: "pencil"},
		clientNonce: "rOprNGfwEbeRWgbNEkqO",
	}
	sc.Step(nil)
	if _, err := sc.Step([]byte(serverFirst)); err != nil {
		t.Fatalf("client-final failed: %v", err)
	}
	if _, err := sc.Step([]byte("v=AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")); err == nil {
		t.Error("Expected mismatched server signature to fail")
	}

	// A nonce that does not extend ours.
	sc = &saslScram{cfg: config.SASL{Username: "user", Password: "pencil"}, clientNonce: "abc"}
	sc.Step(nil)
	if _, err := sc.Step([]byte("r=stolen,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096")); err == nil {
		t.Error("Expected foreign nonce to fail")
	}

	// Incomplete challenge.
	sc = &saslScram{cfg: config.SASL{Username: "user", Password: "pencil"}, clientNonce: "abc"}
	sc.Step(nil)
	if _, err := sc.Step([]byte("r=abcdef")); err == nil {
		t.Error("Expected incomplete challenge to fail")
	}

	// Explicit server error in the final message.
	sc = &saslScram{cfg: config.SASL{Username: "user", Password: "pencil"}, clientNonce: "rOprNGfwEbeRWgbNEkqO"}
	sc.Step(nil)
	sc.Step([]byte(serverFirst))
	if _, err := sc.Step([]byte("e=invalid-proof")); err == nil {
		t.Error("Expected server error message to fail")
	}
}

func TestSaslnameEscaping(t *testing.T) {
	sc := &saslScram{
		cfg:         config.SASL{Username: "we=ird,user"},
		clientNonce: "n",
	}
	first, err := sc.Step(nil)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if string(first) != "n,,n=we=3Dird=2Cuser,r=n" {
		t.Errorf("Unexpected escaped client-first %q", first)
	}
}
