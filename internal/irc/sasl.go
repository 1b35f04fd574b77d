package irc

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/whisprer/hexchat/internal/config"
	"github.com/whisprer/hexchat/internal/proto"
)

// SASL authentication during registration. Supported mechanisms: PLAIN,
// EXTERNAL and SCRAM-SHA-256. SCRAM verifies the server signature and
// aborts on mismatch rather than trusting the exchange.

// authChunkLen is the maximum AUTHENTICATE payload length per line; longer
// payloads continue on following lines, and a payload that is an exact
// multiple ends with a bare "+".
const authChunkLen = 400

// saslClient is one mechanism's state machine. Step receives the decoded
// server challenge (nil for the initial empty challenge) and returns the
// next client response; a nil response means "send +".
type saslClient interface {
	Mechanism() string
	Step(challenge []byte) ([]byte, error)
}

func newSASLClient(cfg config.SASL) (saslClient, error) {
	switch strings.ToUpper(cfg.Mechanism) {
	case "PLAIN":
		return &saslPlain{cfg: cfg}, nil
	case "EXTERNAL":
		return &saslExternal{cfg: cfg}, nil
	case "SCRAM-SHA-256":
		return newScramSHA256(cfg)
	default:
		return nil, fmt.Errorf("sasl: unsupported mechanism %q", cfg.Mechanism)
	}
}

// handleAuthenticate advances the active mechanism by one exchange.
func (c *Client) handleAuthenticate(msg *proto.Message) ([]Event, error) {
	if c.sasl == nil || len(msg.Params) < 1 {
		return nil, nil
	}
	var challenge []byte
	if arg := msg.Params[0]; arg != "+" {
		decoded, err := base64.StdEncoding.DecodeString(arg)
		if err != nil {
			abortErr := fmt.Errorf("sasl: bad challenge: %w", err)
			c.send(proto.New(proto.CmdAuthenticate, "*"))
			return []Event{{Kind: EventError, Severity: SeverityError, Err: abortErr}}, abortErr
		}
		challenge = decoded
	}
	payload, err := c.sasl.Step(challenge)
	if err != nil {
		c.send(proto.New(proto.CmdAuthenticate, "*"))
		return []Event{{Kind: EventError, Severity: SeverityError, Err: err}}, err
	}
	return nil, c.sendAuthenticate(payload)
}

// sendAuthenticate base64-encodes and chunks one SASL payload.
func (c *Client) sendAuthenticate(payload []byte) error {
	if len(payload) == 0 {
		return c.send(proto.New(proto.CmdAuthenticate, "+"))
	}
	enc := base64.StdEncoding.EncodeToString(payload)
	for len(enc) >= authChunkLen {
		if err := c.send(proto.New(proto.CmdAuthenticate, enc[:authChunkLen])); err != nil {
			return err
		}
		enc = enc[authChunkLen:]
	}
	if enc == "" {
		enc = "+"
	}
	return c.send(proto.New(proto.CmdAuthenticate, enc))
}

type saslPlain struct {
	cfg  config.SASL
	done bool
}

func (s *saslPlain) Mechanism() string { return "PLAIN" }

func (s *saslPlain) Step(challenge []byte) ([]byte, error) {
	if s.done {
		return nil, errors.New("sasl: unexpected PLAIN continuation")
	}
	s.done = true
	return []byte(s.cfg.Authzid + "\x00" + s.cfg.Username + "\x00" + s.cfg.Password), nil
}

type saslExternal struct {
	cfg  config.SASL
	done bool
}

func (s *saslExternal) Mechanism() string { return "EXTERNAL" }

func (s *saslExternal) Step(challenge []byte) ([]byte, error) {
	if s.done {
		return nil, errors.New("sasl: unexpected EXTERNAL continuation")
	}
	s.done = true
	return []byte(s.cfg.Authzid), nil
}

type saslScram struct {
	cfg config.SASL

	step            int
	clientNonce     string
	clientFirstBare string
	serverSignature []byte
}

func newScramSHA256(cfg config.SASL) (*saslScram, error) {
	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("sasl: nonce: %w", err)
	}
	return &saslScram{
		cfg:         cfg,
		clientNonce: base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func (s *saslScram) Mechanism() string { return "SCRAM-SHA-256" }

func (s *saslScram) Step(challenge []byte) ([]byte, error) {
	switch s.step {
	case 0:
		s.step = 1
		s.clientFirstBare = "n=" + saslname(s.cfg.Username) + ",r=" + s.clientNonce
		return []byte("n,," + s.clientFirstBare), nil
	case 1:
		s.step = 2
		return s.clientFinal(string(challenge))
	case 2:
		s.step = 3
		return nil, s.verifyServerFinal(string(challenge))
	default:
		return nil, errors.New("sasl: unexpected SCRAM continuation")
	}
}

// clientFinal consumes the server-first message and produces the
// client-final message, remembering the signature the server must present.
func (s *saslScram) clientFinal(serverFirst string) ([]byte, error) {
	var saltB64, nonce string
	var iters int
	for _, kv := range strings.Split(serverFirst, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch k {
		case "r":
			nonce = v
		case "s":
			saltB64 = v
		case "i":
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("sasl: bad iteration count: %w", err)
			}
			iters = n
		}
	}
	if nonce == "" || saltB64 == "" || iters <= 0 {
		return nil, errors.New("sasl: incomplete SCRAM challenge")
	}
	if !strings.HasPrefix(nonce, s.clientNonce) {
		return nil, errors.New("sasl: server nonce does not extend client nonce")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("sasl: bad salt: %w", err)
	}

	salted := pbkdf2.Key([]byte(s.cfg.Password), salt, iters, sha256.Size, sha256.New)
	clientKey := hmacSum(salted, "Client Key")
	storedKey := sha256.Sum256(clientKey)

	withoutProof := "c=" + base64.StdEncoding.EncodeToString([]byte("n,,")) + ",r=" + nonce
	authMessage := s.clientFirstBare + "," + serverFirst + "," + withoutProof

	clientSig := hmacSum(storedKey[:], authMessage)
	proof := make([]byte, len(clientKey))
	for i := range proof {
		proof[i] = clientKey[i] ^ clientSig[i]
	}

	serverKey := hmacSum(salted, "Server Key")
	s.serverSignature = hmacSum(serverKey, authMessage)

	final := withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof)
	return []byte(final), nil
}

// verifyServerFinal checks the v= server signature in constant time; a
// mismatch aborts the whole connection attempt.
func (s *saslScram) verifyServerFinal(serverFinal string) error {
	for _, kv := range strings.Split(serverFinal, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k != "v" {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("sasl: bad server signature: %w", err)
		}
		if subtle.ConstantTimeCompare(sig, s.serverSignature) != 1 {
			return errors.New("sasl: server signature mismatch")
		}
		return nil
	}
	if strings.HasPrefix(serverFinal, "e=") {
		return fmt.Errorf("sasl: server rejected authentication: %s", serverFinal)
	}
	return errors.New("sasl: server final message carries no signature")
}

func hmacSum(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// saslname escapes the SCRAM reserved characters in a username.
func saslname(s string) string {
	s = strings.ReplaceAll(s, "=", "=3D")
	return strings.ReplaceAll(s, ",", "=2C")
}
