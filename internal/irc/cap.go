package irc

import (
	"sort"
	"strings"

	"github.com/whisprer/hexchat/internal/proto"
)

// Capability negotiation: the engine asks the server for CAP LS 302 at the
// start of registration, requests the intersection of the capabilities it
// wants and the server advertises, and closes the window with CAP END once
// nothing (SASL included) is outstanding.

// wantCaps returns the capabilities worth requesting for this profile.
func (c *Client) wantCaps() map[string]struct{} {
	want := map[string]struct{}{
		"server-time":  {},
		"message-tags": {},
	}
	if c.profile.SASL.Mechanism != "" {
		want["sasl"] = struct{}{}
	}
	return want
}

func (c *Client) handleCAP(msg *proto.Message) ([]Event, error) {
	if len(msg.Params) < 2 {
		return nil, nil
	}
	sub := strings.ToUpper(msg.Params[1])
	switch sub {
	case "LS", "NEW":
		return c.handleCAPAdvertised(msg, sub == "NEW")
	case "ACK":
		return c.handleCAPAck(msg)
	case "NAK":
		c.capEnd()
		return nil, nil
	case "DEL":
		for _, name := range strings.Fields(msg.Trailing()) {
			delete(c.availableCaps, name)
			delete(c.enabledCaps, name)
			if name == "message-tags" {
				c.limits.Tags = 0
			}
		}
		return nil, nil
	default:
		return nil, nil
	}
}

// handleCAPAdvertised accumulates LS pages (a "*" parameter marks a
// continuation) and issues the single CAP REQ once the listing completes.
// CAP NEW after registration re-runs the request for newly offered caps.
func (c *Client) handleCAPAdvertised(msg *proto.Message, isNew bool) ([]Event, error) {
	names := make([]string, 0, 8)
	for _, tok := range strings.Fields(msg.Trailing()) {
		name, value, _ := strings.Cut(tok, "=")
		c.availableCaps[name] = value
		names = append(names, name)
	}

	want := c.wantCaps()
	if isNew {
		var req []string
		for _, name := range names {
			if _, ok := want[name]; ok {
				req = append(req, name)
			}
		}
		if len(req) > 0 {
			return nil, c.send(proto.New(proto.CmdCap, "REQ", strings.Join(req, " ")))
		}
		return nil, nil
	}

	// Continuation pages carry "*" before the capability list.
	if len(msg.Params) > 2 && msg.Params[2] == "*" {
		return nil, nil
	}
	if c.capReqSent {
		return nil, nil
	}
	var req []string
	for name := range want {
		if _, ok := c.availableCaps[name]; ok {
			req = append(req, name)
		}
	}
	if len(req) == 0 {
		c.capEnd()
		return nil, nil
	}
	c.capReqSent = true
	return nil, c.send(proto.New(proto.CmdCap, "REQ", strings.Join(sortedCaps(req), " ")))
}

func (c *Client) handleCAPAck(msg *proto.Message) ([]Event, error) {
	sawSASL := false
	for _, name := range strings.Fields(msg.Trailing()) {
		if disabled := strings.HasPrefix(name, "-"); disabled {
			name = name[1:]
			delete(c.enabledCaps, name)
			if name == "message-tags" {
				c.limits.Tags = 0
			}
			continue
		}
		c.enabledCaps[name] = struct{}{}
		switch name {
		case "message-tags":
			c.limits.Tags = proto.MaxTagsLen
		case "sasl":
			sawSASL = true
		}
	}

	if sawSASL && !c.registered && c.profile.SASL.Mechanism != "" {
		sc, err := newSASLClient(c.profile.SASL)
		if err != nil {
			ev := Event{Kind: EventError, Severity: SeverityError, Err: err}
			return []Event{ev}, err
		}
		c.sasl = sc
		return nil, c.send(proto.New(proto.CmdAuthenticate, sc.Mechanism()))
	}
	if c.sasl == nil {
		c.capEnd()
	}
	return nil, nil
}

// Caps returns the set of capabilities the server acknowledged. Owned by
// the Run goroutine, like the store.
func (c *Client) Caps() map[string]struct{} { return c.enabledCaps }

// capEnd closes the negotiation window exactly once, and only before
// registration completes.
func (c *Client) capEnd() {
	if c.capEndSent || c.registered {
		return
	}
	c.capEndSent = true
	c.send(proto.New(proto.CmdCap, "END"))
}

// Deterministic REQ order keeps the handshake reproducible.
func sortedCaps(caps []string) []string {
	sort.Strings(caps)
	return caps
}
