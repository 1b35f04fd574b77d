package irc

import (
	"fmt"
	"strings"

	"github.com/whisprer/hexchat/internal/dcc"
	"github.com/whisprer/hexchat/internal/proto"
	"github.com/whisprer/hexchat/internal/state"
)

// Engine version reported in CTCP VERSION replies. Set at build time via
// ldflags.
var Version = "dev"

// handleLine decodes one raw line and dispatches it. Parse failures drop
// the line with a warning notification; the connection continues.
func (c *Client) handleLine(raw string) error {
	msg, err := proto.ParseLineLimits(raw, c.limits)
	if err != nil {
		c.metrics.ParseError()
		c.notify(Event{Kind: EventError, Severity: SeverityWarning, Err: err})
		return nil
	}
	return c.dispatch(msg)
}

// dispatch applies one message in the fixed order: state mutation first,
// then the DCC detection pass, then observer notification (raw message
// before the semantic events derived from it). A non-nil error is fatal for
// the connection attempt.
func (c *Client) dispatch(msg *proto.Message) error {
	evs, err := c.apply(msg)
	c.notify(Event{Kind: EventRawMessage, Raw: msg})
	for _, ev := range evs {
		ev.Raw = msg
		c.notify(ev)
	}
	return err
}

// apply mutates state for one message and returns the semantic events to
// emit. Unknown commands and numerics mutate nothing; the raw notification
// alone records them.
func (c *Client) apply(msg *proto.Message) ([]Event, error) {
	switch msg.Command {
	case proto.CmdPing:
		return nil, c.send(proto.New(proto.CmdPong, msg.Params...))

	case proto.CmdPong:
		if c.pingPending && msg.Trailing() == c.pingToken {
			c.pingPending = false
			c.pingToken = ""
		}
		return nil, nil

	case proto.CmdCap:
		return c.handleCAP(msg)

	case proto.CmdAuthenticate:
		return c.handleAuthenticate(msg)

	case proto.RplSASLSuccess:
		c.capEnd()
		return nil, nil

	case proto.ErrSASLFail, proto.ErrSASLTooLong, proto.ErrSASLAborted, proto.ErrSASLAlready, proto.ErrNickLocked:
		// The original behavior: a failed SASL exchange fails the attempt
		// rather than silently continuing unauthenticated.
		err := fmt.Errorf("sasl: authentication failed (%s %s)", msg.Command, msg.Trailing())
		return []Event{{Kind: EventError, Severity: SeverityError, Err: err}}, err

	case proto.RplWelcome:
		return c.handleWelcome(msg), nil

	case proto.RplISupport:
		c.handleISupport(msg)
		return nil, nil

	case proto.ErrErroneusNickname, proto.ErrNicknameInUse, proto.ErrNickCollision, proto.ErrUnavailResource:
		return c.handleNickError(msg), nil

	case proto.RplNameReply:
		// <me> <symbol> <channel> :<prefixed nicks>
		if len(msg.Params) >= 4 {
			c.store.SyncNames(msg.Params[2], strings.Fields(msg.Params[3]), c.prefixes)
		}
		return nil, nil

	case proto.RplTopic:
		if len(msg.Params) >= 3 {
			c.store.SetTopic(msg.Params[1], msg.Params[2], "")
			return []Event{{Kind: EventTopicChanged, Target: msg.Params[1], Text: msg.Params[2]}}, nil
		}
		return nil, nil

	case proto.RplNoTopic:
		if len(msg.Params) >= 2 {
			c.store.SetTopic(msg.Params[1], "", "")
		}
		return nil, nil

	case proto.RplTopicWhoTime:
		if len(msg.Params) >= 3 {
			if ch := c.store.Channel(msg.Params[1]); ch != nil {
				ch.TopicBy = proto.ParsePrefix(msg.Params[2]).Name
			}
		}
		return nil, nil

	case proto.CmdJoin:
		return c.handleJoin(msg), nil

	case proto.CmdPart:
		return c.handlePart(msg), nil

	case proto.CmdKick:
		return c.handleKick(msg), nil

	case proto.CmdQuit:
		return c.handleQuit(msg), nil

	case proto.CmdNick:
		return c.handleNick(msg), nil

	case proto.CmdTopic:
		if len(msg.Params) < 1 {
			return nil, nil
		}
		topic := ""
		if len(msg.Params) > 1 {
			topic = msg.Trailing()
		}
		c.store.SetTopic(msg.Params[0], topic, msg.Nick())
		return []Event{{
			Kind:   EventTopicChanged,
			Nick:   msg.Nick(),
			Target: msg.Params[0],
			Text:   topic,
			Self:   c.isSelf(msg.Nick()),
		}}, nil

	case proto.CmdMode:
		return c.handleMode(msg), nil

	case proto.CmdAway:
		away := msg.Trailing() != "" && len(msg.Params) > 0
		c.store.SetAway(msg.Nick(), away)
		return []Event{{Kind: EventAway, Nick: msg.Nick(), Text: msg.Trailing()}}, nil

	case proto.CmdPrivmsg, proto.CmdNotice:
		return c.handleChat(msg)

	case proto.CmdError:
		err := fmt.Errorf("server error: %s", msg.Trailing())
		return []Event{{Kind: EventError, Severity: SeverityError, Err: err}}, err

	default:
		return nil, nil
	}
}

// handleWelcome completes registration: the server has accepted us and
// confirmed our nick.
func (c *Client) handleWelcome(msg *proto.Message) []Event {
	if len(msg.Params) > 0 {
		c.setNick(msg.Params[0])
	}
	c.registered = true
	c.capEndSent = true // past the window where CAP END means anything
	c.setState(StateConnected)
	for _, ch := range c.profile.AutoJoin {
		c.send(proto.New(proto.CmdJoin, ch))
	}
	return []Event{{Kind: EventWelcome, Nick: c.CurrentNick(), Text: msg.Trailing()}}
}

// handleISupport tracks the ISUPPORT tokens the engine acts on:
// CASEMAPPING, PREFIX and CHANTYPES.
func (c *Client) handleISupport(msg *proto.Message) {
	if len(msg.Params) < 2 {
		return
	}
	// First param is our nick, last is "are supported by this server".
	for _, tok := range msg.Params[1 : len(msg.Params)-1] {
		key, value, _ := strings.Cut(tok, "=")
		switch key {
		case "CASEMAPPING":
			c.store.SetCasemapping(state.ParseCasemapping(value))
		case "PREFIX":
			c.prefixes = state.ParsePrefixTable(value)
		case "CHANTYPES":
			if value != "" {
				c.chantypes = value
			}
		}
	}
}

// handleNickError applies the fallback-nick strategy while registering:
// configured alternates in order, then the last candidate with the suffix
// appended repeatedly. Deterministic, so reconnects behave identically.
func (c *Client) handleNickError(msg *proto.Message) []Event {
	if c.registered {
		return []Event{{
			Kind:     EventError,
			Severity: SeverityWarning,
			Err:      fmt.Errorf("nick rejected (%s): %s", msg.Command, msg.Trailing()),
		}}
	}
	c.nickTried++
	candidates := append([]string{c.profile.Nick}, c.profile.Alternates...)
	var next string
	if c.nickTried < len(candidates) {
		next = candidates[c.nickTried]
	} else {
		overflow := c.nickTried - len(candidates) + 1
		next = candidates[len(candidates)-1] + strings.Repeat(c.profile.NickSuffix, overflow)
	}
	c.setNick(next)
	c.log.Printf("[%s] nick in use, trying %s", c.profile.Network, next)
	c.send(proto.New(proto.CmdNick, next))
	return nil
}

func (c *Client) handleJoin(msg *proto.Message) []Event {
	if len(msg.Params) < 1 {
		return nil
	}
	channel := msg.Params[len(msg.Params)-1]
	who := msg.Nick()
	c.store.Join(channel, who, msg.Prefix.User, msg.Prefix.Host)
	return []Event{{Kind: EventJoined, Nick: who, Target: channel, Self: c.isSelf(who)}}
}

func (c *Client) handlePart(msg *proto.Message) []Event {
	if len(msg.Params) < 1 {
		return nil
	}
	channel := msg.Params[0]
	who := msg.Nick()
	self := c.isSelf(who)
	reason := ""
	if len(msg.Params) > 1 {
		reason = msg.Trailing()
	}
	c.store.Part(channel, who, self)
	return []Event{{Kind: EventParted, Nick: who, Target: channel, Text: reason, Self: self}}
}

func (c *Client) handleKick(msg *proto.Message) []Event {
	if len(msg.Params) < 2 {
		return nil
	}
	channel, victim := msg.Params[0], msg.Params[1]
	self := c.isSelf(victim)
	reason := ""
	if len(msg.Params) > 2 {
		reason = msg.Trailing()
	}
	c.store.Part(channel, victim, self)
	return []Event{{
		Kind:   EventKicked,
		Nick:   msg.Nick(),
		Target: channel,
		Text:   reason,
		Self:   self,
	}}
}

func (c *Client) handleQuit(msg *proto.Message) []Event {
	who := msg.Nick()
	c.store.Quit(who)
	return []Event{{Kind: EventQuit, Nick: who, Text: msg.Trailing(), Self: c.isSelf(who)}}
}

func (c *Client) handleNick(msg *proto.Message) []Event {
	if len(msg.Params) < 1 {
		return nil
	}
	oldNick, newNick := msg.Nick(), msg.Params[0]
	self := c.isSelf(oldNick)
	if _, err := c.store.Rename(oldNick, newNick); err != nil && !self {
		// A rename for a user we never saw; nothing to re-key.
		return nil
	}
	if self {
		c.setNick(newNick)
	}
	return []Event{{Kind: EventNickChanged, Nick: oldNick, Text: newNick, Self: self}}
}

func (c *Client) handleMode(msg *proto.Message) []Event {
	if len(msg.Params) < 2 {
		return nil
	}
	target := msg.Params[0]
	rendered := strings.Join(msg.Params[1:], " ")
	if !c.isChannel(target) {
		// Own user modes; no store entity tracks them.
		return []Event{{Kind: EventModeChanged, Target: target, Mode: rendered, Self: true}}
	}
	for _, change := range state.ParseModeChanges(msg.Params[1:], c.prefixes) {
		c.store.ApplyChannelMode(target, change, c.prefixes)
	}
	return []Event{{
		Kind:   EventModeChanged,
		Nick:   msg.Nick(),
		Target: target,
		Mode:   rendered,
		Self:   c.isSelf(msg.Nick()),
	}}
}

// handleChat covers PRIVMSG and NOTICE, including the CTCP and DCC
// detection pass. A malformed DCC offer is reported and dropped; it never
// fails the connection.
func (c *Client) handleChat(msg *proto.Message) ([]Event, error) {
	if len(msg.Params) < 2 {
		return nil, nil
	}
	target := msg.Params[0]
	who := msg.Nick()

	ctcp, ok := proto.DecodeCTCP(msg)
	if !ok {
		kind := EventMessage
		if msg.Command == proto.CmdNotice {
			kind = EventNotice
		}
		return []Event{{Kind: kind, Nick: who, Target: target, Text: msg.Trailing()}}, nil
	}

	if ctcp.Verb == "DCC" {
		offer, err := dcc.ParseOffer(ctcp.Verb, ctcp.Arg)
		if err != nil {
			return []Event{{Kind: EventError, Severity: SeverityWarning, Err: err, Nick: who}}, nil
		}
		c.metrics.DCCOffer()
		return []Event{{Kind: EventDCCOffer, Nick: who, Target: target, Offer: offer}}, nil
	}

	// Engine-level CTCP replies only make sense for requests (PRIVMSG).
	if msg.Command == proto.CmdPrivmsg {
		switch ctcp.Verb {
		case "VERSION":
			c.send(proto.New(proto.CmdNotice, who, proto.EncodeCTCP("VERSION", "hexchat "+Version)))
		case "PING":
			c.send(proto.New(proto.CmdNotice, who, proto.EncodeCTCP("PING", ctcp.Arg)))
		}
	}
	return []Event{{Kind: EventCTCP, Nick: who, Target: target, CTCP: ctcp}}, nil
}

func (c *Client) isSelf(nick string) bool {
	return c.store.Casemapping().Eq(nick, c.CurrentNick())
}

func (c *Client) isChannel(target string) bool {
	return target != "" && strings.IndexByte(c.chantypes, target[0]) > -1
}
