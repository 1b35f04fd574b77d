package irc

import (
	"fmt"
	"strings"

	"github.com/whisprer/hexchat/internal/dcc"
	"github.com/whisprer/hexchat/internal/proto"
)

// Outbound convenience wrappers. Each builds a protocol message and hands
// it to Send; queue and connection-state rules apply unchanged.

// Join requests membership in one or more channels. An optional key list
// follows the channel list.
func (c *Client) Join(channels []string, keys []string) error {
	if len(channels) == 0 {
		return nil
	}
	params := []string{strings.Join(channels, ",")}
	if len(keys) > 0 {
		params = append(params, strings.Join(keys, ","))
	}
	return c.Send(proto.New(proto.CmdJoin, params...))
}

// Part leaves a channel, with an optional reason.
func (c *Client) Part(channel, reason string) error {
	if reason == "" {
		return c.Send(proto.New(proto.CmdPart, channel))
	}
	return c.Send(proto.New(proto.CmdPart, channel, reason))
}

// Privmsg sends a message to a channel or nick.
func (c *Client) Privmsg(target, text string) error {
	return c.Send(proto.New(proto.CmdPrivmsg, target, text))
}

// Privmsgf formats and sends a message.
func (c *Client) Privmsgf(target, format string, args ...interface{}) error {
	return c.Privmsg(target, fmt.Sprintf(format, args...))
}

// Notice sends a notice to a channel or nick.
func (c *Client) Notice(target, text string) error {
	return c.Send(proto.New(proto.CmdNotice, target, text))
}

// SetNick asks the server for a new nick. The local view updates only when
// the server echoes the change back.
func (c *Client) SetNick(nick string) error {
	return c.Send(proto.New(proto.CmdNick, nick))
}

// SetTopic changes a channel topic; an empty topic clears it.
func (c *Client) SetTopic(channel, topic string) error {
	return c.Send(proto.New(proto.CmdTopic, channel, topic))
}

// Away marks us away with the given reason, or back when reason is empty.
func (c *Client) Away(reason string) error {
	if reason == "" {
		return c.Send(proto.New(proto.CmdAway))
	}
	return c.Send(proto.New(proto.CmdAway, reason))
}

// CTCPRequest sends a CTCP query inside a PRIVMSG.
func (c *Client) CTCPRequest(target, verb, arg string) error {
	return c.Privmsg(target, proto.EncodeCTCP(verb, arg))
}

// CTCPReply answers a CTCP query; replies travel as NOTICE.
func (c *Client) CTCPReply(target, verb, arg string) error {
	return c.Notice(target, proto.EncodeCTCP(verb, arg))
}

// SendDCCOffer transmits a DCC offer to a nick as a CTCP DCC message.
func (c *Client) SendDCCOffer(target string, offer *dcc.Offer) error {
	return c.Privmsg(target, proto.EncodeCTCP("DCC", dcc.BuildOffer(offer)))
}
