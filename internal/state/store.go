package state

import (
	"fmt"
	"strings"
)

// The store owns one server's view of channels, users and memberships. It is
// written to only by that server's dispatcher, which runs in a single
// goroutine, so no locking happens here. Cross-server state is never shared.

// User is one logical identity per nick on a server, shared by reference
// across every channel the user is seen in.
type User struct {
	Nick  string
	Ident string
	Host  string
	Away  bool
}

// Membership ties a User to a Channel together with the channel-specific
// status modes (o, h, v, ...) the user holds there.
type Membership struct {
	User    *User
	Channel *Channel
	modes   string
}

// HasMode reports whether the membership carries a status mode letter.
func (m *Membership) HasMode(mode byte) bool {
	return strings.IndexByte(m.modes, mode) > -1
}

// IsOperator reports channel-operator status.
func (m *Membership) IsOperator() bool { return m.HasMode('o') }

// HasVoice reports voice status.
func (m *Membership) HasVoice() bool { return m.HasMode('v') }

func (m *Membership) setMode(mode byte, on bool) {
	has := m.HasMode(mode)
	if on && !has {
		m.modes += string(mode)
	} else if !on && has {
		m.modes = strings.ReplaceAll(m.modes, string(mode), "")
	}
}

// Channel is one joined channel and its membership set.
type Channel struct {
	Name    string
	Topic   string
	TopicBy string
	Modes   string

	members map[string]*Membership // keyed by folded nick
}

// Members returns the membership set. The returned map is the live one;
// callers outside the owning dispatcher must not retain or mutate it.
func (ch *Channel) Members() map[string]*Membership { return ch.members }

// NumMembers returns the membership count.
func (ch *Channel) NumMembers() int { return len(ch.members) }

// Store is the per-server state store. All mutation goes through the
// dispatcher; no other component writes here.
type Store struct {
	casemap  Casemapping
	channels map[string]*Channel // keyed by folded name
	users    map[string]*User    // keyed by folded nick
	refs     map[string]int      // membership count per folded nick
}

// NewStore builds an empty store under the given casemapping.
func NewStore(cm Casemapping) *Store {
	return &Store{
		casemap:  cm,
		channels: make(map[string]*Channel),
		users:    make(map[string]*User),
		refs:     make(map[string]int),
	}
}

// Casemapping returns the active folding rule.
func (s *Store) Casemapping() Casemapping { return s.casemap }

// SetCasemapping switches the folding rule and re-keys every lookup table.
// Servers advertise CASEMAPPING in ISUPPORT before any channel sync, but a
// mid-session switch must not strand entries under stale keys.
func (s *Store) SetCasemapping(cm Casemapping) {
	if cm == s.casemap {
		return
	}
	s.casemap = cm
	channels := s.channels
	users := s.users
	refs := s.refs
	s.channels = make(map[string]*Channel, len(channels))
	s.users = make(map[string]*User, len(users))
	s.refs = make(map[string]int, len(refs))
	for _, ch := range channels {
		members := ch.members
		ch.members = make(map[string]*Membership, len(members))
		for _, mb := range members {
			ch.members[cm.Fold(mb.User.Nick)] = mb
		}
		s.channels[cm.Fold(ch.Name)] = ch
	}
	for _, u := range users {
		s.users[cm.Fold(u.Nick)] = u
	}
	for _, u := range s.users {
		s.refs[cm.Fold(u.Nick)] = countRefs(s.channels, cm.Fold(u.Nick))
	}
}

func countRefs(channels map[string]*Channel, key string) int {
	n := 0
	for _, ch := range channels {
		if _, ok := ch.members[key]; ok {
			n++
		}
	}
	return n
}

// Channel looks a channel up under the active casemapping.
func (s *Store) Channel(name string) *Channel {
	return s.channels[s.casemap.Fold(name)]
}

// Channels returns every joined channel.
func (s *Store) Channels() []*Channel {
	out := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out
}

// User looks a user up under the active casemapping.
func (s *Store) User(nick string) *User {
	return s.users[s.casemap.Fold(nick)]
}

// lookupUser returns the shared User for a nick, creating it on first
// reference.
func (s *Store) lookupUser(nick, ident, host string) *User {
	key := s.casemap.Fold(nick)
	u, ok := s.users[key]
	if !ok {
		u = &User{Nick: nick, Ident: ident, Host: host}
		s.users[key] = u
	} else {
		// A fresh sighting may fill in ident/host learned from the prefix.
		if ident != "" {
			u.Ident = ident
		}
		if host != "" {
			u.Host = host
		}
	}
	return u
}

// Join records a user entering a channel, creating the channel and the
// shared user as needed, and returns the membership.
func (s *Store) Join(channel, nick, ident, host string) *Membership {
	chKey := s.casemap.Fold(channel)
	ch, ok := s.channels[chKey]
	if !ok {
		ch = &Channel{Name: channel, members: make(map[string]*Membership)}
		s.channels[chKey] = ch
	}
	nickKey := s.casemap.Fold(nick)
	if mb, ok := ch.members[nickKey]; ok {
		return mb
	}
	u := s.lookupUser(nick, ident, host)
	mb := &Membership{User: u, Channel: ch}
	ch.members[nickKey] = mb
	s.refs[nickKey]++
	return mb
}

// Part removes a user from a channel. When the departing user is ourselves
// (self == true) the whole channel is destroyed. It returns false when no
// such membership existed.
func (s *Store) Part(channel, nick string, self bool) bool {
	chKey := s.casemap.Fold(channel)
	ch, ok := s.channels[chKey]
	if !ok {
		return false
	}
	if self {
		for nickKey := range ch.members {
			s.dropRef(nickKey)
		}
		delete(s.channels, chKey)
		return true
	}
	nickKey := s.casemap.Fold(nick)
	if _, ok := ch.members[nickKey]; !ok {
		return false
	}
	delete(ch.members, nickKey)
	s.dropRef(nickKey)
	return true
}

// Quit removes a user from every channel on this server and returns the
// channels the user was seen in.
func (s *Store) Quit(nick string) []*Channel {
	nickKey := s.casemap.Fold(nick)
	var seen []*Channel
	for _, ch := range s.channels {
		if _, ok := ch.members[nickKey]; ok {
			delete(ch.members, nickKey)
			s.dropRef(nickKey)
			seen = append(seen, ch)
		}
	}
	return seen
}

// Rename re-keys a user under a new nick without breaking the memberships
// that reference the shared User.
func (s *Store) Rename(oldNick, newNick string) (*User, error) {
	oldKey := s.casemap.Fold(oldNick)
	u, ok := s.users[oldKey]
	if !ok {
		return nil, fmt.Errorf("rename: unknown nick %q", oldNick)
	}
	newKey := s.casemap.Fold(newNick)
	u.Nick = newNick
	if newKey == oldKey {
		return u, nil
	}
	delete(s.users, oldKey)
	s.users[newKey] = u
	s.refs[newKey] = s.refs[oldKey]
	delete(s.refs, oldKey)
	for _, ch := range s.channels {
		if mb, ok := ch.members[oldKey]; ok {
			delete(ch.members, oldKey)
			ch.members[newKey] = mb
		}
	}
	return u, nil
}

// SetTopic records a channel topic change.
func (s *Store) SetTopic(channel, topic, by string) bool {
	ch := s.Channel(channel)
	if ch == nil {
		return false
	}
	ch.Topic = topic
	ch.TopicBy = by
	return true
}

// SetAway flips a user's away flag.
func (s *Store) SetAway(nick string, away bool) bool {
	u := s.User(nick)
	if u == nil {
		return false
	}
	u.Away = away
	return true
}

// SyncNames applies one RPL_NAMREPLY chunk: each entry is a nick with
// optional leading status sigils (@, +, %, ...).
func (s *Store) SyncNames(channel string, names []string, prefixes PrefixTable) {
	for _, name := range names {
		if name == "" {
			continue
		}
		var modes []byte
		for len(name) > 0 {
			mode, ok := prefixes.ModeFor(name[0])
			if !ok {
				break
			}
			modes = append(modes, mode)
			name = name[1:]
		}
		if name == "" {
			continue
		}
		mb := s.Join(channel, name, "", "")
		for _, mo := range modes {
			mb.setMode(mo, true)
		}
	}
}

// ApplyChannelMode applies one parsed mode change to a channel, updating
// membership status modes for PREFIX-type modes and the channel mode string
// otherwise.
func (s *Store) ApplyChannelMode(channel string, ch ModeChange, prefixes PrefixTable) bool {
	c := s.Channel(channel)
	if c == nil {
		return false
	}
	if prefixes.IsStatusMode(ch.Mode) && ch.Arg != "" {
		if mb, ok := c.members[s.casemap.Fold(ch.Arg)]; ok {
			mb.setMode(ch.Mode, ch.On)
			return true
		}
		return false
	}
	// Non-membership modes keep the flat channel mode string current.
	has := strings.IndexByte(c.Modes, ch.Mode) > -1
	if ch.On && !has {
		c.Modes += string(ch.Mode)
	} else if !ch.On && has {
		c.Modes = strings.ReplaceAll(c.Modes, string(ch.Mode), "")
	}
	return true
}

// Clear drops every channel, user and membership, as on disconnect.
func (s *Store) Clear() {
	s.channels = make(map[string]*Channel)
	s.users = make(map[string]*User)
	s.refs = make(map[string]int)
}

// dropRef decrements a user's membership count and forgets the user once
// nothing references them.
func (s *Store) dropRef(nickKey string) {
	s.refs[nickKey]--
	if s.refs[nickKey] <= 0 {
		delete(s.refs, nickKey)
		delete(s.users, nickKey)
	}
}
