package irc

import (
	"time"

	"github.com/whisprer/hexchat/internal/dcc"
	"github.com/whisprer/hexchat/internal/proto"
)

// EventKind discriminates the fixed-shape Event below.
type EventKind int

const (
	// EventRawMessage fires for every decoded inbound line, before any
	// semantic event derived from it.
	EventRawMessage EventKind = iota
	EventStateChanged
	EventWelcome
	EventJoined
	EventParted
	EventKicked
	EventQuit
	EventNickChanged
	EventTopicChanged
	EventModeChanged
	EventMessage
	EventNotice
	EventCTCP
	EventAway
	EventDCCOffer
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventRawMessage:
		return "raw-message"
	case EventStateChanged:
		return "state-changed"
	case EventWelcome:
		return "welcome"
	case EventJoined:
		return "joined"
	case EventParted:
		return "parted"
	case EventKicked:
		return "kicked"
	case EventQuit:
		return "quit"
	case EventNickChanged:
		return "nick-changed"
	case EventTopicChanged:
		return "topic-changed"
	case EventModeChanged:
		return "mode-changed"
	case EventMessage:
		return "message"
	case EventNotice:
		return "notice"
	case EventCTCP:
		return "ctcp"
	case EventAway:
		return "away"
	case EventDCCOffer:
		return "dcc-offer"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Severity tags error notifications.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Event is the single notification shape delivered to observers. Fields
// beyond Server, Time and Kind are populated per kind; observers never get
// direct access to internal state.
type Event struct {
	Server string
	Time   time.Time
	Kind   EventKind

	// Raw carries the decoded line for EventRawMessage and for semantic
	// events derived from one.
	Raw *proto.Message

	State ConnState // EventStateChanged

	Nick    string // acting user, old nick for EventNickChanged
	Target  string // channel or nick the event applies to
	Text    string // message body, topic, part/quit reason, new nick
	Mode    string // EventModeChanged: rendered mode change
	Offer   *dcc.Offer
	CTCP    proto.CTCP
	Self    bool // the event concerns our own nick

	Severity Severity
	Err      error
}

// An Observer receives every notification of one client, in the order the
// triggering lines arrived. Delivery happens on the client's own goroutine:
// a blocking observer stalls that server only.
type Observer interface {
	Notify(ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(ev Event) { f(ev) }
