package router

import (
	tele "gopkg.in/telebot.v4"
)

// Kind is the routing decision for one update.
type Kind int

const (
	KindIgnored Kind = iota
	KindCallback
	KindExplicit
	KindReply
	KindPlain
)

func (k Kind) String() string {
	switch k {
	case KindCallback:
		return "callback"
	case KindExplicit:
		return "explicit"
	case KindReply:
		return "reply"
	case KindPlain:
		return "plain"
	default:
		return "ignored"
	}
}

// Classify decides how upd is routed. Callbacks are checked first since they
// carry no message body; an explicit command wins over a reply.
func Classify(upd *tele.Update) Kind {
	switch {
	case upd == nil:
		return KindIgnored
	case upd.Callback != nil:
		return KindCallback
	case upd.Message == nil:
		return KindIgnored
	case isExplicit(upd.Message):
		return KindExplicit
	case upd.Message.ReplyTo != nil:
		return KindReply
	default:
		return KindPlain
	}
}

func isExplicit(m *tele.Message) bool {
	if len(m.Entities) == 0 {
		return false
	}
	e := m.Entities[0]
	return e.Type == tele.EntityCommand && e.Offset == 0 && e.Length > 0
}
