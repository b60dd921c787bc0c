package middleware

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// HandlerFunc processes one inbound update.
type HandlerFunc func(ctx context.Context, upd *tele.Update) error

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that the first middleware runs outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// UpdateKind names the payload of upd for exclusion lists and logs.
func UpdateKind(upd *tele.Update) string {
	switch {
	case upd == nil:
		return "none"
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.EditedMessage != nil:
		return "edited_message"
	case upd.Query != nil:
		return "inline_query"
	default:
		return "other"
	}
}

func senderID(upd *tele.Update) int64 {
	switch {
	case upd == nil:
		return 0
	case upd.Callback != nil && upd.Callback.Sender != nil:
		return upd.Callback.Sender.ID
	case upd.Message != nil && upd.Message.Sender != nil:
		return upd.Message.Sender.ID
	}
	return 0
}

func chatID(upd *tele.Update) int64 {
	switch {
	case upd == nil:
		return 0
	case upd.Callback != nil && upd.Callback.Message != nil && upd.Callback.Message.Chat != nil:
		return upd.Callback.Message.Chat.ID
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID
	}
	return 0
}
