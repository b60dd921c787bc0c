package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram/commands"
	"github.com/m3rciful/cmdbus/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Client is the outbound part of the Telegram API used by commands. *tele.Bot satisfies it.
type Client interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Notify(to tele.Recipient, action tele.ChatAction, threadID ...int) error
	Delete(msg tele.Editable) error
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

var errNoChat = errors.New("telegram: update has no chat to reply to")

// chatReplier implements commands.Replier for one chat and counts what it sent.
type chatReplier struct {
	client     Client
	chat       *tele.Chat
	dispatcher *sender.Dispatcher

	messages atomic.Int32
	keyboard atomic.Bool
}

var _ commands.Replier = (*chatReplier)(nil)

func newChatReplier(client Client, chat *tele.Chat, d *sender.Dispatcher) *chatReplier {
	return &chatReplier{client: client, chat: chat, dispatcher: d}
}

// counters reports how many messages were sent and whether any carried a keyboard.
func (r *chatReplier) counters() (int, bool) {
	return int(r.messages.Load()), r.keyboard.Load()
}

func (r *chatReplier) send(ctx context.Context, action string, what interface{}, opts *tele.SendOptions) (*tele.Message, error) {
	if r.chat == nil {
		return nil, errNoChat
	}
	if r.dispatcher != nil {
		err := r.dispatcher.Enqueue(ctx, action, func(context.Context) error {
			_, err := r.client.Send(r.chat, what, opts)
			return err
		})
		if err == nil {
			r.count(opts)
			return nil, nil
		}
		if !errors.Is(err, sender.ErrQueueFull) && !errors.Is(err, sender.ErrQueueClosed) {
			return nil, err
		}
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("status", "skip"),
			slog.String("mode", action),
			slog.Any("err", err),
		)
	}
	msg, err := r.client.Send(r.chat, what, opts)
	if err != nil {
		return nil, err
	}
	r.count(opts)
	return msg, nil
}

func (r *chatReplier) count(opts *tele.SendOptions) {
	r.messages.Add(1)
	if opts != nil && opts.ReplyMarkup != nil {
		r.keyboard.Store(true)
	}
}

func sendOptions(mode tele.ParseMode, markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ParseMode: mode, ReplyMarkup: markup}
}

func (r *chatReplier) ReplyWithMessage(ctx context.Context, o commands.MessageOptions) (*tele.Message, error) {
	opts := sendOptions(o.ParseMode, o.Markup)
	opts.DisableNotification = o.Silent
	return r.send(ctx, "sendMessage", o.Text, opts)
}

func (r *chatReplier) ReplyWithPhoto(ctx context.Context, o commands.MediaOptions) (*tele.Message, error) {
	return r.send(ctx, "sendPhoto", &tele.Photo{File: o.File, Caption: o.Caption}, sendOptions(o.ParseMode, o.Markup))
}

func (r *chatReplier) ReplyWithAudio(ctx context.Context, o commands.MediaOptions) (*tele.Message, error) {
	return r.send(ctx, "sendAudio", &tele.Audio{File: o.File, Caption: o.Caption, FileName: o.FileName}, sendOptions(o.ParseMode, o.Markup))
}

func (r *chatReplier) ReplyWithVideo(ctx context.Context, o commands.MediaOptions) (*tele.Message, error) {
	return r.send(ctx, "sendVideo", &tele.Video{File: o.File, Caption: o.Caption, FileName: o.FileName}, sendOptions(o.ParseMode, o.Markup))
}

func (r *chatReplier) ReplyWithVoice(ctx context.Context, o commands.MediaOptions) (*tele.Message, error) {
	return r.send(ctx, "sendVoice", &tele.Voice{File: o.File, Caption: o.Caption}, sendOptions(o.ParseMode, o.Markup))
}

func (r *chatReplier) ReplyWithDocument(ctx context.Context, o commands.MediaOptions) (*tele.Message, error) {
	return r.send(ctx, "sendDocument", &tele.Document{File: o.File, Caption: o.Caption, FileName: o.FileName}, sendOptions(o.ParseMode, o.Markup))
}

func (r *chatReplier) ReplyWithSticker(ctx context.Context, file tele.File) (*tele.Message, error) {
	return r.send(ctx, "sendSticker", &tele.Sticker{File: file}, &tele.SendOptions{})
}

func (r *chatReplier) ReplyWithLocation(ctx context.Context, o commands.LocationOptions) (*tele.Message, error) {
	return r.send(ctx, "sendLocation", &tele.Location{Lat: o.Lat, Lng: o.Lng, LivePeriod: o.LivePeriod}, &tele.SendOptions{})
}

// ReplyWithChatAction always bypasses the dispatcher.
func (r *chatReplier) ReplyWithChatAction(_ context.Context, action tele.ChatAction) error {
	if r.chat == nil {
		return errNoChat
	}
	return r.client.Notify(r.chat, action)
}

func (r *chatReplier) DeleteMessage(ctx context.Context, messageID int) error {
	if r.chat == nil {
		return errNoChat
	}
	msg := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: r.chat.ID}
	if r.dispatcher != nil {
		return r.dispatcher.Enqueue(ctx, "deleteMessage", func(context.Context) error {
			return r.client.Delete(msg)
		})
	}
	return r.client.Delete(msg)
}
