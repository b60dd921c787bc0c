package commands

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"
)

var errNoExecutor = errors.New("commands: context has no executor")

// MessageOptions configures ReplyWithMessage.
type MessageOptions struct {
	Text      string
	ParseMode tele.ParseMode
	Markup    *tele.ReplyMarkup
	Silent    bool
}

// MediaOptions configures photo, audio, video, voice and document replies.
type MediaOptions struct {
	File      tele.File
	Caption   string
	FileName  string
	ParseMode tele.ParseMode
	Markup    *tele.ReplyMarkup
}

// LocationOptions configures ReplyWithLocation.
type LocationOptions struct {
	Lat        float32
	Lng        float32
	LivePeriod int
}

// Replier sends replies to the chat of the current update.
// Sent messages may be nil when replies are delivered asynchronously.
type Replier interface {
	ReplyWithMessage(ctx context.Context, opts MessageOptions) (*tele.Message, error)
	ReplyWithPhoto(ctx context.Context, opts MediaOptions) (*tele.Message, error)
	ReplyWithAudio(ctx context.Context, opts MediaOptions) (*tele.Message, error)
	ReplyWithVideo(ctx context.Context, opts MediaOptions) (*tele.Message, error)
	ReplyWithVoice(ctx context.Context, opts MediaOptions) (*tele.Message, error)
	ReplyWithDocument(ctx context.Context, opts MediaOptions) (*tele.Message, error)
	ReplyWithSticker(ctx context.Context, file tele.File) (*tele.Message, error)
	ReplyWithLocation(ctx context.Context, opts LocationOptions) (*tele.Message, error)
	ReplyWithChatAction(ctx context.Context, action tele.ChatAction) error
	DeleteMessage(ctx context.Context, messageID int) error
}

const errorHint = "_This may be a system error. If you think so, please let us know._"

// Send replies with plain text.
func (c *Context) Send(text string) error {
	return c.send(MessageOptions{Text: text})
}

// SendMD replies with Markdown text and an optional keyboard.
func (c *Context) SendMD(text string, markup ...*tele.ReplyMarkup) error {
	opts := MessageOptions{Text: text, ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.Markup = markup[0]
	}
	return c.send(opts)
}

// Error reports a failure to the user. The hint line is added unless hint is false.
func (c *Context) Error(message string, hint ...bool) error {
	text := "❌ " + message + "\n"
	if len(hint) == 0 || hint[0] {
		text += errorHint
	}
	return c.send(MessageOptions{Text: text, ParseMode: tele.ModeMarkdown})
}

// Info sends an informational reply.
func (c *Context) Info(message string) error {
	return c.send(MessageOptions{Text: "❕ " + message + "\n", ParseMode: tele.ModeMarkdown})
}

// Success sends a confirmation reply.
func (c *Context) Success(message string) error {
	return c.send(MessageOptions{Text: "✅ " + message + "\n", ParseMode: tele.ModeMarkdown})
}

func (c *Context) send(opts MessageOptions) error {
	if c.reply == nil {
		return fmt.Errorf("commands: no replier for %q", opts.Text)
	}
	_, err := c.reply.ReplyWithMessage(c.ctx, opts)
	return err
}
