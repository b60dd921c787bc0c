package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	coredatabase "github.com/m3rciful/cmdbus/core/database"
	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram/commands"
	"github.com/m3rciful/cmdbus/core/telegram/format"
	"github.com/m3rciful/cmdbus/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

type historySource interface {
	Recent(ctx context.Context, limit int) ([]coredatabase.InvocationRow, error)
}

func appCommands(feedback FeedbackConfig, history historySource) []commands.Command {
	prompt := feedback.Prompt
	if prompt == "" {
		prompt = defaultFeedbackPrompt
	}
	return []commands.Command{
		commands.New(commands.NewBase("start", "Start the bot").WithAliases("hi", "hello"), handleStart),
		commands.New(commands.NewBase("menu", "Show the command menu").WithAliases("menu"), handleMenu),
		commands.New(commands.NewBase("echo", "Repeat the given text").WithParams(commands.Optional("text", "")), handleEcho),
		commands.New(commands.NewBase("ping", "Check that the bot answers"), handlePing),
		newFeedback(prompt),
		newHistory(history),
	}
}

func handleStart(c *commands.Context, _ commands.Bound) error {
	name := "there"
	if u := c.Sender(); u != nil && u.FirstName != "" {
		name = u.FirstName
	}
	kb := keyboard.ReplyButtons([]string{"menu", "feedback"})
	return c.SendMD(fmt.Sprintf("Hello, %s! Send /help to see what I can do.", escape(name)), kb)
}

func handleMenu(c *commands.Context, _ commands.Bound) error {
	kb, err := keyboard.CommandGrid([]keyboard.CommandBtn{
		{Text: "Ping", Command: "ping"},
		{Text: "Echo", Command: "echo", Args: []string{"hello"}},
		{Text: "Feedback", Command: "feedback"},
		{Text: "Help", Command: "help"},
	}, 2)
	if err != nil {
		return err
	}
	return c.SendMD("*Menu*", kb)
}

func handleEcho(c *commands.Context, args commands.Bound) error {
	text := strings.TrimSpace(args.Raw().Raw)
	if text == "" {
		text = strings.TrimSpace(args.String("text"))
	}
	if text == "" {
		return c.Info("Nothing to echo. Try `/echo hello`.")
	}
	return c.Send(text)
}

// handlePing delegates to echo to show command chaining.
func handlePing(c *commands.Context, _ commands.Bound) error {
	return c.Trigger("echo", "pong")
}

type feedbackCommand struct {
	commands.Base
}

func newFeedback(prompt string) *feedbackCommand {
	base := commands.NewBase("feedback", "Send feedback to the team").
		WithAliases("feedback").
		WithReplyTrigger(prompt).
		WithParams(commands.Optional("text", ""))
	return &feedbackCommand{Base: base}
}

// Handle asks for feedback, or records it when the message answers the prompt.
func (f *feedbackCommand) Handle(c *commands.Context, args commands.Bound) error {
	m := c.Message()
	if m == nil || m.ReplyTo == nil || strings.TrimSpace(m.ReplyTo.Text) != f.ReplyTrigger() {
		return c.SendMD(escape(f.ReplyTrigger()), keyboard.ForceReply("Your feedback"))
	}
	text := strings.TrimSpace(args.String("text"))
	if text == "" {
		return c.Error("Feedback cannot be empty.", false)
	}
	logger.Info(c.Context(), logger.CompApp, "feedback.received",
		slog.String("status", "ok"),
		slog.String("payload", logger.SanitizeLimit(text, 512)),
	)
	if err := c.Reply().DeleteMessage(c.Context(), m.ReplyTo.ID); err != nil {
		logger.Debug(c.Context(), logger.CompApp, "feedback.cleanup",
			slog.String("status", "fail"),
			slog.Any("err", err),
		)
	}
	return c.Success("Thanks, your feedback was recorded.")
}

type historyCommand struct {
	commands.Base
	source historySource
}

func newHistory(source historySource) *historyCommand {
	base := commands.NewBase("history", "Show recent command invocations").
		WithParams(commands.Optional("limit", 10)).
		AsAdminOnly().
		AsHidden()
	return &historyCommand{Base: base, source: source}
}

func (h *historyCommand) Handle(c *commands.Context, args commands.Bound) error {
	if h.source == nil {
		return c.Info("History is disabled: no database configured.")
	}
	limit, ok := args.Int("limit")
	if !ok || limit <= 0 || limit > 50 {
		limit = 10
	}
	if err := c.Reply().ReplyWithChatAction(c.Context(), tele.Typing); err != nil {
		logger.Debug(c.Context(), logger.CompApp, "history.typing", slog.Any("err", err))
	}
	rows, err := h.source.Recent(c.Context(), limit)
	if err != nil {
		_ = c.Error("Could not load history.")
		return err
	}
	if len(rows) == 0 {
		return c.Info("No invocations recorded yet.")
	}
	var b strings.Builder
	b.WriteString("*Recent commands*\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s /%s %s %s %dms\n",
			r.CreatedAt.Format("15:04:05"), escape(r.Command), escape(r.Route), escape(r.Status), r.DurationMS)
	}
	return c.SendMD(b.String())
}

func escape(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1)
	if err != nil {
		return s
	}
	return out
}
