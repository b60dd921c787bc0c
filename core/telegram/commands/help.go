package commands

import (
	"strings"

	"github.com/m3rciful/cmdbus/core/telegram/format"
)

// Lister exposes registered commands.
type Lister interface {
	Commands() []Command
}

type helpCommand struct {
	Base
	list Lister
}

// NewHelp returns a command listing visible commands, or describing one when named.
func NewHelp(list Lister, aliases ...string) Command {
	base := NewBase("help", "Show available commands").
		WithAliases(aliases...).
		WithParams(Optional("command", ""))
	return &helpCommand{Base: base, list: list}
}

func (h *helpCommand) Handle(c *Context, args Bound) error {
	if h.list == nil {
		return c.Info("No commands registered.")
	}
	if name := strings.TrimPrefix(strings.ToLower(args.String("command")), "/"); name != "" {
		for _, cmd := range h.list.Commands() {
			if cmd.Name() == name && !IsHidden(cmd) {
				return c.SendMD(describe(cmd, true))
			}
		}
		return c.Error("Unknown command /"+escape(name), false)
	}

	var b strings.Builder
	b.WriteString("*Commands*\n")
	for _, cmd := range h.list.Commands() {
		if IsHidden(cmd) || IsAdminOnly(cmd) {
			continue
		}
		b.WriteString(describe(cmd, false))
		b.WriteByte('\n')
	}
	return c.SendMD(b.String())
}

func describe(cmd Command, detailed bool) string {
	line := "/" + escape(cmd.Name()) + " - " + escape(cmd.Description())
	if !detailed {
		return line
	}
	if aliases := cmd.Aliases(); len(aliases) > 0 {
		quoted := make([]string, 0, len(aliases))
		for _, a := range aliases {
			quoted = append(quoted, escape(a))
		}
		line += "\nAliases: " + strings.Join(quoted, ", ")
	}
	if params := cmd.Params(); len(params) > 0 {
		names := make([]string, 0, len(params))
		for _, p := range params {
			names = append(names, escape(p.Name))
		}
		line += "\nArguments: " + strings.Join(names, " ")
	}
	return line
}

func escape(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1)
	if err != nil {
		return s
	}
	return out
}
