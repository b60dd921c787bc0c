package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry holds commands in registration order, indexed by name.
type Registry struct {
	mu     sync.RWMutex
	prefix string
	order  []commands.Command
	byName map[string]commands.Command
}

// NewRegistry creates an empty Registry. prefix is stripped from names; "" means "/".
func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = "/"
	}
	return &Registry{prefix: prefix, byName: make(map[string]commands.Command)}
}

// NormalizeName strips prefix and lower-cases name.
func NormalizeName(name, prefix string) string {
	name = strings.TrimSpace(name)
	if prefix != "" {
		name = strings.TrimPrefix(name, prefix)
	}
	return strings.ToLower(name)
}

// Register adds cmd. A second command with the same name is rejected with *DuplicateCommandError.
func (r *Registry) Register(cmd commands.Command) error {
	if cmd == nil {
		return errors.New("telegram: nil command")
	}
	name := NormalizeName(cmd.Name(), r.prefix)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		logger.Warn(context.Background(), logger.CompWire, "register.command.skip",
			slog.String("command", cmd.Name()),
			slog.String("cause", "invalid_name"),
		)
		return fmt.Errorf("telegram: invalid command name %q", cmd.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		logger.Warn(context.Background(), logger.CompWire, "register.command.duplicate",
			slog.String("command", name),
		)
		return &DuplicateCommandError{Name: name}
	}
	for _, alias := range cmd.Aliases() {
		if _, shadow := r.byName[NormalizeName(alias, r.prefix)]; shadow {
			logger.Debug(context.Background(), logger.CompWire, "register.alias.shadowed",
				slog.String("command", name),
				slog.String("alias", alias),
			)
		}
	}
	r.byName[name] = cmd
	r.order = append(r.order, cmd)
	logger.Debug(context.Background(), logger.CompWire, "register.command",
		slog.String("command", name),
		slog.Int("count", len(r.order)),
	)
	return nil
}

// Lookup finds a command by name; the prefix and case are ignored.
func (r *Registry) Lookup(name string) (commands.Command, bool) {
	key := NormalizeName(name, r.prefix)
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[key]
	return cmd, ok
}

// LookupAlias returns the first registered command whose aliases contain the trimmed text.
func (r *Registry) LookupAlias(text string) (commands.Command, bool) {
	text = strings.TrimSpace(text)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cmd := range r.order {
		if commands.HasAlias(cmd, text) {
			return cmd, true
		}
	}
	return nil, false
}

// All returns every command in registration order.
func (r *Registry) All() []commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]commands.Command(nil), r.order...)
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Menu returns the Telegram command menu, optionally without hidden and admin-only commands.
func (r *Registry) Menu(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for _, cmd := range r.All() {
		if visibleOnly && (commands.IsHidden(cmd) || commands.IsAdminOnly(cmd)) {
			continue
		}
		if cmd.Description() == "" {
			continue
		}
		list = append(list, tele.Command{
			Text:        NormalizeName(cmd.Name(), r.prefix),
			Description: cmd.Description(),
		})
	}
	return list
}

// MenuSetter is implemented by *tele.Bot.
type MenuSetter interface {
	SetCommands(opts ...interface{}) error
}

// SyncMenu publishes the visible commands as the bot command menu.
func SyncMenu(ctx context.Context, api MenuSetter, reg *Registry) error {
	menu := reg.Menu(true)
	if err := api.SetCommands(menu); err != nil {
		logger.Error(ctx, logger.CompWire, "register.commands.set_failed",
			slog.String("status", "fail"),
			slog.Any("err", err),
		)
		return err
	}
	logger.Info(ctx, logger.CompWire, "register.commands.set",
		slog.String("status", "ok"),
		slog.Int("count", len(menu)),
	)
	return nil
}
