// Package router classifies inbound updates and hands them to the command bus.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram"
	"github.com/m3rciful/cmdbus/core/telegram/commands"
	"github.com/m3rciful/cmdbus/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Bus is the part of telegram.Bus the router drives.
type Bus interface {
	Handle(ctx context.Context, text string, upd *tele.Update) error
	Invoke(ctx context.Context, cmd commands.Command, args commands.Args, upd *tele.Update) error
	Commands() []commands.Command
}

// Options configures a Router.
type Options struct {
	// FirstMatchOnly stops reply and plain-text dispatch at the first matching
	// command instead of invoking every match.
	FirstMatchOnly bool
	// Middlewares wrap Route; the first one runs outermost.
	Middlewares []middleware.Middleware
}

// Router routes single updates. It is safe for concurrent use.
type Router struct {
	bus     Bus
	opts    Options
	handler middleware.HandlerFunc
}

// New builds a Router over bus.
func New(bus Bus, opts Options) *Router {
	r := &Router{bus: bus, opts: opts}
	r.handler = middleware.Chain(r.dispatch, opts.Middlewares...)
	return r
}

// Route classifies upd and runs the matching command(s).
// Unmatched updates are a no-op; handler failures are joined and returned.
func (r *Router) Route(ctx context.Context, upd *tele.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.handler(ctx, upd)
}

func (r *Router) dispatch(ctx context.Context, upd *tele.Update) error {
	kind := Classify(upd)
	switch kind {
	case KindCallback:
		return r.bus.Handle(logger.WithRoute(ctx, telegram.RouteCallback), upd.Callback.Data, upd)
	case KindExplicit:
		return r.bus.Handle(logger.WithRoute(ctx, telegram.RouteExplicit), upd.Message.Text, upd)
	case KindReply:
		replied := strings.TrimSpace(upd.Message.ReplyTo.Text)
		if replied == "" {
			return nil
		}
		return r.fanOut(ctx, telegram.RouteReply, upd, func(cmd commands.Command) bool {
			trigger := cmd.ReplyTrigger()
			return trigger != "" && trigger == replied
		})
	case KindPlain:
		text := strings.TrimSpace(upd.Message.Text)
		if text == "" {
			return nil
		}
		return r.fanOut(ctx, telegram.RoutePlain, upd, func(cmd commands.Command) bool {
			return commands.HasAlias(cmd, text)
		})
	default:
		logger.Debug(ctx, logger.CompRouter, "update.ignored",
			slog.String("status", "skip"),
			slog.String("mode", middleware.UpdateKind(upd)),
		)
		return nil
	}
}

// fanOut invokes every command accepted by match with the message text as the
// only argument. A failing command does not stop the rest.
func (r *Router) fanOut(ctx context.Context, route string, upd *tele.Update, match func(commands.Command) bool) error {
	ctx = logger.WithRoute(ctx, route)
	args := commands.Positional(upd.Message.Text)

	var (
		errs    []error
		matched []string
	)
	for _, cmd := range r.bus.Commands() {
		if !match(cmd) {
			continue
		}
		matched = append(matched, cmd.Name())
		if err := r.bus.Invoke(ctx, cmd, args, upd); err != nil {
			errs = append(errs, err)
		}
		if r.opts.FirstMatchOnly {
			break
		}
	}

	status := "ok"
	switch {
	case len(matched) == 0:
		status = "skip"
	case len(errs) > 0:
		status = "fail"
	}
	names, _ := logger.SummarizeStrings(matched, 8)
	logger.Debug(ctx, logger.CompRouter, "update.routed",
		slog.String("status", status),
		slog.Int("matches", len(matched)),
		slog.String("command", names),
	)
	return errors.Join(errs...)
}
