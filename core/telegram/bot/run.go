// Package bot wires the command bus, router and transport to a live Telegram bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/cmdbus/core/config"
	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram"
	"github.com/m3rciful/cmdbus/core/telegram/commands"
	"github.com/m3rciful/cmdbus/core/telegram/middleware"
	"github.com/m3rciful/cmdbus/core/telegram/netutil"
	"github.com/m3rciful/cmdbus/core/telegram/router"
	"github.com/m3rciful/cmdbus/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// webhookBuffer holds pushed updates so webhook requests rarely wait on routing.
const webhookBuffer = 100

// RunOptions controls Run.
type RunOptions struct {
	Config   *coreconfig.Config
	Commands []commands.Command
	// Help registers the built-in help command first, with these aliases.
	Help        bool
	HelpAliases []string

	// Guards run after the built-in admin-only guard.
	Guards  []telegram.Guard
	Journal telegram.Journal
	Offsets router.OffsetStore
	// Middlewares run after the default chain.
	Middlewares   []middleware.Middleware
	OnLimited     middleware.HandlerFunc
	OnAdminReject func(c *commands.Context) error

	OnStart func(ctx context.Context, rt *Runtime) error
	OnStop  func(ctx context.Context, rt *Runtime) error
}

// Runtime exposes the assembled components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Bus        *telegram.Bus
	Router     *router.Router
	Transport  *telegram.Transport
	Dispatcher *sender.Dispatcher
}

// New builds the bot and every component around it without receiving updates yet.
func New(ctx context.Context, opts RunOptions) (*Runtime, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("bot: nil config provided")
	}
	longPoll := LongPollTimeout(cfg)

	start := time.Now()
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Client:  BuildHTTPClient(longPoll),
		OnError: onError(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("bot: initialization failed: %w", err)
	}

	var dispatcher *sender.Dispatcher
	if cfg.Sender.Async {
		dispatcher = sender.NewDispatcher(sender.Options{
			QueueSize:  cfg.Sender.QueueSize,
			Workers:    cfg.Sender.Workers,
			MaxRetries: cfg.Sender.MaxRetries,
		})
	}

	username := cfg.Commands.BotUsername
	if username == "" && b.Me != nil {
		username = b.Me.Username
	}
	guards := append([]telegram.Guard{middleware.AdminOnly(middleware.AdminOptions{
		AdminID:  cfg.Telegram.AdminID,
		OnReject: opts.OnAdminReject,
	})}, opts.Guards...)

	bus := telegram.NewBus(nil, b, telegram.BusOptions{
		Prefix:      cfg.Commands.Prefix,
		BotUsername: username,
		Timeout:     time.Duration(cfg.Commands.TimeoutMS) * time.Millisecond,
		MaxDepth:    cfg.Commands.MaxDepth,
		Guards:      guards,
		Dispatcher:  dispatcher,
		Journal:     opts.Journal,
	})
	cmds := opts.Commands
	if opts.Help {
		cmds = append([]commands.Command{commands.NewHelp(bus, opts.HelpAliases...)}, cmds...)
	}
	if err := bus.Register(cmds...); err != nil {
		if dispatcher != nil {
			dispatcher.Close()
		}
		return nil, fmt.Errorf("bot: register commands: %w", err)
	}

	rt := &Runtime{
		Bot: b,
		Bus: bus,
		Router: router.New(bus, router.Options{
			FirstMatchOnly: cfg.Commands.FanOut == coreconfig.FanOutFirst,
			Middlewares:    append(DefaultMiddlewares(cfg, opts.OnLimited), opts.Middlewares...),
		}),
		Transport:  telegram.NewTransport(b, longPoll),
		Dispatcher: dispatcher,
	}

	logger.Info(ctx, logger.CompWire, "bot.ready",
		slog.String("status", "ok"),
		slog.String("mode", cfg.Telegram.RunMode),
		slog.String("command", username),
		slog.Int("count", bus.Registry().Len()),
		slog.Duration("duration", logger.Took(start)),
	)
	return rt, nil
}

// Run builds the runtime and receives updates until ctx is done.
func Run(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := New(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := opts.Config

	if cfg.Commands.SyncMenu {
		if err := telegram.SyncMenu(ctx, rt.Bot, rt.Bus.Registry()); err != nil {
			logger.Warn(ctx, logger.CompWire, "bot.menu",
				slog.String("status", "fail"),
				slog.Any("err", err),
			)
		}
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	var runErr error
	switch cfg.Telegram.RunMode {
	case coreconfig.RunModeWebhook:
		runErr = rt.serveWebhook(ctx, cfg)
	default:
		runErr = rt.poll(ctx, cfg, opts.Offsets)
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return stopErr
}

// onError logs failures telebot reports outside a handler, such as a webhook
// listener error.
func onError(ctx context.Context) func(error, tele.Context) {
	ctx = context.WithoutCancel(ctx)
	return func(err error, _ tele.Context) {
		logger.Error(ctx, logger.CompTG, "api.error",
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
		)
	}
}

func (rt *Runtime) close() {
	if rt.Dispatcher != nil {
		rt.Dispatcher.Close()
	}
}

func (rt *Runtime) poll(ctx context.Context, cfg *coreconfig.Config, offsets router.OffsetStore) error {
	if err := rt.Bot.RemoveWebhook(); err != nil {
		logger.Warn(ctx, logger.CompTG, "webhook.delete",
			slog.String("status", "fail"),
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Any("err", err),
		)
	} else {
		logger.Info(ctx, logger.CompTG, "webhook.delete",
			slog.String("status", "ok"),
			slog.String("mode", coreconfig.RunModeLongpoll),
		)
	}
	u := router.NewUpdater(rt.Transport, rt.Router, router.UpdaterOptions{
		Limit:   cfg.Commands.BatchLimit,
		Workers: cfg.Commands.Workers,
		Store:   offsets,
	})
	return u.Run(ctx)
}

func (rt *Runtime) serveWebhook(ctx context.Context, cfg *coreconfig.Config) error {
	wh := BuildWebhook(cfg.Webhook, rt.Transport.AllowedUpdates())
	if err := rt.Bot.SetWebhook(wh); err != nil {
		return fmt.Errorf("bot: set webhook: %w", err)
	}
	wh.IgnoreSetWebhook = true

	dest := make(chan tele.Update, webhookBuffer)
	stop := make(chan struct{})
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		wh.Poll(rt.Bot, dest, stop)
	}()

	consumeCtx, stopConsume := context.WithCancel(context.WithoutCancel(ctx))
	defer stopConsume()
	consumed := make(chan int, 1)
	go func() {
		consumed <- rt.Router.Consume(consumeCtx, dest, cfg.Commands.Workers)
	}()

	logger.Info(ctx, logger.CompTG, "webhook.listen",
		slog.String("status", "ok"),
		slog.String("listen", wh.Listen),
		slog.String("public_url", cfg.Webhook.URL),
	)

	var err error
	select {
	case <-ctx.Done():
		close(stop)
		<-polled
		err = ctx.Err()
	case <-polled:
		err = errors.New("bot: webhook listener stopped")
	}
	stopConsume()
	failed := <-consumed
	logger.Info(ctx, logger.CompTG, "webhook.stop",
		slog.String("status", "ok"),
		slog.Int("failed", failed),
	)
	return err
}
