package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram/callbacks"
	"github.com/m3rciful/cmdbus/core/telegram/commands"
	"github.com/m3rciful/cmdbus/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Routes recorded in logs and in the invocation journal.
const (
	RouteExplicit = "explicit"
	RouteReply    = "reply"
	RoutePlain    = "plain"
	RouteCallback = "callback"
	RouteDirect   = "direct"
)

// DefaultMaxDepth bounds nested Trigger calls when BusOptions.MaxDepth is zero.
const DefaultMaxDepth = 8

// Guard may refuse an invocation before Init runs. Refusals should wrap ErrForbidden.
type Guard func(c *commands.Context, cmd commands.Command) error

// Invocation summarizes one finished command call.
type Invocation struct {
	UpdateID int
	ChatID   int64
	UserID   int64
	Command  string
	Route    string
	Depth    int
	Status   string
	ErrCode  string
	Duration time.Duration
	At       time.Time
}

// Journal observes finished invocations.
type Journal interface {
	Record(ctx context.Context, inv Invocation) error
}

// BusOptions configures a Bus.
type BusOptions struct {
	// Prefix marks explicit commands; "" means "/".
	Prefix string
	// BotUsername makes "/cmd@OtherBot" ignored; empty accepts any mention.
	BotUsername string
	// Timeout bounds a top-level invocation including its delegations; 0 disables it.
	Timeout  time.Duration
	MaxDepth int
	Guards   []Guard
	// Dispatcher, when set, queues replies instead of sending them inline.
	Dispatcher *sender.Dispatcher
	Journal    Journal
}

// Bus resolves commands by name or alias and runs them.
type Bus struct {
	reg    *Registry
	client Client
	opts   BusOptions
}

var _ commands.Executor = (*Bus)(nil)

// NewBus creates a Bus over reg; a nil reg gets a fresh registry.
func NewBus(reg *Registry, client Client, opts BusOptions) *Bus {
	if opts.Prefix == "" {
		opts.Prefix = "/"
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	opts.BotUsername = strings.TrimPrefix(opts.BotUsername, "@")
	if reg == nil {
		reg = NewRegistry(opts.Prefix)
	}
	return &Bus{reg: reg, client: client, opts: opts}
}

// Registry returns the underlying registry.
func (b *Bus) Registry() *Registry { return b.reg }

// Register adds commands, reporting every rejected one.
func (b *Bus) Register(cmds ...commands.Command) error {
	var errs []error
	for _, cmd := range cmds {
		if err := b.reg.Register(cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Commands returns the registered commands in registration order.
func (b *Bus) Commands() []commands.Command { return b.reg.All() }

// Resolve finds a command by name first, then by alias.
func (b *Bus) Resolve(nameOrAlias string) (commands.Command, error) {
	if cmd, ok := b.reg.Lookup(nameOrAlias); ok {
		return cmd, nil
	}
	if cmd, ok := b.reg.LookupAlias(nameOrAlias); ok {
		return cmd, nil
	}
	return nil, &CommandNotFoundError{Name: strings.TrimSpace(nameOrAlias)}
}

// Execute resolves nameOrAlias and invokes the command with args.
func (b *Bus) Execute(ctx context.Context, nameOrAlias string, args commands.Args, upd *tele.Update) error {
	cmd, err := b.Resolve(nameOrAlias)
	if err != nil {
		logger.Warn(ctx, logger.CompBus, "command.resolve",
			slog.String("status", "skip"),
			slog.String("command", logger.SanitizeLimit(nameOrAlias, 64)),
			slog.String("err_code", ErrorCode(err)),
		)
		return err
	}
	return b.Invoke(ctx, cmd, args, upd)
}

// ParseCommand splits explicit command text into the lower-cased name and the trailing text.
// ok is false when the command is addressed to another bot.
func (b *Bus) ParseCommand(text string) (name, rest string, ok bool) {
	head := strings.TrimSpace(text)
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	head = strings.TrimPrefix(head, b.opts.Prefix)
	if base, mention, found := strings.Cut(head, "@"); found {
		if b.opts.BotUsername != "" && !strings.EqualFold(mention, b.opts.BotUsername) {
			return "", "", false
		}
		head = base
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// Handle runs the command named by explicit command text or by callback data.
func (b *Bus) Handle(ctx context.Context, text string, upd *tele.Update) error {
	if upd != nil && upd.Callback != nil {
		defer b.answerCallback(ctx, upd.Callback)
		ctx = withDefaultRoute(ctx, RouteCallback)
		if !callbacks.IsEncoded(text) {
			return b.Execute(ctx, text, commands.Args{}, upd)
		}
		p := callbacks.Decode(text)
		args := commands.Args{Raw: p.Text()}
		for _, part := range p.Parts {
			args.Positional = append(args.Positional, part)
		}
		return b.Execute(ctx, strings.TrimPrefix(p.Unique, b.opts.Prefix), args, upd)
	}

	name, rest, ok := b.ParseCommand(text)
	if !ok {
		logger.Debug(ctx, logger.CompBus, "command.foreign",
			slog.String("status", "skip"),
			slog.String("payload", logger.SanitizeLimit(text, 64)),
		)
		return nil
	}
	return b.Execute(withDefaultRoute(ctx, RouteExplicit), name, commands.ParseArgs(rest), upd)
}

// TriggerCommand runs name with the update's message text as the only argument.
func (b *Bus) TriggerCommand(ctx context.Context, name string, upd *tele.Update) error {
	text := ""
	if m := commands.MessageOf(upd); m != nil {
		text = m.Text
	}
	return b.Execute(withDefaultRoute(ctx, RouteDirect), name, commands.Positional(text), upd)
}

func withDefaultRoute(ctx context.Context, route string) context.Context {
	if logger.RouteFrom(ctx) != "" {
		return ctx
	}
	return logger.WithRoute(ctx, route)
}

// Invoke runs cmd: guards, Init, argument binding, then Handle under panic recovery.
func (b *Bus) Invoke(ctx context.Context, cmd commands.Command, args commands.Args, upd *tele.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	name := NormalizeName(cmd.Name(), b.opts.Prefix)
	depth := commands.DepthFrom(ctx)
	if depth > b.opts.MaxDepth {
		logger.Warn(ctx, logger.CompBus, "command.depth",
			slog.String("status", "skip"),
			slog.String("command", name),
			slog.Int("depth", depth),
		)
		return fmt.Errorf("%w: %s at depth %d", ErrDelegationDepth, name, depth)
	}
	if depth == 0 && b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}
	ctx = withDefaultRoute(logger.WithHandler(ctx, name), RouteDirect)

	start := time.Now()
	rep := newChatReplier(b.client, commands.ChatOf(upd), b.opts.Dispatcher)
	c := commands.NewContext(ctx, upd, args, rep, b)

	for _, guard := range b.opts.Guards {
		if err := guard(c, cmd); err != nil {
			b.finish(ctx, name, depth, start, rep, upd, "skip", err)
			return err
		}
	}

	err := b.run(c, cmd, args)
	b.finish(ctx, name, depth, start, rep, upd, logger.Status(err), err)
	return err
}

func (b *Bus) run(c *commands.Context, cmd commands.Command, args commands.Args) (err error) {
	stage := StageInit
	defer func() {
		if r := recover(); r != nil {
			logger.Error(c.Context(), logger.CompBus, "command.panic",
				slog.String("status", "fail"),
				slog.String("command", cmd.Name()),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = &HandlerInvocationError{Command: cmd.Name(), Stage: stage, Panic: r}
		}
	}()

	if ini, ok := cmd.(commands.Initializer); ok {
		if err := ini.Init(c); err != nil {
			return &HandlerInvocationError{Command: cmd.Name(), Stage: stage, Err: err}
		}
	}
	stage = StageHandle
	if err := cmd.Handle(c, commands.Bind(cmd.Params(), args)); err != nil {
		if errors.Is(err, ErrDelegationDepth) {
			return err
		}
		return &HandlerInvocationError{Command: cmd.Name(), Stage: stage, Err: err}
	}
	return nil
}

func (b *Bus) finish(ctx context.Context, name string, depth int, start time.Time, rep *chatReplier, upd *tele.Update, status string, err error) {
	took := logger.Took(start)
	msgs, kb := rep.counters()
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("command", name),
		slog.Int("depth", depth),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", took),
	}
	level := slog.LevelInfo
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", ErrorCode(err)),
		)
		if status != "skip" {
			level = slog.LevelError
		}
	}
	logger.Event(ctx, logger.CompBus, level, "command.handled", attrs...)

	if b.opts.Journal == nil {
		return
	}
	inv := Invocation{
		Command:  name,
		Route:    logger.RouteFrom(ctx),
		Depth:    depth,
		Status:   status,
		ErrCode:  ErrorCode(err),
		Duration: took,
		At:       start,
	}
	if upd != nil {
		inv.UpdateID = upd.ID
	}
	if chat := commands.ChatOf(upd); chat != nil {
		inv.ChatID = chat.ID
	}
	if user := commands.SenderOf(upd); user != nil {
		inv.UserID = user.ID
	}
	if jerr := b.opts.Journal.Record(context.WithoutCancel(ctx), inv); jerr != nil {
		logger.Warn(ctx, logger.CompBus, "journal.record",
			slog.String("status", "fail"),
			slog.Any("err", jerr),
		)
	}
}

func (b *Bus) answerCallback(ctx context.Context, cb *tele.Callback) {
	if b.client == nil {
		return
	}
	if err := b.client.Respond(cb); err != nil {
		logger.Debug(ctx, logger.CompBus, "callback.respond",
			slog.String("status", "fail"),
			slog.Any("err", err),
		)
	}
}
