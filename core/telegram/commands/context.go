package commands

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Executor runs commands by name or alias. The bus implements it.
type Executor interface {
	Execute(ctx context.Context, nameOrAlias string, args Args, upd *tele.Update) error
}

type depthKey struct{}

// WithDepth records the delegation depth of the current invocation.
func WithDepth(ctx context.Context, depth int) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, depthKey{}, depth)
}

// DepthFrom returns the delegation depth stored in ctx, 0 for top-level calls.
func DepthFrom(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// Context is built once per invocation and carries the caller and the update.
type Context struct {
	ctx    context.Context
	update *tele.Update
	args   Args
	reply  Replier
	exec   Executor
	values map[string]any
}

// NewContext assembles an invocation context.
func NewContext(ctx context.Context, upd *tele.Update, args Args, reply Replier, exec Executor) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{ctx: ctx, update: upd, args: args, reply: reply, exec: exec}
}

// Context returns the invocation context; it carries the deadline of the call.
func (c *Context) Context() context.Context { return c.ctx }

// Update returns the inbound update that caused the invocation.
func (c *Context) Update() *tele.Update { return c.update }

// Args returns the raw arguments given to the invocation.
func (c *Context) Args() Args { return c.args }

// Reply returns the outbound capability bound to the current chat.
func (c *Context) Reply() Replier { return c.reply }

// Depth returns how many delegations led to this invocation.
func (c *Context) Depth() int { return DepthFrom(c.ctx) }

// Set stores a value for the lifetime of the invocation, typically from Init.
func (c *Context) Set(key string, v any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = v
}

// Get returns a value stored with Set.
func (c *Context) Get(key string) any {
	return c.values[key]
}

// Message returns the message carried by the update, including the one under a callback.
func (c *Context) Message() *tele.Message {
	return MessageOf(c.update)
}

// Text returns the trimmed text of the update message.
func (c *Context) Text() string {
	if m := c.Message(); m != nil {
		return strings.TrimSpace(m.Text)
	}
	return ""
}

// Sender returns the user who produced the update.
func (c *Context) Sender() *tele.User {
	return SenderOf(c.update)
}

// Trigger runs another command with the current arguments and update.
// Values passed in args replace the current arguments positionally.
func (c *Context) Trigger(name string, args ...any) error {
	next := c.args
	if len(args) > 0 {
		next = Positional(args...)
	}
	return c.TriggerWith(name, next)
}

// TriggerWith runs another command with an explicit argument set.
func (c *Context) TriggerWith(name string, args Args) error {
	if c.exec == nil {
		return errNoExecutor
	}
	return c.exec.Execute(WithDepth(c.ctx, c.Depth()+1), name, args, c.update)
}

// MessageOf returns the message carried by upd, falling back to the callback message.
func MessageOf(upd *tele.Update) *tele.Message {
	if upd == nil {
		return nil
	}
	if upd.Message != nil {
		return upd.Message
	}
	if upd.Callback != nil {
		return upd.Callback.Message
	}
	return nil
}

// SenderOf returns the user behind upd, if any.
func SenderOf(upd *tele.Update) *tele.User {
	if upd == nil {
		return nil
	}
	if upd.Callback != nil && upd.Callback.Sender != nil {
		return upd.Callback.Sender
	}
	if upd.Message != nil {
		return upd.Message.Sender
	}
	return nil
}

// ChatOf returns the chat of upd, if any.
func ChatOf(upd *tele.Update) *tele.Chat {
	if m := MessageOf(upd); m != nil {
		return m.Chat
	}
	return nil
}
