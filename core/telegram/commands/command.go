package commands

import (
	"strings"
)

// Command is a named handler unit resolved by the bus and the update router.
type Command interface {
	Name() string
	Aliases() []string
	ReplyTrigger() string
	Description() string
	Params() []Param
	Handle(c *Context, args Bound) error
}

// Initializer is implemented by commands that need a hook before argument binding.
type Initializer interface {
	Init(c *Context) error
}

// Visibility controls menu listing and access for a command.
type Visibility interface {
	Hidden() bool
	AdminOnly() bool
}

// Base carries command identity. Embed it and implement Handle.
type Base struct {
	name         string
	description  string
	replyTrigger string
	aliases      []string
	params       []Param
	hidden       bool
	adminOnly    bool
}

// NewBase returns identity for a command with the given name and description.
func NewBase(name, description string) Base {
	return Base{name: name, description: description}
}

// Name returns the unique command key.
func (b Base) Name() string { return b.name }

// Description returns menu text for the command.
func (b Base) Description() string { return b.description }

// Aliases returns plain-text strings that also trigger the command.
func (b Base) Aliases() []string { return b.aliases }

// ReplyTrigger returns the trimmed text a replied-to message must carry.
func (b Base) ReplyTrigger() string { return strings.TrimSpace(b.replyTrigger) }

// Params returns the declared parameter schema of Handle.
func (b Base) Params() []Param { return b.params }

// Hidden reports whether the command is left out of the command menu.
func (b Base) Hidden() bool { return b.hidden }

// AdminOnly reports whether only the configured admin may run the command.
func (b Base) AdminOnly() bool { return b.adminOnly }

// WithName returns a copy with the name replaced.
func (b Base) WithName(name string) Base {
	b.name = name
	return b
}

// WithDescription returns a copy with the description replaced.
func (b Base) WithDescription(description string) Base {
	b.description = description
	return b
}

// WithAliases returns a copy with the aliases appended.
func (b Base) WithAliases(aliases ...string) Base {
	b.aliases = append(append([]string(nil), b.aliases...), aliases...)
	return b
}

// WithReplyTrigger returns a copy that fires on replies to messages with the given text.
func (b Base) WithReplyTrigger(trigger string) Base {
	b.replyTrigger = strings.TrimSpace(trigger)
	return b
}

// WithParams returns a copy with the parameter schema replaced.
func (b Base) WithParams(params ...Param) Base {
	b.params = append([]Param(nil), params...)
	return b
}

// AsHidden returns a copy excluded from the command menu.
func (b Base) AsHidden() Base {
	b.hidden = true
	return b
}

// AsAdminOnly returns a copy restricted to the admin user.
func (b Base) AsAdminOnly() Base {
	b.adminOnly = true
	return b
}

// HandlerFunc is the Handle signature as a plain function.
type HandlerFunc func(c *Context, args Bound) error

type funcCommand struct {
	Base
	fn HandlerFunc
}

func (f funcCommand) Handle(c *Context, args Bound) error {
	if f.fn == nil {
		return nil
	}
	return f.fn(c, args)
}

// New builds a Command from identity and a handler function.
func New(base Base, fn HandlerFunc) Command {
	return funcCommand{Base: base, fn: fn}
}

// HasAlias reports whether text matches one of the command aliases exactly.
func HasAlias(cmd Command, text string) bool {
	if cmd == nil {
		return false
	}
	for _, alias := range cmd.Aliases() {
		if alias == text {
			return true
		}
	}
	return false
}

// IsHidden reports the Visibility flags, treating commands without them as visible.
func IsHidden(cmd Command) bool {
	if v, ok := cmd.(Visibility); ok {
		return v.Hidden()
	}
	return false
}

// IsAdminOnly reports whether cmd is restricted to the admin user.
func IsAdminOnly(cmd Command) bool {
	if v, ok := cmd.(Visibility); ok {
		return v.AdminOnly()
	}
	return false
}
