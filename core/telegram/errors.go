package telegram

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrDelegationDepth is returned when commands trigger each other deeper than BusOptions.MaxDepth.
	ErrDelegationDepth = errors.New("telegram: delegation depth exceeded")
	// ErrForbidden is returned when a guard refuses an invocation.
	ErrForbidden = errors.New("telegram: command forbidden")
)

// CommandNotFoundError reports that no command has the given name or alias.
type CommandNotFoundError struct {
	Name string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("telegram: command %q not found", e.Name)
}

// Code returns the log error code.
func (e *CommandNotFoundError) Code() string { return "COMMAND_NOT_FOUND" }

// DuplicateCommandError reports a second registration under an existing name.
type DuplicateCommandError struct {
	Name string
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("telegram: command %q already registered", e.Name)
}

// Code returns the log error code.
func (e *DuplicateCommandError) Code() string { return "DUPLICATE_COMMAND" }

// Invocation stages reported by HandlerInvocationError.
const (
	StageInit   = "init"
	StageHandle = "handle"
)

// HandlerInvocationError wraps a failure or panic raised while running a command.
type HandlerInvocationError struct {
	Command string
	Stage   string
	Err     error
	// Panic holds the recovered value when the handler panicked.
	Panic any
}

func (e *HandlerInvocationError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("telegram: command %q panicked in %s: %v", e.Command, e.Stage, e.Panic)
	}
	return fmt.Sprintf("telegram: command %q failed in %s: %v", e.Command, e.Stage, e.Err)
}

func (e *HandlerInvocationError) Unwrap() error { return e.Err }

// Code returns the log error code.
func (e *HandlerInvocationError) Code() string {
	switch {
	case e.Panic != nil:
		return "HANDLER_PANIC"
	case errors.Is(e.Err, context.DeadlineExceeded):
		return "HANDLER_TIMEOUT"
	default:
		return "HANDLER_FAILED"
	}
}

// ErrorCode derives a stable upper-case code for err, used as err_code in logs.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	switch {
	case errors.Is(err, ErrDelegationDepth):
		return "DELEGATION_DEPTH"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
