package callbacks

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// MaxDataLen is the Telegram limit for callback_data in bytes.
const MaxDataLen = 64

const (
	prefix = "\f"
	sep    = "|"
)

// ErrTooLong is returned by Encode when the result exceeds MaxDataLen.
var ErrTooLong = errors.New("callbacks: data exceeds 64 bytes")

// Payload is decoded callback data: the command key and its arguments.
type Payload struct {
	Unique string
	Parts  []string
}

// Encode renders unique and parts in telebot's \f<unique>|<part>|... form.
func Encode(unique string, parts ...string) (string, error) {
	unique = strings.TrimSpace(unique)
	if unique == "" {
		return "", errors.New("callbacks: empty unique")
	}
	if strings.Contains(unique, sep) {
		return "", fmt.Errorf("callbacks: unique %q contains %q", unique, sep)
	}
	data := prefix + unique
	if len(parts) > 0 {
		data += sep + strings.Join(parts, sep)
	}
	if len(data) > MaxDataLen {
		return "", ErrTooLong
	}
	return data, nil
}

// IsEncoded reports whether data uses the \f<unique>|<part>|... form.
func IsEncoded(data string) bool {
	return strings.HasPrefix(data, prefix)
}

// Decode parses callback data. Encoded data yields unique and pipe-separated parts;
// anything else is opaque and becomes Unique unchanged, without parts.
func Decode(data string) Payload {
	rest, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return Payload{Unique: data}
	}
	unique, tail, hasTail := strings.Cut(rest, sep)
	p := Payload{Unique: strings.TrimSpace(unique)}
	if hasTail {
		p.Parts = strings.Split(tail, sep)
	}
	return p
}

// FromCallback decodes cb, preferring cb.Unique when telebot already split it.
func FromCallback(cb *tele.Callback) Payload {
	if cb == nil {
		return Payload{}
	}
	p := Decode(cb.Data)
	if cb.Unique != "" && p.Unique == "" {
		p.Unique = cb.Unique
	}
	return p
}

// Part returns the i-th part or "".
func (p Payload) Part(i int) string {
	if i < 0 || i >= len(p.Parts) {
		return ""
	}
	return p.Parts[i]
}

// Text joins the parts with spaces, as if they had been typed after the command.
func (p Payload) Text() string {
	return strings.Join(p.Parts, " ")
}
