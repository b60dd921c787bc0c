package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"timeout", fmt.Errorf("send: %w", timeoutErr{}), true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"flood", tele.FloodError{RetryAfter: 3}, true},
		{"5xx", &tele.Error{Code: 502, Description: "bad gateway"}, true},
		{"4xx", &tele.Error{Code: 400, Description: "bad request"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	d, ok := RetryAfter(tele.FloodError{RetryAfter: 4})
	if !ok || d != 4*time.Second {
		t.Fatalf("RetryAfter = %v, %v", d, ok)
	}
	if _, ok := RetryAfter(errors.New("x")); ok {
		t.Fatalf("plain error should not carry retry-after")
	}
}

func TestKindAndRedact(t *testing.T) {
	if got := Kind(&tele.Error{Code: 403}); got != "http_4xx" {
		t.Fatalf("Kind = %s", got)
	}
	if got := Kind(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("Kind = %s", got)
	}
	msg := Redact(errors.New(`Post "https://api.telegram.org/bot123:AA-b_c/sendMessage": EOF`))
	if msg != `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF` {
		t.Fatalf("Redact = %s", msg)
	}
}
