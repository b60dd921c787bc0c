package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram"
	"github.com/m3rciful/cmdbus/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func message(id int, userID int64, text string) *tele.Update {
	return &tele.Update{ID: id, Message: &tele.Message{
		Text:   text,
		Chat:   &tele.Chat{ID: 100},
		Sender: &tele.User{ID: userID},
	}}
}

func TestChainOrder(t *testing.T) {
	var trace []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, upd *tele.Update) error {
				trace = append(trace, name)
				return next(ctx, upd)
			}
		}
	}
	h := Chain(func(context.Context, *tele.Update) error {
		trace = append(trace, "handler")
		return nil
	}, mark("a"), nil, mark("b"))

	if err := h(context.Background(), message(1, 7, "x")); err != nil {
		t.Fatalf("chain: %v", err)
	}
	if got := strings.Join(trace, ","); got != "a,b,handler" {
		t.Fatalf("trace = %s", got)
	}
}

func TestRecover(t *testing.T) {
	h := Recover(func(context.Context, *tele.Update) error { panic("boom") })
	err := h(context.Background(), message(1, 7, "x"))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected panic error, got %v", err)
	}
}

func TestLoggerSetsContext(t *testing.T) {
	var rid string
	var chat int64
	h := Logger()(func(ctx context.Context, _ *tele.Update) error {
		rid = logger.RIDFrom(ctx)
		chat = logger.ChatIDFrom(ctx)
		return nil
	})
	if err := h(context.Background(), message(35, 7, "hi")); err != nil {
		t.Fatalf("logger: %v", err)
	}
	if rid != logger.BuildRID(35, 100, 7) || chat != 100 {
		t.Fatalf("rid = %q chat = %d", rid, chat)
	}
}

func TestRecentUpdates(t *testing.T) {
	r := &recentUpdates{seen: make(map[int]time.Time), keep: time.Second}
	now := time.Now()
	if !r.firstSeen(1, now) || r.firstSeen(1, now) {
		t.Fatalf("second sighting should be suppressed")
	}
	if !r.firstSeen(1, now.Add(2*time.Second)) {
		t.Fatalf("expired entry should be forgotten")
	}
}

func TestRateLimit(t *testing.T) {
	limited := 0
	mw := RateLimit(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  []string{"Callback"},
		OnLimited: func(context.Context, *tele.Update) error {
			limited++
			return nil
		},
	})
	calls := 0
	h := Chain(func(context.Context, *tele.Update) error {
		calls++
		return nil
	}, mw)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := h(ctx, message(i, 7, "x")); err != nil {
			t.Fatalf("route: %v", err)
		}
	}
	_ = h(ctx, message(10, 8, "x"))
	cb := &tele.Update{ID: 11, Callback: &tele.Callback{Sender: &tele.User{ID: 7}}}
	_ = h(ctx, cb)

	if calls != 3 || limited != 2 {
		t.Fatalf("calls = %d limited = %d", calls, limited)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	if RateLimit(RateLimitOptions{}) != nil {
		t.Fatalf("zero interval should disable the middleware")
	}
}

func TestAdminOnly(t *testing.T) {
	rejected := 0
	guard := AdminOnly(AdminOptions{AdminID: 1, OnReject: func(*commands.Context) error {
		rejected++
		return nil
	}})
	admin := commands.New(commands.NewBase("ban", "").AsAdminOnly(), func(*commands.Context, commands.Bound) error { return nil })
	open := commands.New(commands.NewBase("help", ""), func(*commands.Context, commands.Bound) error { return nil })

	ctxFor := func(userID int64) *commands.Context {
		return commands.NewContext(context.Background(), message(1, userID, "/ban"), commands.Args{}, nil, nil)
	}
	if err := guard(ctxFor(1), admin); err != nil {
		t.Fatalf("admin refused: %v", err)
	}
	if err := guard(ctxFor(2), open); err != nil {
		t.Fatalf("open command refused: %v", err)
	}
	if err := guard(ctxFor(2), admin); !errors.Is(err, telegram.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if rejected != 1 {
		t.Fatalf("rejected = %d", rejected)
	}
}
