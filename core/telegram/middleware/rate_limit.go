package middleware

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/cmdbus/core/logger"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	// Interval is the minimum spacing between updates from one user.
	Interval time.Duration
	// Burst allows short bursts above the interval; values below 1 mean 1.
	Burst int
	// Exclude lists update kinds (see UpdateKind) that bypass the limit.
	Exclude []string
	// OnLimited is called for dropped updates, e.g. to send a notice.
	OnLimited HandlerFunc
}

// RateLimit drops updates from users that exceed the configured rate.
// A zero Interval disables it.
func RateLimit(opts RateLimitOptions) Middleware {
	if opts.Interval <= 0 {
		return nil
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, kind := range opts.Exclude {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	var (
		mu       sync.Mutex
		limiters = make(map[int64]*rate.Limiter)
	)
	limiterFor := func(userID int64) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[userID]
		if !ok {
			l = rate.NewLimiter(rate.Every(opts.Interval), opts.Burst)
			limiters[userID] = l
		}
		return l
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, upd *tele.Update) error {
			userID := senderID(upd)
			if userID == 0 {
				return next(ctx, upd)
			}
			if _, skip := exclude[UpdateKind(upd)]; skip {
				return next(ctx, upd)
			}
			if limiterFor(userID).Allow() {
				return next(ctx, upd)
			}
			logger.Warn(ctx, logger.CompTG, "rate.limited",
				slog.String("status", "skip"),
				slog.Int64("user_id", userID),
				slog.String("mode", UpdateKind(upd)),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(ctx, upd)
			}
			return nil
		}
	}
}
