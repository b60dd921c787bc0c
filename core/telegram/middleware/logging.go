package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// recentUpdates remembers update IDs for a short time so redeliveries are logged once.
type recentUpdates struct {
	mu   sync.Mutex
	seen map[int]time.Time
	keep time.Duration
}

func (r *recentUpdates) firstSeen(updateID int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ts := range r.seen {
		if now.Sub(ts) > r.keep {
			delete(r.seen, id)
		}
	}
	if _, ok := r.seen[updateID]; ok {
		return false
	}
	r.seen[updateID] = now
	return true
}

// Logger attaches the request id and update metadata to ctx and logs one
// receipt line per update, plus a summary once routing returns.
func Logger() Middleware {
	recent := &recentUpdates{seen: make(map[int]time.Time), keep: 10 * time.Second}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, upd *tele.Update) error {
			if upd == nil {
				return next(ctx, upd)
			}
			start := time.Now()
			userID, chat := senderID(upd), chatID(upd)
			ctx = logger.WithRID(ctx, logger.BuildRID(upd.ID, chat, userID))
			ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chat)

			if recent.firstSeen(upd.ID, start) {
				attrs := []slog.Attr{
					slog.String("status", "ok"),
					slog.String("mode", UpdateKind(upd)),
				}
				switch {
				case upd.Callback != nil:
					p := callbacks.FromCallback(upd.Callback)
					attrs = append(attrs,
						slog.String("cb_key", logger.SanitizeLimit(p.Unique, 128)),
						slog.String("payload", logger.SanitizeLimit(p.Text(), 256)),
					)
				case upd.Message != nil:
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(upd.Message.Text, 256)))
				}
				logger.Debug(ctx, logger.CompTG, "update.received", attrs...)
			}

			err := next(ctx, upd)
			attrs := []slog.Attr{
				slog.String("status", logger.Status(err)),
				slog.Duration("duration", logger.Took(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
			}
			logger.Debug(ctx, logger.CompTG, "update.done", attrs...)
			return err
		}
	}
}
