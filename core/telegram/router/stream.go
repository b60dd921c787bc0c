package router

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/cmdbus/core/logger"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"
)

// Consume routes updates pushed on updates and returns the number whose routing failed.
// It stops when updates is closed or ctx is done; in the latter case updates already
// buffered are still routed. Routing runs under ctx without its cancellation, so
// an update taken off the channel always completes. workers > 1 routes with bounded
// parallelism; otherwise in arrival order.
func (r *Router) Consume(ctx context.Context, updates <-chan tele.Update, workers int) int {
	if workers < 1 {
		workers = 1
	}
	routeCtx := context.WithoutCancel(ctx)
	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(workers)
	route := func(upd tele.Update) {
		g.Go(func() error {
			if err := r.Route(routeCtx, &upd); err != nil {
				failed.Add(1)
				logger.Debug(routeCtx, logger.CompUpdates, "webhook.routed",
					slog.String("status", "fail"),
					slog.Int("update_id", upd.ID),
					slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				)
			}
			return nil
		})
	}

loop:
	for {
		select {
		case upd, ok := <-updates:
			if !ok {
				break loop
			}
			route(upd)
		case <-ctx.Done():
			for drained := false; !drained; {
				select {
				case upd, ok := <-updates:
					if !ok {
						drained = true
						continue
					}
					route(upd)
				default:
					drained = true
				}
			}
			break loop
		}
	}
	_ = g.Wait()
	return int(failed.Load())
}
