package router

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram/netutil"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"
)

// Source pulls updates and acknowledges them. telegram.Transport implements it.
type Source interface {
	Fetch(ctx context.Context, offset, limit int) ([]tele.Update, error)
	// Ack marks every update below offset as processed.
	Ack(ctx context.Context, offset int) error
}

// OffsetStore persists the next offset across restarts.
type OffsetStore interface {
	Load(ctx context.Context) (int, error)
	Save(ctx context.Context, offset int) error
}

// UpdaterOptions configures an Updater.
type UpdaterOptions struct {
	// Limit caps the batch size, 1..100. Defaults to 100.
	Limit int
	// Workers > 1 routes a batch with bounded parallelism; otherwise in arrival order.
	Workers int
	// Idle is the pause after an empty batch.
	Idle time.Duration
	// Backoff is the pause after a failed fetch unless the API asks for longer.
	Backoff time.Duration
	Store   OffsetStore
}

const ackTimeout = 10 * time.Second

// Updater drives a Router from a pull Source.
type Updater struct {
	src    Source
	router *Router
	opts   UpdaterOptions
	offset atomic.Int64
}

// NewUpdater creates an Updater starting at offset 0 or the stored offset once Run starts.
func NewUpdater(src Source, r *Router, opts UpdaterOptions) *Updater {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 3 * time.Second
	}
	return &Updater{src: src, router: r, opts: opts}
}

// Offset returns the next update id to fetch.
func (u *Updater) Offset() int { return int(u.offset.Load()) }

// SetOffset overrides the next update id to fetch.
func (u *Updater) SetOffset(offset int) { u.offset.Store(int64(offset)) }

// Poll fetches one batch, routes it and acknowledges the highest processed id + 1.
// It returns the number of routed updates. Handler failures never fail the batch.
func (u *Updater) Poll(ctx context.Context) (int, error) {
	offset := u.Offset()
	updates, err := u.src.Fetch(ctx, offset, u.opts.Limit)
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	start := time.Now()
	failed := u.routeBatch(ctx, updates)

	next := offset
	for _, upd := range updates {
		if upd.ID+1 > next {
			next = upd.ID + 1
		}
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	ackErr := u.src.Ack(actx, next)
	u.SetOffset(next)
	if u.opts.Store != nil {
		if err := u.opts.Store.Save(actx, next); err != nil {
			logger.Warn(ctx, logger.CompUpdates, "offset.save",
				slog.String("status", "fail"),
				slog.Int("offset", next),
				slog.Any("err", err),
			)
		}
	}

	logger.Info(ctx, logger.CompUpdates, "batch.done",
		slog.String("status", logger.Status(ackErr)),
		slog.Int("count", len(updates)),
		slog.Int("offset", next),
		slog.Int("failed", int(failed)),
		slog.Duration("duration", logger.Took(start)),
	)
	return len(updates), ackErr
}

func (u *Updater) routeBatch(ctx context.Context, updates []tele.Update) int32 {
	var failed atomic.Int32
	route := func(upd *tele.Update) {
		if err := u.router.Route(ctx, upd); err != nil {
			failed.Add(1)
		}
	}
	if u.opts.Workers == 1 {
		for i := range updates {
			route(&updates[i])
		}
		return failed.Load()
	}

	var g errgroup.Group
	g.SetLimit(u.opts.Workers)
	for i := range updates {
		upd := &updates[i]
		g.Go(func() error {
			route(upd)
			return nil
		})
	}
	_ = g.Wait()
	return failed.Load()
}

// Run polls until ctx is done. The stored offset, if any, is loaded first.
func (u *Updater) Run(ctx context.Context) error {
	if u.opts.Store != nil {
		offset, err := u.opts.Store.Load(ctx)
		if err != nil {
			return err
		}
		if offset > u.Offset() {
			u.SetOffset(offset)
		}
	}
	logger.Info(ctx, logger.CompUpdates, "updater.start",
		slog.String("status", "ok"),
		slog.Int("offset", u.Offset()),
		slog.Int("count", u.opts.Workers),
	)

	for ctx.Err() == nil {
		n, err := u.Poll(ctx)
		var pause time.Duration
		switch {
		case err != nil && ctx.Err() == nil:
			pause = u.opts.Backoff
			if after, ok := netutil.RetryAfter(err); ok && after > pause {
				pause = after
			}
			logger.Warn(ctx, logger.CompUpdates, "batch.fetch",
				slog.String("status", "fail"),
				slog.String("err", netutil.Redact(err)),
				slog.String("err_code", netutil.Kind(err)),
				slog.Duration("retry_in", pause),
			)
		case n == 0:
			pause = u.opts.Idle
		}
		if pause > 0 && !sleep(ctx, pause) {
			break
		}
	}
	logger.Info(ctx, logger.CompUpdates, "updater.stop",
		slog.String("status", "ok"),
		slog.Int("offset", u.Offset()),
	)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
