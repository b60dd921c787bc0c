package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/cmdbus/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Recover turns a panic raised while routing an update into an error.
func Recover(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, upd *tele.Update) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, logger.CompRouter, "update.panic",
					slog.String("status", "fail"),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("middleware: panic while routing update: %v", r)
			}
		}()
		return next(ctx, upd)
	}
}
