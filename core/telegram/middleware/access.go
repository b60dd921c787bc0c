package middleware

import (
	"fmt"
	"log/slog"

	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram"
	"github.com/m3rciful/cmdbus/core/telegram/commands"
)

// AdminOptions configures AdminOnly.
type AdminOptions struct {
	AdminID int64
	// OnReject replies to refused users; its error is ignored.
	OnReject func(c *commands.Context) error
}

// AdminOnly refuses admin-only commands for everyone but opts.AdminID.
// With no admin configured every admin-only command is refused.
func AdminOnly(opts AdminOptions) telegram.Guard {
	return func(c *commands.Context, cmd commands.Command) error {
		if !commands.IsAdminOnly(cmd) {
			return nil
		}
		var userID int64
		if u := c.Sender(); u != nil {
			userID = u.ID
		}
		if opts.AdminID != 0 && userID == opts.AdminID {
			return nil
		}
		logger.Warn(c.Context(), logger.CompBus, "command.refused",
			slog.String("status", "skip"),
			slog.String("command", cmd.Name()),
			slog.Int64("user_id", userID),
		)
		if opts.OnReject != nil {
			_ = opts.OnReject(c)
		}
		return fmt.Errorf("%w: %s is admin-only", telegram.ErrForbidden, cmd.Name())
	}
}
