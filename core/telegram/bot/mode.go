package bot

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/cmdbus/core/config"
	"github.com/m3rciful/cmdbus/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPoll = 10 * time.Second

// LongPollTimeout returns the configured getUpdates timeout or the default.
func LongPollTimeout(cfg *coreconfig.Config) time.Duration {
	if cfg == nil || cfg.Telegram.LongPollTimeoutSeconds <= 0 {
		return defaultLongPoll
	}
	return time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
}

// BuildWebhook returns the telebot webhook poller for cfg. Telebot registers the
// public URL with setWebhook and rejects requests without the secret token.
func BuildWebhook(cfg coreconfig.WebhookConfig, allowed []string) *tele.Webhook {
	return &tele.Webhook{
		Listen:         fmt.Sprintf("%s:%d", strings.TrimSpace(cfg.Listen), cfg.Port),
		SecretToken:    cfg.SecretToken,
		AllowedUpdates: allowed,
		Endpoint:       &tele.WebhookEndpoint{PublicURL: strings.TrimSpace(cfg.URL)},
	}
}

// DefaultMiddlewares builds the shared update chain: recover, logging, then the
// per-user rate limit when configured.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited middleware.HandlerFunc) []middleware.Middleware {
	mws := []middleware.Middleware{middleware.Recover, middleware.Logger()}
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return mws
	}
	return append(mws, middleware.RateLimit(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Burst:     cfg.RateLimit.Burst,
		Exclude:   cfg.RateLimit.ExcludeUpdates,
		OnLimited: onLimited,
	}))
}
