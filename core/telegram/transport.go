package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/cmdbus/core/logger"
	"github.com/m3rciful/cmdbus/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// RawAPI performs a Bot API method call. *tele.Bot satisfies it.
type RawAPI interface {
	Raw(method string, payload interface{}) ([]byte, error)
}

// Transport pulls updates with getUpdates and confirms them with an offset-only call.
type Transport struct {
	api      RawAPI
	longPoll time.Duration
	allowed  []string
}

// NewTransport wraps api. longPoll is the getUpdates timeout; 0 makes Fetch return immediately.
func NewTransport(api RawAPI, longPoll time.Duration) *Transport {
	return &Transport{
		api:      api,
		longPoll: longPoll,
		allowed:  []string{"message", "callback_query"},
	}
}

type updatesResponse struct {
	Result []tele.Update `json:"result"`
}

// Fetch returns up to limit updates starting at offset.
func (t *Transport) Fetch(ctx context.Context, offset, limit int) ([]tele.Update, error) {
	params := map[string]interface{}{
		"offset":          offset,
		"limit":           limit,
		"timeout":         int(t.longPoll / time.Second),
		"allowed_updates": t.allowed,
	}
	data, err := t.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, err
	}
	var resp updatesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("telegram: decode getUpdates: %w", err)
	}
	return resp.Result, nil
}

// Ack confirms every update below offset. The single update it may return is dropped.
func (t *Transport) Ack(ctx context.Context, offset int) error {
	_, err := t.call(ctx, "getUpdates", map[string]interface{}{
		"offset":  offset,
		"limit":   1,
		"timeout": 0,
	})
	return err
}

// AllowedUpdates lists the update kinds requested from Telegram in both delivery modes.
func (t *Transport) AllowedUpdates() []string {
	return append([]string(nil), t.allowed...)
}

// call runs method and returns early when ctx ends; the abandoned call finishes in background.
func (t *Transport) call(ctx context.Context, method string, params map[string]interface{}) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := t.api.Raw(method, params)
		done <- result{data, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			logger.Debug(ctx, logger.CompUpdates, "api.call",
				slog.String("status", "fail"),
				slog.String("method", method),
				slog.String("err", netutil.Redact(r.err)),
			)
			return nil, fmt.Errorf("telegram: %s: %w", method, r.err)
		}
		return r.data, nil
	}
}
