// Package notify delivers signal alert requests to Telegram, fanning
// out to every configured chat id and retaining the returned message
// handle so a later "update" alert can edit the message in place.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/pricepulse/internal/signal"
	"github.com/sawpanic/pricepulse/internal/store"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier implements signal.Notifier over the Telegram Bot
// API's sendMessage/editMessageText endpoints.
type TelegramNotifier struct {
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	store     store.Store
	botAPIKey string
	targetIDs []int64
}

// New builds a TelegramNotifier. store is used only for the
// message-handle KV (per spec §3's Message Handle Map), not for
// prices or signal latches.
func New(s store.Store, botAPIKey string, targetIDs []int64) *TelegramNotifier {
	return &TelegramNotifier{
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(30), 10),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "telegram",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		store:     s,
		botAPIKey: botAPIKey,
		targetIDs: targetIDs,
	}
}

var _ signal.Notifier = (*TelegramNotifier)(nil)

// Notify fans req out to every configured chat id: a new alert is
// sent and its message handle stored; an update alert is applied only
// to chats that still hold a live handle (a missing handle means the
// original alert has aged out, and the update is silently dropped).
func (n *TelegramNotifier) Notify(ctx context.Context, req signal.AlertRequest) error {
	text := formatMessage(req)
	periodSeconds := int64(req.Period.Seconds())
	direction := "down"
	if req.IsUptrend {
		direction = "up"
	}

	var lastErr error
	for _, chatID := range n.targetIDs {
		msgKey := fmt.Sprintf("%d_%s_%s_%d_%s", chatID, req.Exchange, req.Symbol, periodSeconds, direction)

		if !req.Update {
			msgID, err := n.send(ctx, chatID, text)
			if err != nil {
				log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send alert")
				lastErr = err
				continue
			}
			if msgID != 0 {
				ttl := latchTTL(req.Period)
				if err := n.store.Set(ctx, msgKey, strconv.FormatInt(msgID, 10), ttl); err != nil {
					log.Error().Err(err).Str("key", msgKey).Msg("failed to store message handle")
				}
			}
			continue
		}

		handle, ok, err := n.store.Get(ctx, msgKey)
		if err != nil {
			log.Error().Err(err).Str("key", msgKey).Msg("failed to read message handle")
			continue
		}
		if !ok {
			continue
		}
		msgID, err := strconv.ParseInt(handle, 10, 64)
		if err != nil {
			continue
		}
		if err := n.edit(ctx, chatID, msgID, text); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to update alert")
			lastErr = err
		}
	}
	return lastErr
}

// latchTTL mirrors the signal-TTL rule applied to the notifier's own
// message-handle KV (spec §4.G): look-backs shorter than five minutes
// keep the handle for one full period, longer ones for half the
// period — the same fallback the signal latch uses.
func latchTTL(period time.Duration) time.Duration {
	if period < 5*time.Minute {
		return period
	}
	return period / 2
}

type sendResponse struct {
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (n *TelegramNotifier) send(ctx context.Context, chatID int64, text string) (int64, error) {
	body := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	var resp sendResponse
	if err := n.post(ctx, "/sendMessage", body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.MessageID, nil
}

func (n *TelegramNotifier) edit(ctx context.Context, chatID, messageID int64, text string) error {
	body := map[string]interface{}{
		"chat_id":                  chatID,
		"message_id":               messageID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	return n.post(ctx, "/editMessageText", body, &sendResponse{})
}

func (n *TelegramNotifier) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := telegramAPI + "/bot" + n.botAPIKey + path

	_, err = n.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			log.Warn().Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("telegram request failed")
			return nil, fmt.Errorf("telegram returned status %d", resp.StatusCode)
		}
		if readErr != nil {
			return nil, readErr
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("decode telegram response: %w", err)
		}
		return nil, nil
	})
	return err
}

// formatMessage renders the alert template from spec §4.G.
func formatMessage(req signal.AlertRequest) string {
	periodMin := int64(req.Period.Minutes())

	icon := "▼"
	action := "Dump: -"
	minStr := formatPrice(req.MaxPrice)
	maxStr := formatPrice(req.MinPrice)
	if req.IsUptrend {
		icon = "▲"
		action = "Pump: +"
		minStr = formatPrice(req.MinPrice)
		maxStr = formatPrice(req.MaxPrice)
	}

	return fmt.Sprintf(
		"● %s − %dм − [%s](https://www.coinglass.com/tv/%s_%s)\n"+
			"%s %s%s%% (%s - %s)\n\U0001f504 Signals 24h: %d",
		req.Exchange, periodMin, req.Symbol, strings.Title(req.Exchange), req.Symbol,
		icon, action, formatPercentMagnitude(req.Percent), minStr, maxStr, req.Signals24h,
	)
}

// formatPrice renders up to 9 fractional digits, strips trailing
// zeros, and re-pads a trailing dot with a single zero.
func formatPrice(p float64) string {
	s := strconv.FormatFloat(p, 'f', 9, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func formatPercentMagnitude(pct float64) string {
	abs := pct
	if abs < 0 {
		abs = -abs
	}
	s := strconv.FormatFloat(abs, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
