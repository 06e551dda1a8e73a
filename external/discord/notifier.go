// Package discord posts pipeline status messages to Discord webhooks. Sends
// are fire and forget: a failed notification is logged and never fails the
// calling run.
package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/lapra5/football-app/internal/platform/logging"
	"github.com/valyala/bytebufferpool"
)

var errDiscordTransient = crerr.New("discord transient failure")

// NotifierConfig carries one webhook URL per stage channel. Empty URLs simply
// disable that channel.
type NotifierConfig struct {
	ScheduleWebhookURL string
	RefreshWebhookURL  string
	AlertWebhookURL    string
	Timeout            time.Duration
	Retries            int
}

type Notifier struct {
	client   *http.Client
	webhooks map[string]string
	retries  int
	logger   *logging.Logger
}

// Channel names accepted by Send.
const (
	ChannelSchedule = "schedule"
	ChannelRefresh  = "refresh"
	ChannelAlert    = "alert"
)

func NewNotifier(cfg NotifierConfig, logger *logging.Logger) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Notifier{
		client:  &http.Client{Timeout: timeout},
		retries: maxInt(cfg.Retries, 0),
		logger:  logger,
		webhooks: map[string]string{
			ChannelSchedule: strings.TrimSpace(cfg.ScheduleWebhookURL),
			ChannelRefresh:  strings.TrimSpace(cfg.RefreshWebhookURL),
			ChannelAlert:    strings.TrimSpace(cfg.AlertWebhookURL),
		},
	}
}

// Send posts a message to the channel's webhook. A missing webhook URL skips
// the send silently; any delivery failure is returned so the caller can log
// it, but callers never propagate it further.
func (n *Notifier) Send(ctx context.Context, channel, message string) error {
	webhookURL, ok := n.webhooks[channel]
	if !ok {
		return crerr.Newf("unknown notification channel %q", channel)
	}
	if webhookURL == "" {
		n.logger.DebugContext(ctx, "discord webhook not configured, skipping", "channel", channel)
		return nil
	}
	if _, err := validateWebhookURL(webhookURL); err != nil {
		return crerr.Wrap(err, "invalid webhook url")
	}

	body, err := buildContentPayload(message)
	if err != nil {
		return crerr.Wrap(err, "marshal webhook payload")
	}

	var lastErr error
	for attempt := 0; attempt <= n.retries; attempt++ {
		lastErr = n.post(ctx, webhookURL, body)
		if lastErr == nil {
			return nil
		}
		if !crerr.Is(lastErr, errDiscordTransient) || attempt == n.retries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (n *Notifier) post(ctx context.Context, webhookURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, strings.NewReader(string(body)))
	if err != nil {
		return crerr.Wrap(err, "create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post webhook: %v", errDiscordTransient, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isRetryableStatus(resp.StatusCode) {
			return fmt.Errorf("%w: webhook status=%d body=%s", errDiscordTransient, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return fmt.Errorf("webhook status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// buildContentPayload assembles the {"content": ...} body Discord expects,
// truncated to the 2000 character message limit.
func buildContentPayload(message string) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	message = strings.TrimSpace(message)
	if len(message) > 2000 {
		message = message[:1990] + "...(cut)"
	}
	_, _ = buf.WriteString(message)

	return sonic.Marshal(map[string]string{"content": buf.String()})
}

func validateWebhookURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q", raw, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", raw)
	}
	return raw, nil
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
