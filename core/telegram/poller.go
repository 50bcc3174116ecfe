package telegram

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"

	defaultLongPollTimeout = 10 * time.Second
)

// AllowedUpdates limits Telegram deliveries to the update kinds the router handles.
var AllowedUpdates = []string{"message", "callback_query"}

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen      string
	Port        int
	URL         string
	SecretToken string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
	// DropPending discards updates queued while the bot was offline (webhook only).
	DropPending bool
}

// BuildPoller returns a webhook or long poller for opts.RunMode.
// An unknown mode falls back to long polling.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), RunModeWebhook) {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(opts.Webhook.Listen, strconv.Itoa(opts.Webhook.Port)),
			SecretToken:    opts.Webhook.SecretToken,
			AllowedUpdates: AllowedUpdates,
			DropUpdates:    opts.DropPending,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}

	timeout := defaultLongPollTimeout
	if opts.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(opts.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout, AllowedUpdates: AllowedUpdates}
}

// describePoller returns the mode name and a short target description for logs.
func describePoller(p tele.Poller) (string, string) {
	switch v := p.(type) {
	case *tele.Webhook:
		return RunModeWebhook, v.Listen
	case *tele.LongPoller:
		return RunModeLongpoll, fmt.Sprintf("timeout=%s", v.Timeout)
	default:
		return "custom", fmt.Sprintf("%T", p)
	}
}
