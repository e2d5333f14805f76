package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTelegramAPI = "https://api.telegram.org"
	providerTimeout    = 5 * time.Second
)

// Provider sends a text message to a recipient on an external channel.
type Provider interface {
	Send(ctx context.Context, message, recipient string) error
}

type ProviderConfig struct {
	Kind          string
	WebhookURL    string
	WebhookToken  string
	TelegramToken string
	TelegramAPI   string
}

// NewProvider picks a provider by kind. Unknown kinds and providers missing
// their target fall back to logging.
func NewProvider(cfg ProviderConfig) Provider {
	switch cfg.Kind {
	case "", "stub", "log":
		return logProvider{channel: "log"}
	case "noop":
		return noopProvider{}
	case "fail":
		return failProvider{}
	case "webhook":
		if cfg.WebhookURL == "" {
			return logProvider{channel: "webhook"}
		}
		return newWebhookProvider(cfg.WebhookURL, cfg.WebhookToken)
	case "telegram":
		if cfg.TelegramToken == "" {
			return logProvider{channel: "telegram"}
		}
		return newTelegramProvider(cfg.TelegramAPI, cfg.TelegramToken)
	default:
		if strings.HasPrefix(cfg.Kind, "http://") || strings.HasPrefix(cfg.Kind, "https://") {
			return newWebhookProvider(cfg.Kind, cfg.WebhookToken)
		}
		return logProvider{channel: cfg.Kind}
	}
}

type logProvider struct {
	channel string
}

func (p logProvider) Send(ctx context.Context, message, recipient string) error {
	log.Printf("send %s to %s: %s", p.channel, recipient, message)
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, message, recipient string) error {
	return nil
}

type failProvider struct{}

func (failProvider) Send(ctx context.Context, message, recipient string) error {
	return errors.New("provider failure")
}

type webhookProvider struct {
	url    string
	token  string
	client *http.Client
}

func newWebhookProvider(url, token string) webhookProvider {
	return webhookProvider{url: url, token: token, client: &http.Client{Timeout: providerTimeout}}
}

func (p webhookProvider) Send(ctx context.Context, message, recipient string) error {
	payload := map[string]string{
		"recipient": recipient,
		"message":   message,
	}
	headers := map[string]string{}
	if p.token != "" {
		headers["Authorization"] = "Bearer " + p.token
	}
	return postJSON(ctx, p.client, p.url, payload, headers)
}

type telegramProvider struct {
	endpoint string
	client   *http.Client
}

func newTelegramProvider(api, token string) telegramProvider {
	if api == "" {
		api = defaultTelegramAPI
	}
	return telegramProvider{
		endpoint: strings.TrimRight(api, "/") + "/bot" + token + "/sendMessage",
		client:   &http.Client{Timeout: providerTimeout},
	}
}

// Send delivers message to a chat id through the Bot API.
func (p telegramProvider) Send(ctx context.Context, message, recipient string) error {
	payload := map[string]string{
		"chat_id": recipient,
		"text":    message,
	}
	return postJSON(ctx, p.client, p.endpoint, payload, nil)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("provider rejected request: status %d", resp.StatusCode)
	}
	return nil
}
