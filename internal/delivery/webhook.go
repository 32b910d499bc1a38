package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"guest-messaging/internal/common/errors"
	"guest-messaging/internal/common/logging"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookConfig configures the HTTP deliverer.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// WebhookDeliverer POSTs messages as JSON to a messaging gateway.
type WebhookDeliverer struct {
	config *WebhookConfig
	client *http.Client
	logger logging.Logger
}

// NewWebhookDeliverer builds an HTTP deliverer for the gateway URL.
func NewWebhookDeliverer(config *WebhookConfig, logger logging.Logger) (*WebhookDeliverer, error) {
	if config == nil || config.URL == "" {
		return nil, errors.ConfigError("webhook deliverer requires a URL")
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultWebhookTimeout
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &WebhookDeliverer{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

func (d *WebhookDeliverer) Name() string { return "webhook" }

func (d *WebhookDeliverer) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.InternalError("failed to serialize message", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(body))
	if err != nil {
		return errors.InternalError("failed to build delivery request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range d.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.DeliveryError("webhook delivery failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.DeliveryError(
			fmt.Sprintf("webhook gateway returned status %d", resp.StatusCode), nil)
	}

	d.logger.Info("message delivered",
		logging.String("channel", "webhook"),
		logging.String("trigger_id", msg.TriggerID),
		logging.String("guest_id", msg.GuestID))
	return nil
}

func (d *WebhookDeliverer) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
