/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"crowdfund-ledger-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Sender delivers one notification to a user. Delivery is best effort; the
// dispatcher retries failures.
type Sender interface {
	Send(ctx context.Context, userId, templateId string, payload json.RawMessage) error
}

// LogSender writes notifications to the structured log. Used when no
// webhook is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, userId, templateId string, payload json.RawMessage) error {
	zap.L().Info("Notification",
		zap.String("user_id", userId),
		zap.String("template_id", templateId),
		zap.ByteString("payload", payload))
	return nil
}

// WebhookSender posts notifications as JSON to a single endpoint.
type WebhookSender struct {
	url    string
	client http.Client
}

type webhookBody struct {
	UserId     string          `json:"user_id"`
	TemplateId string          `json:"template_id"`
	Payload    json.RawMessage `json:"payload"`
}

func NewWebhookSender(cfg models.NotifyConfig) (*WebhookSender, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook url cannot be empty")
	}
	client, err := createCustomHttpClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}
	return &WebhookSender{url: cfg.WebhookURL, client: client}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

func (s *WebhookSender) Send(ctx context.Context, userId, templateId string, payload json.RawMessage) error {
	body, err := json.Marshal(webhookBody{UserId: userId, TemplateId: templateId, Payload: payload})
	if err != nil {
		return fmt.Errorf("unable to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
