package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultMobizonURL is the Mobizon send endpoint
const DefaultMobizonURL = "https://api.mobizon.kz/service/message/sendsmsmessage"

// mobizonResponse is the gateway reply; a non-zero code is a failure
type mobizonResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
}

// MobizonSender sends messages through the Mobizon HTTP API
type MobizonSender struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewMobizonSender creates a Mobizon client
func NewMobizonSender(cfg *Config, logger *slog.Logger) *MobizonSender {
	baseURL := cfg.MobizonBaseURL
	if baseURL == "" {
		baseURL = DefaultMobizonURL
	}
	return &MobizonSender{
		apiKey:  cfg.MobizonAPIKey,
		from:    cfg.MobizonFrom,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Send posts one message and checks the gateway result code
func (s *MobizonSender) Send(ctx context.Context, phone, message string) error {
	form := url.Values{
		"apiKey":    {s.apiKey},
		"recipient": {phone},
		"text":      {message},
	}
	if s.from != "" {
		form.Set("from", s.from)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read sms response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mobizon returned status %d", resp.StatusCode)
	}

	var result mobizonResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse sms response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("mobizon returned error code %d: %s", result.Code, result.Message)
	}

	s.logger.Info("SMS sent via Mobizon", "message_id", result.Data.MessageID)
	return nil
}
