package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// HTTPSender posts messages to an SMS gateway over HTTP. The http.Client
// timeout bounds the call so a hung provider never holds a worker slot
// forever.
type HTTPSender struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPSender(baseURL, apiKey string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPSender{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

type gatewayRequest struct {
	Phone         string `json:"phone"`
	Message       string `json:"message"`
	IntegrationID int    `json:"integration_id"`
}

type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

func (s *HTTPSender) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(gatewayRequest{
		Phone:         req.Phone,
		Message:       req.Content,
		IntegrationID: req.IntegrationID,
	})
	if err != nil {
		return nil, NewPermanent("failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, NewPermanent("failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(httpReq)
	if err != nil {
		// Timeouts and connection errors are all worth retrying.
		return nil, NewTransient("request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var gw gatewayResponse
		if err := json.Unmarshal(raw, &gw); err != nil {
			return nil, NewTransient("unreadable provider response", err)
		}
		return &SendResponse{MessageID: gw.MessageID, RawResponse: string(raw)}, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, NewTransient(fmt.Sprintf("provider returned %d", resp.StatusCode), nil)

	default:
		// 4xx: invalid destination, rejected content and friends.
		return nil, NewPermanent(fmt.Sprintf("provider rejected message with %d: %s", resp.StatusCode, string(raw)), nil)
	}
}

var _ Sender = (*HTTPSender)(nil)
