// internal/sms/sender.go
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Sender is the outbound SMS provider boundary: E.164 phone in, UTF-8 body,
// synchronous accept/reject. One call per recipient per dispatch invocation;
// retries are the provider's concern.
type Sender interface {
	Send(ctx context.Context, to, body string) (providerID string, err error)
}

// HTTPSender posts {to, body} JSON to the provider's send endpoint.
type HTTPSender struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPSender(baseURL, apiKey string) *HTTPSender {
	return &HTTPSender{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPSender) Send(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(map[string]string{"to": to, "body": body})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("provider response: %w", err)
	}
	return out.MessageID, nil
}

// MockSender simulates a provider for local runs: FailRate of calls fail.
type MockSender struct {
	FailRate float64
}

func (s *MockSender) Send(ctx context.Context, to, body string) (string, error) {
	if rand.Float64() < s.FailRate {
		return "", fmt.Errorf("mock sending failed")
	}
	return uuid.NewString(), nil
}

var (
	_ Sender = (*HTTPSender)(nil)
	_ Sender = (*MockSender)(nil)
)
