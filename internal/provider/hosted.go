package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// HostedClient implements Client against the provider's REST API. Session
// creation runs behind a circuit breaker so a provider outage fails fast
// instead of tying up checkout requests.
type HostedClient struct {
	baseURL       string
	apiKey        string
	webhookSecret []byte
	httpClient    *http.Client
	breaker       *gobreaker.CircuitBreaker[*Session]
	now           func() time.Time
}

func NewHostedClient(baseURL, apiKey, webhookSecret string) *HostedClient {
	breaker := gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
		Name:    "payment-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &HostedClient{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: []byte(webhookSecret),
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		breaker:       breaker,
		now:           time.Now,
	}
}

func (c *HostedClient) CreateSession(ctx context.Context, spec *SessionSpec) (*Session, error) {
	session, err := c.breaker.Execute(func() (*Session, error) {
		return c.postSession(ctx, spec)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("circuit open: %w", ErrUnavailable)
	}
	return session, err
}

func (c *HostedClient) postSession(ctx context.Context, spec *SessionSpec) (*Session, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal session spec: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read session response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("provider returned %d: %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("provider returned %d (%s): %w",
			resp.StatusCode, truncate(respBody, 200), ErrSessionRejected)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("provider response missing id or url: %w", ErrSessionRejected)
	}
	return &session, nil
}

// eventEnvelope mirrors the provider's webhook payload shape.
type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (c *HostedClient) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	if err := verifySignature(c.webhookSecret, payload, signatureHeader, c.now()); err != nil {
		return nil, err
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("unparsable event payload: %w", ErrInvalidSignature)
	}
	if envelope.ID == "" || envelope.Type == "" {
		return nil, fmt.Errorf("event missing id or type: %w", ErrInvalidSignature)
	}

	return &Event{
		ID:        envelope.ID,
		Type:      envelope.Type,
		SessionID: envelope.Data.Object.ID,
		Metadata:  envelope.Data.Object.Metadata,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
