// Package solapi is a minimal client for the SOLAPI message API, covering
// the single send call the automation engine needs. Tokens are supplied per
// call because every tenant authenticates with its own credential.
package solapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.solapi.com"

// Message type constants as the provider names them.
const (
	TypeSMS = "SMS" // short-form text, up to 90 bytes
	TypeLMS = "LMS" // long-form text
	TypeATA = "ATA" // KakaoTalk alimtalk
)

// Message is one outbound message in the provider's wire shape.
type Message struct {
	To           string        `json:"to"`
	From         string        `json:"from"`
	Text         string        `json:"text"`
	Type         string        `json:"type"`
	KakaoOptions *KakaoOptions `json:"kakaoOptions,omitempty"`
}

// KakaoOptions carries the KakaoTalk-channel fields of a message.
// DisableSMS turns off the provider's own SMS fallback; the dispatcher does
// its own fallback so that the outcome is observable.
type KakaoOptions struct {
	PfID       string `json:"pfId,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
	DisableSMS bool   `json:"disableSms"`
}

// APIError is a non-2xx or application-level rejection from the provider.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("solapi: %s (%s, http %d)", e.Message, e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("solapi: http %d: %s", e.HTTPStatus, e.Message)
}

// Client is an HTTP client for the SOLAPI message API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint; used by tests and self-hosted
// relays.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a SOLAPI client with a 10s default request timeout.
// Per-dispatch deadlines are expected to come in through the context.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sendRequest is the body of POST /messages/v4/send.
type sendRequest struct {
	Message Message `json:"message"`
}

// sendResponse is the success body of POST /messages/v4/send.
type sendResponse struct {
	MessageID     string `json:"messageId"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

// errorResponse is the provider's error body.
type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Send posts one message using the given tenant bearer token and returns
// the provider message id. Any non-2xx response comes back as *APIError.
func (c *Client) Send(ctx context.Context, token string, msg Message) (string, error) {
	body, err := json.Marshal(sendRequest{Message: msg})
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages/v4/send", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{HTTPStatus: resp.StatusCode, Message: string(raw)}
		var errBody errorResponse
		if json.Unmarshal(raw, &errBody) == nil && errBody.ErrorCode != "" {
			apiErr.Code = errBody.ErrorCode
			apiErr.Message = errBody.ErrorMessage
		}
		return "", apiErr
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	return out.MessageID, nil
}
