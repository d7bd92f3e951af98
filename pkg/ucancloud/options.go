package ucancloud

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type OptionFunc func(*Client) error

func WithBaseURL(baseURL string) OptionFunc {
	return func(client *Client) error {
		baseURL = strings.TrimRight(baseURL, "/")
		if baseURL == "" {
			return fmt.Errorf("invalid or missing base URL")
		}
		client.baseURL = baseURL
		return nil
	}
}

// WithToken restores a previously persisted session token. An empty token is a noop.
func WithToken(token string) OptionFunc {
	return func(client *Client) error {
		client.token = token
		return nil
	}
}

func WithTimeout(timeout time.Duration) OptionFunc {
	return func(client *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid request timeout: %v", timeout)
		}
		client.timeout = timeout
		return nil
	}
}

func WithHTTPClient(httpClient *http.Client) OptionFunc {
	return func(client *Client) error {
		client.httpClient = httpClient
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(client *Client) error {
		client.logger = logger
		return nil
	}
}

// WithClock overrides the time source used for alarm windows.
func WithClock(now func() time.Time) OptionFunc {
	return func(client *Client) error {
		client.now = now
		return nil
	}
}
