// Package crm pushes qualified leads to an external CRM over HTTP.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/mohammad-safakhou/chimera/config"
	"github.com/mohammad-safakhou/chimera/internal/state"
)

// Pusher delivers a lead record to the CRM.
type Pusher interface {
	Push(ctx context.Context, payload state.CRMPayload) error
}

// StatusError is a non-2xx CRM response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm: status %d: %s", e.Code, e.Body)
}

// Client posts JSON lead records with bounded retries and exponential backoff.
// With no endpoint configured it only logs the payload it would have sent.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	retries  int
	backoff  time.Duration
	logger   *log.Logger
}

// New builds a client from configuration.
func New(cfg config.CRMConfig, logger *log.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[CRM] ", log.LstdFlags)
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		retries:  retries,
		backoff:  300 * time.Millisecond,
		logger:   logger,
	}
}

// Enabled reports whether a real endpoint is configured.
func (c *Client) Enabled() bool { return c.endpoint != "" }

// Push sends payload to the CRM. The API key travels in a bearer header.
func (c *Client) Push(ctx context.Context, payload state.CRMPayload) error {
	if !c.Enabled() {
		c.logger.Printf("no endpoint configured, would create contact %s (score %d, %s)",
			state.MaskEmail(payload.Email), payload.LeadScore, payload.Qualification)
		return nil
	}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	return c.doJSON(ctx, http.MethodPost, c.endpoint, headers, payload, nil)
}

func (c *Client) doJSON(ctx context.Context, method, url string, headers map[string]string, body, out any) error {
	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		raw = b
	}

	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		var reader io.Reader
		if raw != nil {
			reader = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		lastErr = c.roundTrip(req, out)
		if lastErr == nil {
			return nil
		}
		var se *StatusError
		if errors.As(lastErr, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
			return lastErr
		}
		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
