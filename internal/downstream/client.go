// Package downstream holds the HTTP clients for the inventory-reservation,
// payment and notification-delivery services.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxBody bounds how much of a response body is kept for logs and records.
const maxBody = 4 << 10

// StatusError is returned when a service answers with a non-2xx status.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// Options configures every client.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

type caller struct {
	service string
	baseURL string
	headers map[string]string
	client  *http.Client
	log     *zap.Logger
}

func newCaller(service, baseURL string, opts Options) caller {
	return caller{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  opts.httpClient(),
		log:     opts.logger(),
	}
}

// postJSON sends in as JSON to baseURL+path. A non-2xx answer is a
// *StatusError. The raw body is returned on success.
func (c caller) postJSON(ctx context.Context, path string, in interface{}) (int, []byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal %s request: %w", c.service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("downstream call failed", zap.String("service", c.service), zap.String("path", path), zap.Error(err))
		return 0, nil, fmt.Errorf("%s request: %w", c.service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s response: %w", c.service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, raw, &StatusError{Service: c.service, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp.StatusCode, raw, nil
}
