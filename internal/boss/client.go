package boss

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bossline/internal/domain"
	"bossline/internal/transport"
)

// Client is a minimal Boss HTTP API client. It speaks the fixed
// /owners and /ask contract and performs no schema validation beyond
// decoding: the backend owns those shapes.
type Client struct {
	APIBase   string
	Transport transport.Func
	Now       func() time.Time
}

// New creates a client with sane defaults.
func New(apiBase string) *Client {
	return &Client{
		APIBase:   apiBase,
		Transport: transport.HTTP(&http.Client{Timeout: 30 * time.Second}),
		Now:       time.Now,
	}
}

// RequestError wraps non-2xx responses. The ask path fills Body with the
// backend's diagnostic text; the owners path carries only status code and
// status text.
type RequestError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("request failed: status=%d %s", e.Status, e.StatusText)
}

// FetchOwners lists the owner agents registered with the boss. A response
// without an owners field is not an error: the list defaults to empty.
func (c *Client) FetchOwners(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/owners?ts=%d", c.base(), c.now().UnixMilli())
	resp, err := c.call(ctx, transport.Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, fmt.Errorf("owners request: %w", err)
	}
	if !resp.OK() {
		return nil, &RequestError{Status: resp.Status, StatusText: resp.StatusText}
	}
	var body struct {
		Owners []string `json:"owners"`
	}
	if err := resp.JSON(&body); err != nil {
		return nil, fmt.Errorf("decode owners: %w", err)
	}
	if body.Owners == nil {
		return []string{}, nil
	}
	return body.Owners, nil
}

// Ask submits the payload and returns the synthesized answer. Non-2xx
// responses surface the raw response text verbatim. Successful bodies are
// decoded as-is: missing fields reach the caller as zero values.
func (c *Client) Ask(ctx context.Context, payload domain.AskPayload) (domain.SynthesizedAnswer, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return domain.SynthesizedAnswer{}, fmt.Errorf("encode payload: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := c.call(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    c.base() + "/ask",
		Header: header,
		Body:   b,
	})
	if err != nil {
		return domain.SynthesizedAnswer{}, fmt.Errorf("ask request: %w", err)
	}
	if !resp.OK() {
		return domain.SynthesizedAnswer{}, &RequestError{
			Status:     resp.Status,
			StatusText: resp.StatusText,
			Body:       resp.Text(),
		}
	}
	var answer domain.SynthesizedAnswer
	if err := resp.JSON(&answer); err != nil {
		return domain.SynthesizedAnswer{}, fmt.Errorf("decode answer: %w", err)
	}
	return answer, nil
}

func (c *Client) call(ctx context.Context, req transport.Request) (*transport.Response, error) {
	call := c.Transport
	if call == nil {
		call = transport.HTTP(nil)
	}
	return call(ctx, req)
}

func (c *Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Client) base() string {
	return strings.TrimRight(c.APIBase, "/")
}
