package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Request describes one HTTP exchange. Method defaults to GET.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response carries the outcome of an exchange. The body accessors decode
// on demand so callers pick between structured and raw views.
type Response struct {
	Status     int
	StatusText string
	Body       []byte
}

// OK reports whether the exchange succeeded at the HTTP level.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Text returns the body verbatim.
func (r *Response) Text() string {
	return string(r.Body)
}

// Func performs one exchange. It is a seam, not a policy: no retries and
// no caching. Timeouts belong to whatever backs the Func.
type Func func(ctx context.Context, req Request) (*Response, error)

// HTTP returns a Func backed by client. A nil client uses
// http.DefaultClient.
func HTTP(client *http.Client) Func {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, req Request) (*Response, error) {
		method := req.Method
		if method == "" {
			method = http.MethodGet
		}
		var body io.Reader
		if len(req.Body) > 0 {
			body = bytes.NewReader(req.Body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
		if err != nil {
			return nil, err
		}
		for key, values := range req.Header {
			for _, value := range values {
				httpReq.Header.Add(key, value)
			}
		}
		resp, err := client.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &Response{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       b,
		}, nil
	}
}
