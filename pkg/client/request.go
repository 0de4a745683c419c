package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Request describes one call against the client API. Path is relative to
// /api/client.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// NewRequest creates a request without a body.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path}
}

// NewJSONRequest creates a request with a JSON-encoded body.
func NewJSONRequest(method, path string, body any) (*Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	return &Request{Method: method, Path: path, Body: data, ContentType: "application/json"}, nil
}

// WithQuery sets a query parameter and returns r.
func (r *Request) WithQuery(key, value string) *Request {
	if r.Query == nil {
		r.Query = url.Values{}
	}
	r.Query.Set(key, value)
	return r
}

// WithText sets a raw text body and returns r.
func (r *Request) WithText(body string) *Request {
	r.Body = []byte(body)
	r.ContentType = "text/plain"
	return r
}

func (r *Request) build(ctx context.Context, baseURL string) (*http.Request, error) {
	target := baseURL + apiPrefix + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	return req, nil
}
