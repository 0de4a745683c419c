// Package client provides the authenticated HTTP gateway to the panel client API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sheepe/pterogo/pkg/logging"
	"github.com/sheepe/pterogo/pkg/metrics"
	"github.com/sheepe/pterogo/pkg/protocol"
)

const apiPrefix = "/api/client"

// maxRedirects bounds redirects followed for one call.
const maxRedirects = 5

// Client issues authenticated calls and classifies their outcome.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu       sync.RWMutex
	verified bool
	account  *protocol.Account
}

// Config holds client configuration.
type Config struct {
	Host    string
	Token   string
	Timeout time.Duration
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	RateBurst int
	// HTTPClient overrides the default transport.
	HTTPClient *http.Client
}

// New creates a new client. It performs no network call; use Verify.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.Host, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// Host returns the panel base URL.
func (c *Client) Host() string {
	return c.baseURL
}

// Verified reports whether Verify has succeeded.
func (c *Client) Verified() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.verified
}

// Account returns the account fetched by Verify, or nil.
func (c *Client) Account() *protocol.Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// Verify checks the API key against the account endpoint and marks the
// client verified on success.
func (c *Client) Verify(ctx context.Context) (*protocol.Account, error) {
	data, err := c.Execute(ctx, NewRequest(http.MethodGet, "/account"))
	if err != nil {
		logging.Warn("verification failed", logging.String("host", c.baseURL), logging.Err(err))
		return nil, err
	}

	var obj protocol.Object[protocol.Account]
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}

	c.mu.Lock()
	c.verified = true
	c.account = &obj.Attributes
	c.mu.Unlock()

	logging.Info("client verified", logging.String("host", c.baseURL), logging.String("username", obj.Attributes.Username))
	return &obj.Attributes, nil
}

// applyAuth adds the auth header to a request.
func (c *Client) applyAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// Execute performs r once. A 200, or a status listed in suppressed, returns
// the response body verbatim. A 403 or a failure to reach the panel returns
// a *TransportError; any other status returns an *APIError. Nothing is retried.
func (c *Client) Execute(ctx context.Context, r *Request, suppressed ...int) ([]byte, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := logging.WithContext(ctx).With(
		logging.String("request_id", requestID),
		logging.String("method", r.Method),
		logging.String("path", r.Path),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			terr := classifyTransport(c.baseURL, err)
			metrics.RecordRequest(r.Method, metrics.OutcomeTransport, time.Since(start))
			log.Warn("rate limit wait aborted", logging.Err(err))
			return nil, terr
		}
	}

	req, err := r.build(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-ID", requestID)
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := classifyTransport(c.baseURL, err)
		metrics.RecordRequest(r.Method, metrics.OutcomeTransport, time.Since(start))
		log.Warn("panel unreachable", zap.Stringer("kind", terr.Kind), logging.Err(err))
		return nil, terr
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		metrics.RecordRequest(r.Method, metrics.OutcomeTransport, time.Since(start))
		log.Warn("panel rejected API key", logging.Int("status", resp.StatusCode))
		return nil, &TransportError{Kind: InvalidKey, Host: c.baseURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordRequest(r.Method, metrics.OutcomeTransport, time.Since(start))
		return nil, classifyTransport(c.baseURL, err)
	}

	if resp.StatusCode == http.StatusOK || slices.Contains(suppressed, resp.StatusCode) {
		metrics.RecordRequest(r.Method, metrics.OutcomeSuccess, time.Since(start))
		log.Debug("request completed", logging.Int("status", resp.StatusCode), logging.Duration("duration", time.Since(start)))
		return body, nil
	}

	apiErr := newAPIError(resp, body)
	metrics.RecordRequest(r.Method, metrics.OutcomeDomain, time.Since(start))
	log.Warn("request failed", logging.Int("status", resp.StatusCode), logging.Err(apiErr))
	return nil, apiErr
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
	}

	var errResp protocol.ErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &errResp) == nil {
		apiErr.Detail = errResp.First()
	}
	return apiErr
}

// statusText strips the numeric code from resp.Status.
func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	text = strings.TrimSpace(text)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// RequireVerified returns ErrUnverified unless the client is verified.
func (c *Client) RequireVerified() error {
	if !c.Verified() {
		return ErrUnverified
	}
	return nil
}
