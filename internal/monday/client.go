package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
	"h12.io/socks"
)

// Tunables mirroring monday.com's observed behavior
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 20 * time.Second
	DefaultMaxAttempts    = 4
	DefaultBaseBackoff    = 600 * time.Millisecond

	apiVersion     = "2024-10"
	bodyExcerptMax = 600
)

// ratePhrases are the substrings monday embeds in GraphQL error
// payloads when a call should be retried even though the HTTP status
// was 200.
var ratePhrases = []string{"rate limit", "complexity", "budget exhausted"}

// ProxyConfig describes an optional forward proxy. An empty Host or
// Port means a direct connection.
type ProxyConfig struct {
	Type     string // socks4, socks5, http or https
	Host     string
	Port     string
	Username string
	Password string
}

func (p ProxyConfig) enabled() bool {
	return p.Host != "" && p.Port != ""
}

// ClientConfig configures a Client. Zero-valued timeouts and retry
// settings fall back to the package defaults.
type ClientConfig struct {
	Token          string
	APIURL         string
	Proxy          ProxyConfig
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxAttempts    int
	BaseBackoff    time.Duration
}

// Client is a lightweight monday.com GraphQL client with proxy support
// and resilient POST semantics: it retries connection failures, read
// timeouts, HTTP 429/5xx, and soft rate-limit hints, with exponential
// jittered backoff.
type Client struct {
	apiURL      string
	token       string
	httpClient  *http.Client
	maxAttempts int
	baseBackoff time.Duration
}

// NewClient builds a Client, routing through the configured proxy if
// one is set. Environment proxy variables are never consulted.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("monday: API token is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.monday.com/v2"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}

	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		apiURL:      cfg.APIURL,
		token:       cfg.Token,
		httpClient:  &http.Client{Transport: transport},
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
	}, nil
}

func newTransport(cfg ClientConfig) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	if !cfg.Proxy.enabled() {
		return transport, nil
	}

	addr := net.JoinHostPort(cfg.Proxy.Host, cfg.Proxy.Port)
	ptype := strings.ToLower(cfg.Proxy.Type)
	switch ptype {
	case "", "socks5", "socks5h":
		var auth *proxy.Auth
		if cfg.Proxy.Username != "" && cfg.Proxy.Password != "" {
			auth = &proxy.Auth{User: cfg.Proxy.Username, Password: cfg.Proxy.Password}
		}
		socksDialer, err := proxy.SOCKS5("tcp", addr, auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("monday: socks5 proxy setup failed: %w", err)
		}
		if cd, ok := socksDialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
				return socksDialer.Dial(network, address)
			}
		}
	case "socks4", "socks4a":
		proxyURL := fmt.Sprintf("%s://%s?timeout=%s", ptype, addr, cfg.ConnectTimeout)
		if cfg.Proxy.Username != "" {
			proxyURL = fmt.Sprintf("%s://%s@%s?timeout=%s", ptype, cfg.Proxy.Username, addr, cfg.ConnectTimeout)
		}
		dial := socks.Dial(proxyURL)
		transport.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
			return dial(network, address)
		}
	case "http", "https":
		u := &url.URL{Scheme: ptype, Host: addr}
		if cfg.Proxy.Username != "" && cfg.Proxy.Password != "" {
			u.User = url.UserPassword(cfg.Proxy.Username, cfg.Proxy.Password)
		}
		transport.Proxy = http.ProxyURL(u)
	default:
		return nil, fmt.Errorf("monday: unsupported proxy type %q", cfg.Proxy.Type)
	}

	log.Printf("Configured %s proxy %s for monday client", ptype, addr)
	return transport, nil
}

type graphQLEnvelope struct {
	Data   json.RawMessage   `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

// Query POSTs a GraphQL document and decodes the envelope's data field
// into out (which may be nil). Transient failures are retried up to the
// configured attempt budget; 429 responses honor Retry-After or an
// in-body retry_in_seconds hint over the computed backoff. HTTP 407 and
// unparseable 200 bodies fail immediately.
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload := map[string]interface{}{"query": query}
	if len(variables) > 0 {
		payload["variables"] = variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("monday: marshal request: %w", err)
	}

	var lastErr *APIError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, reqErr := c.do(ctx, body)
		if reqErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = classifyNetworkError(reqErr)
			if attempt >= c.maxAttempts {
				break
			}
			wait := c.backoff(attempt)
			log.Printf("Transient network error (%s). Attempt %d/%d, retrying in %s", lastErr.Kind, attempt, c.maxAttempts, wait)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = classifyNetworkError(readErr)
			if attempt >= c.maxAttempts {
				break
			}
			wait := c.backoff(attempt)
			log.Printf("Error reading response body: %v. Retrying in %s", readErr, wait)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		status := resp.StatusCode
		ctype := resp.Header.Get("Content-Type")

		switch {
		case status == http.StatusOK:
			var envelope graphQLEnvelope
			if err := json.Unmarshal(raw, &envelope); err != nil {
				excerpt := bodyExcerpt(raw)
				log.Printf("Non-JSON response on 200. Content-Type=%q, first bytes: %q", ctype, excerpt)
				return &APIError{
					Kind:    ErrKindMalformed,
					Status:  status,
					Message: fmt.Sprintf("non-JSON response on 200 (Content-Type=%q): %s", ctype, excerpt),
				}
			}
			if len(envelope.Errors) > 0 {
				errText := joinRawMessages(envelope.Errors)
				if containsRateHint(errText) {
					if attempt < c.maxAttempts {
						wait := c.backoff(attempt)
						log.Printf("GraphQL rate/complexity hint, retrying in %s", wait)
						if err := c.sleep(ctx, wait); err != nil {
							return err
						}
						continue
					}
					return &APIError{Kind: ErrKindRateLimited, Status: status, Message: errText}
				}
				return &APIError{Kind: ErrKindGraphQL, Status: status, Message: errText}
			}
			if out != nil {
				if err := json.Unmarshal(envelope.Data, out); err != nil {
					return &APIError{
						Kind:    ErrKindMalformed,
						Status:  status,
						Message: fmt.Sprintf("decoding data payload: %v", err),
						Err:     err,
					}
				}
			}
			return nil

		case status == http.StatusTooManyRequests:
			wait, hinted := retryAfterHint(resp.Header, raw)
			if !hinted {
				wait = c.backoff(attempt)
			}
			if attempt < c.maxAttempts {
				log.Printf("429 rate limited, waiting %s then retrying", wait)
				if err := c.sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
			return &APIError{Kind: ErrKindRateLimited, Status: status, Message: bodyExcerpt(raw)}

		case status == http.StatusProxyAuthRequired:
			log.Printf("Proxy authentication required (407), check proxy credentials. First bytes: %q", bodyExcerpt(raw))
			return &APIError{Kind: ErrKindProxyAuth, Status: status, Message: "proxy authentication required"}

		case status >= 500 && status < 600:
			if attempt < c.maxAttempts {
				wait := c.backoff(attempt)
				log.Printf("HTTP %d, retrying in %s", status, wait)
				if err := c.sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
			return &APIError{Kind: ErrKindServerFault, Status: status, Message: bodyExcerpt(raw)}

		default:
			excerpt := bodyExcerpt(raw)
			log.Printf("HTTP %d from monday. Content-Type=%q, first bytes: %q", status, ctype, excerpt)
			return &APIError{Kind: ErrKindHTTP, Status: status, Message: excerpt}
		}
	}

	if lastErr == nil {
		lastErr = &APIError{Kind: ErrKindConnection, Message: "retry budget exhausted"}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Version", apiVersion)
	return c.httpClient.Do(req)
}

// backoff computes the exponential jittered delay for an attempt:
// base * 2^(attempt-1) * rand(0.7, 1.3).
func (c *Client) backoff(attempt int) time.Duration {
	factor := float64(int(1) << (attempt - 1))
	jitter := 0.7 + rand.Float64()*0.6
	return time.Duration(float64(c.baseBackoff) * factor * jitter)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfterHint extracts a server-provided retry delay from a 429
// response, preferring the Retry-After header over the in-body
// retry_in_seconds field.
func retryAfterHint(header http.Header, body []byte) (time.Duration, bool) {
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second, true
		}
	}
	var hint struct {
		RetryInSeconds float64 `json:"retry_in_seconds"`
	}
	if err := json.Unmarshal(body, &hint); err == nil && hint.RetryInSeconds > 0 {
		return time.Duration(hint.RetryInSeconds * float64(time.Second)), true
	}
	return 0, false
}

func classifyNetworkError(err error) *APIError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: ErrKindTimeout, Message: err.Error(), Err: err}
	}
	return &APIError{Kind: ErrKindConnection, Message: err.Error(), Err: err}
}

func containsRateHint(errText string) bool {
	lower := strings.ToLower(errText)
	for _, phrase := range ratePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func joinRawMessages(msgs []json.RawMessage) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = string(m)
	}
	return strings.Join(parts, "; ")
}

// bodyExcerpt collapses newlines and truncates a raw body so error
// messages stay bounded and never carry full payloads.
func bodyExcerpt(raw []byte) string {
	s := strings.ReplaceAll(string(raw), "\n", " ")
	if len(s) > bodyExcerptMax {
		s = s[:bodyExcerptMax]
	}
	return s
}
