// Package eastmoney provides a client for the eastmoney fund list page and
// the historical NAV API.
package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

const (
	DefaultListURL    = "https://fund.eastmoney.com/fund.html"
	DefaultHistoryURL = "http://api.fund.eastmoney.com/f10/lsjz"
	DefaultPageSize   = 1000
	DefaultTimeout    = 30 * time.Second
	DefaultRateLimit  = 2 // requests per second
)

// Client fetches fund lists and NAV histories
type Client struct {
	listURL    string
	historyURL string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithListURL sets the fund list page URL
func WithListURL(u string) ClientOption {
	return func(c *Client) {
		c.listURL = u
	}
}

// WithHistoryURL sets the NAV history API URL
func WithHistoryURL(u string) ClientOption {
	return func(c *Client) {
		c.historyURL = u
	}
}

// WithPageSize sets the number of history rows requested per page
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRateLimit sets the rate limit; zero or less disables it
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new eastmoney client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		listURL:    DefaultListURL,
		historyURL: DefaultHistoryURL,
		pageSize:   DefaultPageSize,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-200 response
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eastmoney error: %s (status: %d, url: %s)", e.Message, e.StatusCode, e.URL)
}

// get performs a rate-limited GET request and returns the body with its
// content type
func (c *Client) get(ctx context.Context, rawURL string, params url.Values, header http.Header) ([]byte, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := rawURL
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		reqURL = rawURL + sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.log.Debug().Str("url", reqURL).Msg("eastmoney request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			URL:        rawURL,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// toUTF8 decodes a GB2312/GBK page; other bodies are returned unchanged
func toUTF8(body []byte, contentType string) ([]byte, error) {
	if !isGBK(contentType) {
		return body, nil
	}
	out, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode gbk: %w", err)
	}
	return out, nil
}

// isGBK reports whether a response must be decoded from GB2312/GBK. The
// list page is served as GB2312, sometimes without a charset.
func isGBK(contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "utf-8") {
		return false
	}
	return strings.Contains(ct, "gb2312") || strings.Contains(ct, "gbk") || strings.HasPrefix(ct, "text/html")
}
