package microsoft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driven"
	"github.com/prdeepak/ms365-access/internal/logger"
)

// DefaultGraphBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

const maxResponseSize = 16 << 20

// ErrInvalidPath is returned for request paths that are not relative to the Graph base URL.
var ErrInvalidPath = errors.New("microsoft: request path must be relative")

// Verify interface compliance.
var _ driven.AccountResolver = (*Client)(nil)

// Request describes one Graph call.
type Request struct {
	// Resource selects the rate limiter.
	Resource domain.ResourceType
	Method   string
	// Path is relative to the base URL and must start with a single "/".
	Path  string
	Query url.Values
	// Body is JSON-encoded when non-nil.
	Body any
}

// Client calls Microsoft Graph with a caller-supplied access token.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	limiters map[domain.ResourceType]*RateLimiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Graph client. An empty baseURL selects DefaultGraphBaseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiters:   make(map[domain.ResourceType]*RateLimiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) limiter(resource domain.ResourceType) *RateLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	rl, ok := c.limiters[resource]
	if !ok {
		rl = NewRateLimiter(resource)
		c.limiters[resource] = rl
	}
	return rl
}

// Backoff returns the remaining 429 backoff for resource.
func (c *Client) Backoff(resource domain.ResourceType) time.Duration {
	return c.limiter(resource).Backoff()
}

// Do performs req and returns the raw JSON body. Responses without a body
// (202, 204) return nil. Non-2xx responses return *GraphError.
func (c *Client) Do(ctx context.Context, accessToken string, req Request) (json.RawMessage, error) {
	if !strings.HasPrefix(req.Path, "/") || strings.HasPrefix(req.Path, "//") {
		return nil, ErrInvalidPath
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	rl := c.limiter(req.Resource)
	if err := rl.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}
	logger.Debug("microsoft: %s %s -> %d (%d bytes)", method, req.Path, resp.StatusCode, len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := &GraphError{Status: resp.StatusCode, RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"))}
		var envelope graphErrorBody
		if json.Unmarshal(data, &envelope) == nil {
			gerr.Code = envelope.Error.Code
			gerr.Message = envelope.Error.Message
		}
		if IsRateLimited(resp.StatusCode) {
			rl.RecordRateLimitError(gerr.RetryAfter)
		}
		return nil, gerr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// UserInfo contains the user's basic profile information from Microsoft Graph.
type UserInfo struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// GetUserEmail returns the user's email address.
// Falls back to userPrincipalName if mail is not set.
func (u *UserInfo) GetUserEmail() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// UserInfo fetches the signed-in user's profile.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	raw, err := c.Do(ctx, accessToken, Request{
		Resource: domain.ResourceProfile,
		Path:     "/me",
		Query:    url.Values{"$select": {"id,displayName,mail,userPrincipalName"}},
	})
	if err != nil {
		return nil, err
	}

	var info UserInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

// AccountID implements driven.AccountResolver.
func (c *Client) AccountID(ctx context.Context, accessToken string) (string, error) {
	info, err := c.UserInfo(ctx, accessToken)
	if err != nil {
		return "", err
	}
	if id := info.GetUserEmail(); id != "" {
		return id, nil
	}
	return "", errors.New("microsoft: profile has no mail or userPrincipalName")
}
