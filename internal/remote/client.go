package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	pkgerrors "github.com/angelmondragon/packfinderz-shopper/pkg/errors"
	"github.com/angelmondragon/packfinderz-shopper/pkg/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 16 << 20
	errorBodySnippet = 512
	userIDHeader     = "X-User-ID"
)

// IdentityReader exposes the signed-in shopper, if any.
type IdentityReader interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Options configure the remote API client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Identity   IdentityReader
	Logger     *logger.Logger
}

// Client talks to the remote catalog and order service.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	identity IdentityReader
	logg     *logger.Logger
}

// NewClient builds a client for the service rooted at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	return &Client{
		baseURL:  base,
		http:     httpClient,
		identity: opts.Identity,
		logg:     logg,
	}, nil
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := fmt.Sprintf("%s %s", method, path)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode "+op)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.identity != nil {
		if userID, ok := c.identity.CurrentUserID(ctx); ok && userID != "" {
			req.Header.Set(userIDHeader, userID)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, op)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "read "+op)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return pkgerrors.New(pkgerrors.CodeNetwork, fmt.Sprintf("%s returned status %d", op, resp.StatusCode)).
			WithDetails(map[string]any{
				"status": resp.StatusCode,
				"body":   snippet(raw),
			})
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDecode, err, "decode "+op).
			WithDetails(map[string]any{"error": err.Error()})
	}
	return nil
}

// StatusCode extracts the HTTP status carried by a non-2xx NetworkError.
func StatusCode(err error) (int, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNetwork {
		return 0, false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return 0, false
	}
	status, ok := details["status"].(int)
	return status, ok
}

// IsTimeout reports whether err came from a request deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func snippet(raw []byte) string {
	if len(raw) > errorBodySnippet {
		return string(raw[:errorBodySnippet])
	}
	return string(raw)
}
