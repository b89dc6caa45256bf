package lanyard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/profilecard/presence/internal/buildinfo"
	"github.com/profilecard/presence/internal/observability"
)

const (
	// DefaultTimeout bounds a single lookup request.
	DefaultTimeout = 10 * time.Second
	// DefaultCacheTTL is how long a lookup result is reused.
	DefaultCacheTTL = 30 * time.Second
)

// ErrEmptyUserID is returned when a lookup is attempted without an id.
var ErrEmptyUserID = errors.New("user id is empty")

// Client performs one-shot REST lookups against Lanyard.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
}

// LookupResult is the outcome of a lookup. When Tracked is false, Presence
// is nil and Reason carries the service's explanation.
type LookupResult struct {
	Tracked  bool      `json:"tracked"`
	Presence *Presence `json:"-"`
	Reason   string    `json:"reason,omitempty"`
}

type lookupResponse struct {
	Success bool                `json:"success"`
	Data    jsoniter.RawMessage `json:"data"`
	Error   *lookupErrorPayload `json:"error"`
}

type lookupErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a lookup client for baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache: cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
	}
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithCacheTTL changes how long results are cached. Zero disables caching.
func (c *Client) WithCacheTTL(ttl time.Duration) *Client {
	if ttl <= 0 {
		c.cache = nil
		return c
	}

	c.cache = cache.New(ttl, 2*ttl)

	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Lookup fetches the current presence of userID. A user Lanyard does not
// monitor is reported as Tracked=false with a nil error.
func (c *Client) Lookup(ctx context.Context, userID string) (*LookupResult, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(userID); ok {
			return cached.(*LookupResult), nil
		}
	}

	ctx, span := observability.Tracer("presence.lanyard").Start(ctx, "lanyard.lookup")
	defer span.End()

	span.SetAttributes(attribute.String("lanyard.user_id", userID))

	result, err := c.lookup(ctx, userID)
	if err != nil {
		observability.FailSpan(span, err, "lookup failed")

		return nil, err
	}

	span.SetAttributes(attribute.Bool("lanyard.tracked", result.Tracked))

	if c.cache != nil {
		c.cache.Set(userID, result, cache.DefaultExpiration)
	}

	return result, nil
}

func (c *Client) lookup(ctx context.Context, userID string) (*LookupResult, error) {
	endpoint := c.baseURL + "/v1/users/" + url.PathEscape(userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach lanyard: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("lookup failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed lookupResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("lookup failed with status %d: invalid response: %w", resp.StatusCode, err)
	}

	if !parsed.Success {
		result := &LookupResult{Tracked: false}
		if parsed.Error != nil {
			result.Reason = parsed.Error.Message
		}

		return result, nil
	}

	presence, ok := ExtractTopLevel(parsed.Data)
	if !ok {
		return nil, fmt.Errorf("lookup returned no presence record")
	}

	return &LookupResult{Tracked: true, Presence: presence}, nil
}
