package steam

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

// DefaultAPIURL is the public Steam Web API.
const DefaultAPIURL = "https://api.steampowered.com"

// RecentGamesCount is how many recently played games are requested.
const RecentGamesCount = 5

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrMissingKey is returned when no Web API key is configured.
	ErrMissingKey = errors.New("steam web api key is not configured")
	// ErrEmptySteamID is returned when a request has no Steam id.
	ErrEmptySteamID = errors.New("steam id is empty")
	// ErrPlayerNotFound is returned when a summary lists no player.
	ErrPlayerNotFound = errors.New("steam player not found")
	// ErrPrivateProfile is returned when the friend list is not visible.
	ErrPrivateProfile = errors.New("steam profile is private")
	// ErrKeyRejected is returned when Steam refuses the Web API key.
	ErrKeyRejected = errors.New("steam rejected the api key")
)

// Client is a Steam Web API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
}

// NewClient creates a client for baseURL authenticating with apiKey.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache: cache.New(time.Minute, 5*time.Minute),
	}
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithCacheTTL changes how long responses are reused. Zero disables caching.
func (c *Client) WithCacheTTL(ttl time.Duration) *Client {
	if ttl <= 0 {
		c.cache = nil
		return c
	}

	c.cache = cache.New(ttl, 2*ttl)

	return c
}

// PlayerSummary returns the profile of steamID.
func (c *Client) PlayerSummary(ctx context.Context, steamID string) (*Player, error) {
	var resp struct {
		Response struct {
			Players []Player `json:"players"`
		} `json:"response"`
	}

	if err := c.get(ctx, "/ISteamUser/GetPlayerSummaries/v0002/", steamID, url.Values{"steamids": {steamID}}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Response.Players) == 0 {
		return nil, ErrPlayerNotFound
	}

	player := resp.Response.Players[0]

	return &player, nil
}

// Friends returns the friend list of steamID.
func (c *Client) Friends(ctx context.Context, steamID string) ([]Friend, error) {
	var resp struct {
		FriendsList struct {
			Friends []Friend `json:"friends"`
		} `json:"friendslist"`
	}

	err := c.get(ctx, "/ISteamUser/GetFriendList/v0001/", steamID, url.Values{
		"steamid":      {steamID},
		"relationship": {"friend"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.FriendsList.Friends, nil
}

// RecentGames returns up to RecentGamesCount games played in the last two
// weeks.
func (c *Client) RecentGames(ctx context.Context, steamID string) ([]Game, error) {
	var resp struct {
		Response struct {
			TotalCount int    `json:"total_count"`
			Games      []Game `json:"games"`
		} `json:"response"`
	}

	err := c.get(ctx, "/IPlayerService/GetRecentlyPlayedGames/v0001/", steamID, url.Values{
		"steamid": {steamID},
		"count":   {fmt.Sprint(RecentGamesCount)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Response.Games, nil
}

func (c *Client) get(ctx context.Context, path, steamID string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrMissingKey
	}

	if steamID == "" {
		return ErrEmptySteamID
	}

	cacheKey := path + "?" + params.Encode()
	if c.cache != nil {
		if body, ok := c.cache.Get(cacheKey); ok {
			return json.Unmarshal(body.([]byte), out)
		}
	}

	ctx, span := observability.Tracer("presence.steam").Start(ctx, "steam"+strings.TrimSuffix(path, "/"))
	defer span.End()

	span.SetAttributes(attribute.String("steam.id", steamID))

	body, err := c.fetch(ctx, path, params)
	if err != nil {
		observability.FailSpan(span, err, "request failed")

		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid steam response: %w", err)
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, body, cache.DefaultExpiration)
	}

	return nil
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}

	query.Set("key", c.apiKey)
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.baseURL + path
		}

		return nil, fmt.Errorf("failed to reach steam: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && strings.Contains(path, "GetFriendList"):
		return nil, ErrPrivateProfile
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", ErrKeyRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("steam request failed with status %d", resp.StatusCode)
	}

	return body, nil
}
