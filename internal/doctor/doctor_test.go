package doctor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/profilecard/presence/internal/auth"
	"github.com/profilecard/presence/internal/presence"
	"github.com/profilecard/presence/internal/testutil"
)

func lanyardServer(t *testing.T, hits *atomic.Int32, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}

		if !strings.HasPrefix(r.URL.Path, "/v1/users/") {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func gatewayServer(t *testing.T, hello string) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")

		_ = c.Write(r.Context(), websocket.MessageText, []byte(hello))
		_, _, _ = c.Read(r.Context())
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func noKey() (auth.CredentialSource, string) { return "", "" }

func byName(results []Result) map[string]Result {
	m := make(map[string]Result, len(results))
	for _, r := range results {
		m[r.Name] = r
	}

	return m
}

func TestRunner_Healthy(t *testing.T) {
	var hits atomic.Int32

	api := lanyardServer(t, &hits, `{"success":true,"data":{"discord_user":{"id":"42","username":"phineas"},"discord_status":"online"}}`)
	gateway := gatewayServer(t, `{"op":1,"d":{"heartbeat_interval":30000}}`)
	mr := miniredis.RunT(t)

	results := New(Options{
		DiscordID:     "42",
		APIURL:        api.URL,
		GatewayURL:    gateway,
		RedisURL:      "redis://" + mr.Addr(),
		ChannelPrefix: "cards",
		SteamKey:      noKey,
		Version:       "1.2.0",
	}).Run(context.Background())

	got := byName(results)

	assert.Equal(t, StatusPass, got["Configuration"].Status)
	assert.Equal(t, StatusPass, got["Lanyard API"].Status)
	assert.Equal(t, StatusPass, got["Tracking"].Status)
	assert.Equal(t, "phineas is monitored", got["Tracking"].Message)
	assert.Equal(t, StatusPass, got["Gateway"].Status, got["Gateway"].Detail)
	assert.Contains(t, got["Gateway"].Message, "heartbeat 30s")
	assert.Equal(t, StatusWarn, got["Steam Key"].Status)
	assert.Equal(t, StatusPass, got["Relay"].Status, got["Relay"].Detail)
	assert.Equal(t, "Redis reachable, channel cards:42", got["Relay"].Message)
	assert.Equal(t, StatusPass, got["Version"].Status)

	assert.Equal(t, int32(1), hits.Load(), "lookup should be shared between checks")
}

func TestRunner_NotTracked(t *testing.T) {
	api := lanyardServer(t, nil, `{"success":false,"error":{"code":"user_not_monitored","message":"User is not being monitored by Lanyard"}}`)

	r := New(Options{DiscordID: "7", APIURL: api.URL, SteamKey: noKey})

	got := byName(r.Run(context.Background()))

	assert.Equal(t, StatusPass, got["Lanyard API"].Status)
	assert.Equal(t, StatusWarn, got["Tracking"].Status)
	assert.Contains(t, got["Tracking"].Detail, "discord.com/invite/lanyard")
}

func TestRunner_NoDiscordID(t *testing.T) {
	var hits atomic.Int32

	api := lanyardServer(t, &hits, `{}`)

	got := byName(New(Options{APIURL: api.URL, SteamKey: noKey}).Run(context.Background()))

	assert.Equal(t, StatusWarn, got["Configuration"].Status)
	assert.Equal(t, StatusWarn, got["Lanyard API"].Status)
	assert.Equal(t, StatusWarn, got["Tracking"].Status)
	assert.Zero(t, hits.Load())
}

func TestCheckLanyardAPI_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	r := New(Options{DiscordID: "42", APIURL: server.URL, SteamKey: noKey})

	api := r.checkLanyardAPI(context.Background())
	assert.Equal(t, StatusFail, api.Status)
	assert.Contains(t, api.Detail, "502")

	tracking := r.checkTracking(context.Background())
	assert.Equal(t, StatusWarn, tracking.Status)
}

func TestCheckGateway(t *testing.T) {
	tests := []struct {
		name        string
		hello       string
		wantStatus  Status
		wantMessage string
	}{
		{
			name:        "advertised interval",
			hello:       `{"op":1,"d":{"heartbeat_interval":41250}}`,
			wantStatus:  StatusPass,
			wantMessage: "heartbeat 41.25s",
		},
		{
			name:        "fallback interval",
			hello:       `{"op":1}`,
			wantStatus:  StatusPass,
			wantMessage: "heartbeat 30s",
		},
		{
			name:        "wrong opcode",
			hello:       `{"op":0,"t":"INIT_STATE","d":{}}`,
			wantStatus:  StatusFail,
			wantMessage: "bad hello",
		},
		{
			name:        "garbage",
			hello:       `not json`,
			wantStatus:  StatusFail,
			wantMessage: "bad hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := gatewayServer(t, tt.hello)

			result := New(Options{GatewayURL: url}).checkGateway(context.Background())

			assert.Equal(t, tt.wantStatus, result.Status, result.Detail)
			assert.Contains(t, result.Message, tt.wantMessage)
		})
	}
}

func TestCheckGateway_DialError(t *testing.T) {
	dialer := presence.DialFunc(func(context.Context, string) (presence.Conn, error) {
		return nil, errors.New("dial gateway: connection refused")
	})

	result := New(Options{GatewayURL: "ws://nowhere", Dialer: dialer}).checkGateway(context.Background())

	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, "ws://nowhere", result.Message)
	assert.Contains(t, result.Detail, "connection refused")
}

func TestCheckSteamKey(t *testing.T) {
	const key = "0123456789abcdef0123456789abcdef"

	steamServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("key") {
		case key:
			_, _ = w.Write([]byte(`{"response":{"players":[{"steamid":"7656","personaname":"evee"}]}}`))
		case "bad":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer steamServer.Close()

	withKey := func(k string) func() (auth.CredentialSource, string) {
		return func() (auth.CredentialSource, string) { return auth.SourceKeyring, k }
	}

	tests := []struct {
		name        string
		key         string
		steamID     string
		wantStatus  Status
		wantMessage string
	}{
		{name: "missing", wantStatus: StatusWarn, wantMessage: "Not configured"},
		{name: "unverified", key: key, wantStatus: StatusPass, wantMessage: "not verified"},
		{name: "verified", key: key, steamID: "7656", wantStatus: StatusPass, wantMessage: "evee (via keyring)"},
		{name: "rejected", key: "bad", steamID: "7656", wantStatus: StatusFail, wantMessage: "Rejected"},
		{name: "upstream error", key: "other", steamID: "7656", wantStatus: StatusWarn, wantMessage: "Could not verify"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getKey := noKey
			if tt.key != "" {
				getKey = withKey(tt.key)
			}

			result := New(Options{
				SteamAPIURL: steamServer.URL,
				SteamID:     tt.steamID,
				SteamKey:    getKey,
			}).checkSteamKey(context.Background())

			assert.Equal(t, tt.wantStatus, result.Status, result.Detail)
			assert.Contains(t, result.Message, tt.wantMessage)
		})
	}
}

func TestCheckSteamKey_UnreachableHidesKey(t *testing.T) {
	const key = "ABCDEF0123456789ABCDEF0123456789"

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	result := New(Options{
		SteamAPIURL: baseURL,
		SteamID:     "76561197960287930",
		SteamKey:    func() (auth.CredentialSource, string) { return auth.SourceEnv, key },
		Timeout:     time.Second,
	}).checkSteamKey(context.Background())

	assert.Equal(t, StatusWarn, result.Status)
	assert.NotContains(t, result.Detail, key)
	assert.NotContains(t, result.Message, key)
}

func TestCheckRelay(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		result := New(Options{}).checkRelay(context.Background())
		assert.Equal(t, StatusPass, result.Status)
		assert.Equal(t, "Disabled", result.Message)
	})

	t.Run("invalid url", func(t *testing.T) {
		result := New(Options{RedisURL: "localhost:6379"}).checkRelay(context.Background())
		assert.Equal(t, StatusFail, result.Status)
	})

	t.Run("unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		result := New(Options{RedisURL: "redis://" + addr, Timeout: time.Second}).checkRelay(context.Background())
		assert.Equal(t, StatusFail, result.Status)
		assert.Equal(t, "Redis unreachable", result.Message)
	})
}

func TestCheckVersion(t *testing.T) {
	assert.Equal(t, StatusWarn, New(Options{Version: "dev"}).checkVersion(context.Background()).Status)

	result := New(Options{Version: "0.4.1"}).checkVersion(context.Background())
	require.Equal(t, StatusPass, result.Status)
	assert.True(t, strings.HasPrefix(result.Message, "v0.4.1 ("))
}

func TestSummary(t *testing.T) {
	results := []Result{
		{Status: StatusPass},
		{Status: StatusPass},
		{Status: StatusWarn},
		{Status: StatusFail},
	}

	passed, failed, warnings := Summary(results)

	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, warnings)
}

func TestStatus_MarshalText(t *testing.T) {
	for status, want := range map[Status]string{StatusPass: "pass", StatusWarn: "warn", StatusFail: "fail", Status(9): "unknown"} {
		got, err := status.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestRenderResults_Golden(t *testing.T) {
	results := []Result{
		{Name: "Configuration", Status: StatusPass, Message: "Watching 94490510688792576"},
		{Name: "Tracking", Status: StatusWarn, Message: "User is not being monitored by Lanyard", Detail: "Join Lanyard: https://discord.com/invite/lanyard"},
		{Name: "Relay", Status: StatusFail, Message: "Redis unreachable", Detail: "dial tcp 127.0.0.1:6379: connect: connection refused"},
	}

	var sb strings.Builder

	line := func(symbol string) func(string, ...any) {
		return func(format string, args ...any) {
			sb.WriteString(symbol + " " + fmt.Sprintf(format, args...) + "\n")
		}
	}

	RenderResults(results,
		func(format string, args ...any) { fmt.Fprintf(&sb, format, args...) },
		line(StatusPass.Symbol()),
		line(StatusWarn.Symbol()),
		line(StatusFail.Symbol()),
		func(format string, args ...any) { sb.WriteString(fmt.Sprintf(format, args...) + "\n") },
	)

	testutil.AssertGolden(t, sb.String(), "render_results.golden")
}
