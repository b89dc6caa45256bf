package lanyard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Lookup(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantTracked bool
		wantReason  string
		wantErr     bool
	}{
		{
			name:        "tracked",
			statusCode:  http.StatusOK,
			body:        `{"success":true,"data":{"discord_user":{"id":"42","username":"u"},"discord_status":"online"}}`,
			wantTracked: true,
		},
		{
			name:        "not monitored",
			statusCode:  http.StatusNotFound,
			body:        `{"success":false,"error":{"code":"user_not_monitored","message":"User is not being monitored by Lanyard"}}`,
			wantTracked: false,
			wantReason:  "User is not being monitored by Lanyard",
		},
		{
			name:        "bare failure flag",
			statusCode:  http.StatusOK,
			body:        `{"success":false}`,
			wantTracked: false,
		},
		{
			name:       "server error",
			statusCode: http.StatusBadGateway,
			body:       `upstream down`,
			wantErr:    true,
		},
		{
			name:       "garbage body",
			statusCode: http.StatusOK,
			body:       `<html>`,
			wantErr:    true,
		},
		{
			name:       "success without record",
			statusCode: http.StatusOK,
			body:       `{"success":true,"data":{"unrelated":true}}`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/users/42" {
					t.Errorf("path = %q, want /v1/users/42", r.URL.Path)
				}

				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL).WithCacheTTL(0)

			result, err := c.Lookup(context.Background(), "42")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Lookup() error = nil, want error (result %+v)", result)
				}

				return
			}

			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}

			if result.Tracked != tt.wantTracked {
				t.Errorf("Tracked = %v, want %v", result.Tracked, tt.wantTracked)
			}

			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}

			if tt.wantTracked && (result.Presence == nil || result.Presence.DiscordUser.ID != "42") {
				t.Errorf("Presence = %+v, want record for 42", result.Presence)
			}
		})
	}
}

func TestClient_LookupCaches(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"data":{"discord_user":{"id":"42"},"discord_status":"idle"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL).WithCacheTTL(time.Minute)

	for range 3 {
		if _, err := c.Lookup(context.Background(), "42"); err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestClient_LookupEmptyID(t *testing.T) {
	if _, err := NewClient("").Lookup(context.Background(), ""); err != ErrEmptyUserID {
		t.Errorf("Lookup(\"\") error = %v, want ErrEmptyUserID", err)
	}
}

func TestNewClient_DefaultsAndTrim(t *testing.T) {
	if got := NewClient("").BaseURL(); got != DefaultAPIURL {
		t.Errorf("BaseURL() = %q, want %q", got, DefaultAPIURL)
	}

	if got := NewClient("https://example.test/").BaseURL(); got != "https://example.test" {
		t.Errorf("BaseURL() = %q, want trailing slash trimmed", got)
	}
}
