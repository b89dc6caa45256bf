package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profilecard/presence/internal/config"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/profile"
	"github.com/profilecard/presence/internal/steam"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// loadConfig loads configuration from the environment of t.
func loadConfig(t *testing.T) *config.Config {
	t.Helper()

	return config.Load()
}

func TestSteamError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"rejected", steam.ErrKeyRejected, clierrors.ExitAuth},
		{"not found", steam.ErrPlayerNotFound, clierrors.ExitNotFound},
		{"private", steam.ErrPrivateProfile, clierrors.ExitGeneral},
		{"other", errors.New("dial tcp: connection refused"), clierrors.ExitNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cliErr *clierrors.CLIError
			require.True(t, clierrors.As(steamError(tt.err, "76561197960287930"), &cliErr))
			assert.Equal(t, tt.code, cliErr.Code)
		})
	}
}

func TestProfileError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unknown store", profile.ErrUnknownStore, "Unknown settings store: fonts"},
		{"link", profile.ErrLinkNotFound, "Link not found: abc"},
		{"key", profile.ErrUnknownKey, "Invalid value for fonts.abc"},
		{"value", profile.ErrInvalidValue, "Invalid value for fonts.abc"},
		{"other", errors.New("disk full"), "Failed to save fonts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cliErr *clierrors.CLIError
			require.True(t, clierrors.As(profileError("fonts", "abc", "save fonts", tt.err), &cliErr))
			assert.Equal(t, tt.want, cliErr.Message)
		})
	}
}

func TestNewSteamClient_NoKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PRESENCE_STEAM_API_KEY", "")

	// The keyring may hold a real key on a developer machine.
	if _, err := newSteamClient(loadConfig(t)); err == nil {
		t.Skip("a Steam key is stored in the system keyring")
	} else {
		var cliErr *clierrors.CLIError
		require.True(t, clierrors.As(err, &cliErr))
		assert.Equal(t, clierrors.ExitAuth, cliErr.Code)
	}
}

func TestWithSpinner_PlainOutput(t *testing.T) {
	out, buf := testWriter()

	require.NoError(t, withSpinner(out, "Fetching", func() error { return nil }))
	assert.Equal(t, "Fetching... done\n", buf.String())

	buf.Reset()

	boom := errors.New("boom")
	require.ErrorIs(t, withSpinner(out, "Fetching", func() error { return boom }), boom)
	assert.Equal(t, "Fetching... failed\n", buf.String())

	buf.Reset()
	out.JSON = true

	require.NoError(t, withSpinner(out, "Fetching", func() error { return nil }))
	assert.Empty(t, buf.String())
}
