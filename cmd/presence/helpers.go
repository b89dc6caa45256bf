package main

import (
	"errors"
	"log/slog"

	"github.com/profilecard/presence/internal/auth"
	"github.com/profilecard/presence/internal/card"
	"github.com/profilecard/presence/internal/config"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/output"
	"github.com/profilecard/presence/internal/paths"
	"github.com/profilecard/presence/internal/profile"
	"github.com/profilecard/presence/internal/steam"
)

// discordIDArg returns the Discord id from args, falling back to presence.discord_id.
func discordIDArg(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}

	if id := cfg.DiscordID(); id != "" {
		return id, nil
	}

	return "", clierrors.DiscordIDRequired()
}

// steamIDArg returns the SteamID64 from args, falling back to steam.id.
func steamIDArg(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}

	if id := cfg.SteamID(); id != "" {
		return id, nil
	}

	return "", clierrors.SteamIDRequired()
}

// newSteamClient creates a Steam Web API client using the stored key and
// the configured API URL. Returns a CLIError if no key is stored.
func newSteamClient(cfg *config.Config) (*steam.Client, error) {
	_, key := auth.SteamKey()
	if key == "" {
		return nil, clierrors.SteamKeyMissing()
	}

	return steam.NewClient(cfg.SteamAPIURL(), key), nil
}

// steamError maps Steam client errors to CLI errors.
func steamError(err error, steamID string) error {
	switch {
	case errors.Is(err, steam.ErrKeyRejected):
		return clierrors.SteamKeyRejected(err)
	case errors.Is(err, steam.ErrPlayerNotFound):
		return clierrors.SteamPlayerNotFound(steamID)
	case errors.Is(err, steam.ErrPrivateProfile):
		return clierrors.SteamProfilePrivate(steamID)
	default:
		return clierrors.SteamRequestFailed(err)
	}
}

// openStores opens the settings stores in the configured profile directory.
func openStores(cfg *config.Config) (*profile.Stores, error) {
	dir, err := paths.ProfileDir(cfg.ProfileDir())
	if err != nil {
		return nil, clierrors.ProfileStoreFailed("resolve profile directory", err)
	}

	return profile.Open(dir), nil
}

// profileError maps settings store errors to CLI errors.
func profileError(store, key, operation string, err error) error {
	switch {
	case errors.Is(err, profile.ErrUnknownStore):
		return clierrors.UnknownStore(store, profile.Names())
	case errors.Is(err, profile.ErrLinkNotFound):
		return clierrors.LinkNotFound(key)
	case errors.Is(err, profile.ErrUnknownKey), errors.Is(err, profile.ErrInvalidValue):
		return clierrors.InvalidSetting(store, key, err)
	default:
		return clierrors.ProfileStoreFailed(operation, err)
	}
}

// cardRenderer builds a card renderer coloured from the colour store. A
// missing or corrupt store falls back to the stock palette.
func cardRenderer(out *output.Writer, cfg *config.Config) *card.Renderer {
	palette := card.DefaultPalette()

	if stores, err := openStores(cfg); err == nil {
		colors, loadErr := stores.Colors.Load()
		if loadErr != nil {
			slog.Default().Warn("using default card colours", slog.String("error", loadErr.Error()))
		}

		palette = card.PaletteFrom(colors)
	}

	return card.NewRenderer(out.Out, palette).WithWidth(out.Terminal().CardWidth())
}

// withSpinner runs fn behind a spinner. JSON output gets no progress text.
func withSpinner(out *output.Writer, message string, fn func() error) error {
	if out.JSON {
		return fn()
	}

	spin := out.Spinner(message)
	spin.Start()

	err := fn()
	spin.Finish(err)

	return err
}
