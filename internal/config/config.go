// Package config handles presence configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (PRESENCE_*)
//  2. Config file (~/.config/presence/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/profilecard/presence/internal/lanyard"
	"github.com/profilecard/presence/internal/presence"
	"github.com/profilecard/presence/internal/relay"
	"github.com/profilecard/presence/internal/steam"
)

// Configuration keys.
const (
	KeyGatewayURL        = "lanyard.gateway_url"
	KeyAPIURL            = "lanyard.api_url"
	KeyDiscordID         = "presence.discord_id"
	KeyReconnectDelay    = "presence.reconnect_delay"
	KeyHeartbeatFallback = "presence.heartbeat_fallback"
	KeySteamAPIURL       = "steam.api_url"
	KeySteamID           = "steam.id"
	KeyRedisURL          = "relay.redis_url"
	KeyChannelPrefix     = "relay.channel_prefix"
	KeyMetricsAddr       = "metrics.addr"
	KeyProfileDir        = "profile.dir"
)

var durationKeys = []string{KeyReconnectDelay, KeyHeartbeatFallback}

var urlKeys = []string{KeyGatewayURL, KeyAPIURL, KeySteamAPIURL, KeyRedisURL}

// Config holds the presence configuration.
type Config struct {
	v *viper.Viper
}

// Keys returns every known configuration key, sorted.
func Keys() []string {
	keys := []string{
		KeyGatewayURL, KeyAPIURL, KeyDiscordID, KeyReconnectDelay, KeyHeartbeatFallback,
		KeySteamAPIURL, KeySteamID, KeyRedisURL, KeyChannelPrefix, KeyMetricsAddr, KeyProfileDir,
	}
	slices.Sort(keys)

	return keys
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	v.SetDefault(KeyGatewayURL, lanyard.DefaultGatewayURL)
	v.SetDefault(KeyAPIURL, lanyard.DefaultAPIURL)
	v.SetDefault(KeyDiscordID, "")
	v.SetDefault(KeyReconnectDelay, presence.DefaultReconnectDelay.String())
	v.SetDefault(KeyHeartbeatFallback, lanyard.DefaultHeartbeatInterval.String())
	v.SetDefault(KeySteamAPIURL, steam.DefaultAPIURL)
	v.SetDefault(KeySteamID, "")
	v.SetDefault(KeyRedisURL, "")
	v.SetDefault(KeyChannelPrefix, relay.DefaultChannelPrefix)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyProfileDir, "")

	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, but warn on other errors)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".config", "presence"), nil
}

// Get returns a configuration value.
func (c *Config) Get(key string) any {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// IsKnown reports whether key is a configuration key.
func IsKnown(key string) bool {
	return slices.Contains(Keys(), key)
}

// Validate checks value for key before it is persisted.
func Validate(key, value string) error {
	if !IsKnown(key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	if value == "" {
		return nil
	}

	if slices.Contains(durationKeys, key) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}

		if d <= 0 {
			return fmt.Errorf("%s: must be positive", key)
		}
	}

	if slices.Contains(urlKeys, key) {
		u, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}

		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: %q is not an absolute URL", key, value)
		}
	}

	return nil
}

// Set validates and persists a configuration value.
func (c *Config) Set(key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}

	c.v.Set(key, value)

	configDir, err := configDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")

	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]any {
	return c.v.AllSettings()
}

// GatewayURL returns the Lanyard websocket URL.
func (c *Config) GatewayURL() string {
	return c.GetString(KeyGatewayURL)
}

// APIURL returns the Lanyard REST base URL.
func (c *Config) APIURL() string {
	return c.GetString(KeyAPIURL)
}

// DiscordID returns the default Discord user to watch.
func (c *Config) DiscordID() string {
	return c.GetString(KeyDiscordID)
}

// ReconnectDelay returns the wait before redialing the gateway.
func (c *Config) ReconnectDelay() time.Duration {
	return c.duration(KeyReconnectDelay, presence.DefaultReconnectDelay)
}

// HeartbeatFallback returns the heartbeat interval used when a hello omits one.
func (c *Config) HeartbeatFallback() time.Duration {
	return c.duration(KeyHeartbeatFallback, lanyard.DefaultHeartbeatInterval)
}

// SteamAPIURL returns the Steam Web API base URL.
func (c *Config) SteamAPIURL() string {
	return c.GetString(KeySteamAPIURL)
}

// SteamID returns the default SteamID64.
func (c *Config) SteamID() string {
	return c.GetString(KeySteamID)
}

// RedisURL returns the relay Redis URL, empty when the relay is off.
func (c *Config) RedisURL() string {
	return c.GetString(KeyRedisURL)
}

// ChannelPrefix returns the relay channel prefix.
func (c *Config) ChannelPrefix() string {
	return c.GetString(KeyChannelPrefix)
}

// MetricsAddr returns the Prometheus listen address, empty when disabled.
func (c *Config) MetricsAddr() string {
	return c.GetString(KeyMetricsAddr)
}

// ProfileDir returns the configured settings store directory, empty for the default.
func (c *Config) ProfileDir() string {
	return c.GetString(KeyProfileDir)
}

// duration reads a duration key, falling back to def when it is unset or not positive.
func (c *Config) duration(key string, def time.Duration) time.Duration {
	d := c.v.GetDuration(key)
	if d <= 0 {
		return def
	}

	return d
}
