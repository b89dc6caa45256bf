// Package errors provides structured CLI error types for presence.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for CLI errors.
const (
	ExitSuccess  = 0  // Successful execution
	ExitGeneral  = 1  // General error
	ExitAuth     = 2  // Steam key missing or rejected
	ExitNetwork  = 3  // Network/API error
	ExitConfig   = 4  // Configuration or settings store error
	ExitNotFound = 5  // User, player or link not found
	ExitUsage    = 64 // Command line usage error (BSD convention)
)

// LanyardInviteURL is where users join to have their presence monitored.
const LanyardInviteURL = "https://discord.com/invite/lanyard"

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// CannotPrompt returns an error when interactive prompts are unavailable.
func CannotPrompt(envVar string) *CLIError {
	return &CLIError{
		Message: "Cannot prompt in non-interactive mode",
		Hint:    fmt.Sprintf("Set %s environment variable instead", envVar),
		Code:    ExitUsage,
	}
}

// ConfigFailed returns an error for configuration save failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your presence config directory or run 'presence doctor'",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// UnknownConfigKey returns an error for a configuration key that does not exist.
func UnknownConfigKey(key string, known []string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Unknown config key: %s", key),
		Hint:    fmt.Sprintf("Valid keys: %s", strings.Join(known, ", ")),
		Code:    ExitUsage,
	}
}

// ChecksFailed returns an error when diagnostic checks fail.
func ChecksFailed(failed int) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("%d check(s) failed", failed),
		Hint:    "Fix the failing checks above and run 'presence doctor' again",
		Code:    ExitGeneral,
	}
}

// DiscordIDRequired returns an error when no Discord user id was given.
func DiscordIDRequired() *CLIError {
	return &CLIError{
		Message: "Discord user id required",
		Hint:    "Pass the id as an argument or run 'presence config set presence.discord_id <id>'",
		Code:    ExitUsage,
	}
}

// NotTracked returns an error for a user Lanyard does not monitor.
func NotTracked(discordID, reason string) *CLIError {
	msg := fmt.Sprintf("User %s is not tracked by Lanyard", discordID)
	if reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, reason)
	}

	return &CLIError{
		Message: msg,
		Hint:    "Join the Lanyard Discord server to be monitored: " + LanyardInviteURL,
		Code:    ExitNotFound,
	}
}

// LookupFailed returns an error for a failed Lanyard REST lookup.
func LookupFailed(cause error) *CLIError {
	msg, hint := classifyNetwork("Lanyard", cause)

	return &CLIError{
		Message: "Lanyard lookup failed" + msg,
		Hint:    hint,
		Cause:   cause,
		Code:    ExitNetwork,
	}
}

// GatewayUnavailable returns an error when the websocket gateway cannot be reached.
func GatewayUnavailable(cause error) *CLIError {
	return &CLIError{
		Message: "Lanyard gateway unavailable",
		Hint:    "Check your network connection and the lanyard.gateway_url setting, or run 'presence doctor'",
		Cause:   cause,
		Code:    ExitNetwork,
	}
}

// SteamIDRequired returns an error when no SteamID64 was given.
func SteamIDRequired() *CLIError {
	return &CLIError{
		Message: "Steam id required",
		Hint:    "Pass a SteamID64 as an argument or run 'presence config set steam.id <id>'",
		Code:    ExitUsage,
	}
}

// SteamKeyMissing returns an error when no Steam Web API key is stored.
func SteamKeyMissing() *CLIError {
	return &CLIError{
		Message: "Steam Web API key not configured",
		Hint:    "Run 'presence steam key set' or set PRESENCE_STEAM_API_KEY",
		Code:    ExitAuth,
	}
}

// SteamKeyEmpty returns an error when an empty key is entered.
func SteamKeyEmpty() *CLIError {
	return &CLIError{
		Message: "Steam Web API key cannot be empty",
		Hint:    "Get a key at https://steamcommunity.com/dev/apikey",
		Code:    ExitAuth,
	}
}

// SteamKeyRejected returns an error when Steam refuses the stored key.
func SteamKeyRejected(cause error) *CLIError {
	return &CLIError{
		Message: "Steam rejected the Web API key",
		Hint:    "Run 'presence steam key set' with a valid key",
		Cause:   cause,
		Code:    ExitAuth,
	}
}

// SteamRequestFailed returns an error for a failed Steam Web API call.
func SteamRequestFailed(cause error) *CLIError {
	msg, hint := classifyNetwork("Steam", cause)

	return &CLIError{
		Message: "Steam request failed" + msg,
		Hint:    hint,
		Cause:   cause,
		Code:    ExitNetwork,
	}
}

// SteamPlayerNotFound returns an error for an unknown SteamID64.
func SteamPlayerNotFound(steamID string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Steam player not found: %s", steamID),
		Hint:    "Check the SteamID64; it is the 17-digit number in your profile URL",
		Code:    ExitNotFound,
	}
}

// SteamProfilePrivate returns an error when a friend list is hidden.
func SteamProfilePrivate(steamID string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Steam profile %s is private", steamID),
		Hint:    "Set the profile's friends list visibility to public",
		Code:    ExitGeneral,
	}
}

// ProfileStoreFailed returns an error for a settings store read or write failure.
func ProfileStoreFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check permissions on the profile directory or run 'presence profile reset <store>'",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// UnknownStore returns an error for a settings store name that does not exist.
func UnknownStore(name string, known []string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Unknown settings store: %s", name),
		Hint:    fmt.Sprintf("Available stores: %s", strings.Join(known, ", ")),
		Code:    ExitUsage,
	}
}

// InvalidSetting returns an error for a rejected settings value.
func InvalidSetting(store, key string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid value for %s.%s", store, key),
		Hint:    fmt.Sprintf("Run 'presence profile show %s' to see valid keys and current values", store),
		Cause:   cause,
		Code:    ExitUsage,
	}
}

// LinkNotFound returns an error for an unknown link id.
func LinkNotFound(id string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Link not found: %s", id),
		Hint:    "Run 'presence profile links list' to see link ids",
		Code:    ExitNotFound,
	}
}

// RelayNotConfigured returns an error when a relay command runs without Redis.
func RelayNotConfigured() *CLIError {
	return &CLIError{
		Message: "Relay not configured",
		Hint:    "Run 'presence config set relay.redis_url redis://host:6379/0' or set PRESENCE_RELAY_REDIS_URL",
		Code:    ExitConfig,
	}
}

// RelayUnavailable returns an error when Redis cannot be reached.
func RelayUnavailable(cause error) *CLIError {
	return &CLIError{
		Message: "Relay Redis unavailable",
		Hint:    "Check that Redis is running and relay.redis_url is correct",
		Cause:   cause,
		Code:    ExitNetwork,
	}
}

// classifyNetwork detects common failure patterns in cause and returns a
// message suffix and a hint naming service.
func classifyNetwork(service string, cause error) (string, string) {
	text := ""
	if cause != nil {
		text = cause.Error()
	}

	switch {
	case containsAny(text, "rate limit", "429"):
		return ": rate limited", fmt.Sprintf("Wait a moment and try again; %s limits request rates", service)
	case containsAny(text, "timeout", "deadline exceeded"):
		return ": timed out", "Check your network connection and try again"
	case containsAny(text, "connection refused", "no such host", "network is unreachable"):
		return ": unreachable", fmt.Sprintf("Check your network connection or the %s URL in 'presence config list'", service)
	case containsAny(text, "503", "502", "service unavailable", "bad gateway"):
		return ": service unavailable", fmt.Sprintf("%s is having trouble; try again later", service)
	default:
		return "", "Run with --log-level=debug for more details"
	}
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}

	return false
}
