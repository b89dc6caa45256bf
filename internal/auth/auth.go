// Package auth stores the Steam Web API key.
//
// The key is sourced in the following priority order:
//  1. Environment variable: PRESENCE_STEAM_API_KEY
//  2. OS Keyring (macOS Keychain, Windows Credential Manager, Linux Secret Service)
//  3. File fallback: <user config dir>/presence/steam-api-key (for headless machines)
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/profilecard/presence/internal/paths"
)

const (
	// keyringService is the service name used in OS keyring storage.
	keyringService = "presence"
	// keyringUser is the user/account name used in OS keyring storage.
	keyringUser = "steam-api-key"
	// EnvVarName is the environment variable for the Steam Web API key.
	EnvVarName = "PRESENCE_STEAM_API_KEY"
)

// ErrNoKey is returned by DeleteSteamKey when nothing was stored.
var ErrNoKey = errors.New("no stored Steam Web API key found")

// Steam issues keys as 32 hexadecimal characters.
var keyPattern = regexp.MustCompile(`^[0-9A-Fa-f]{32}$`)

// CredentialSource indicates where the key was found.
type CredentialSource string

// Credential source constants identify where the key was loaded from.
const (
	SourceEnv     CredentialSource = "environment variable"
	SourceKeyring CredentialSource = "keyring"
	SourceFile    CredentialSource = "config file"
	SourceNone    CredentialSource = ""
)

// SteamKey returns the Steam Web API key and its source.
// Returns empty strings if no key is found.
func SteamKey() (source CredentialSource, apiKey string) {
	if key := strings.TrimSpace(os.Getenv(EnvVarName)); key != "" {
		return SourceEnv, key
	}

	if key, err := keyring.Get(keyringService, keyringUser); err == nil && key != "" {
		return SourceKeyring, key
	}

	if key := readCredentialsFile(); key != "" {
		return SourceFile, key
	}

	return SourceNone, ""
}

// ValidateKey checks the shape of a Steam Web API key.
func ValidateKey(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("key is empty")
	}

	if !keyPattern.MatchString(strings.TrimSpace(apiKey)) {
		return errors.New("a Steam Web API key is 32 hexadecimal characters")
	}

	return nil
}

// StoreSteamKey stores the key in the OS keyring, falling back to the
// credentials file when no keyring is available. It reports where the key went.
func StoreSteamKey(apiKey string) (CredentialSource, error) {
	apiKey = strings.TrimSpace(apiKey)
	if err := ValidateKey(apiKey); err != nil {
		return SourceNone, err
	}

	if err := keyring.Set(keyringService, keyringUser, apiKey); err == nil {
		return SourceKeyring, nil
	}

	if err := writeCredentialsFile(apiKey); err != nil {
		return SourceNone, err
	}

	return SourceFile, nil
}

// DeleteSteamKey removes the stored key from the keyring and the file.
func DeleteSteamKey() error {
	keyringErr := keyring.Delete(keyringService, keyringUser)
	fileErr := deleteCredentialsFile()

	if keyringErr != nil && fileErr != nil {
		return ErrNoKey
	}

	return nil
}

// Mask shortens a key for display, keeping the first and last four characters.
func Mask(apiKey string) string {
	if len(apiKey) <= 8 {
		return strings.Repeat("*", len(apiKey))
	}

	return apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
}

// credentialsFilePath returns the path to the credentials file.
func credentialsFilePath() string {
	path, err := paths.CredentialsFile()
	if err != nil {
		return ""
	}

	return filepath.Clean(path)
}

// readCredentialsFile reads the key from the file fallback.
func readCredentialsFile() string {
	path := credentialsFilePath()
	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from controlled config directory
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

// writeCredentialsFile writes the key to the file fallback.
func writeCredentialsFile(apiKey string) error {
	path := credentialsFilePath()
	if path == "" {
		return fmt.Errorf("could not determine home directory")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Owner read/write only.
	if err := os.WriteFile(path, []byte(apiKey+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}

// deleteCredentialsFile removes the credentials file.
func deleteCredentialsFile() error {
	path := credentialsFilePath()
	if path == "" {
		return fmt.Errorf("could not determine home directory")
	}

	err := os.Remove(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found")
	}

	if err != nil {
		return fmt.Errorf("remove credentials file: %w", err)
	}

	return nil
}
