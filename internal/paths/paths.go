// Package paths resolves where presence keeps its files, following the XDG
// base directory variables with OS and home-directory fallbacks.
package paths

import (
	"errors"
	"os"
	"path/filepath"
)

const appName = "presence"

// root describes one base directory: an absolute $env wins, then the OS
// default when there is one, then $HOME/home.
type root struct {
	env   string
	osDir func() (string, error)
	home  string
}

var (
	configBase = root{env: "XDG_CONFIG_HOME", osDir: os.UserConfigDir, home: ".config"}
	stateBase  = root{env: "XDG_STATE_HOME", home: filepath.Join(".local", "state")}
)

func (r root) resolve(elem ...string) (string, error) {
	var osErr error

	base := ""

	if dir := os.Getenv(r.env); dir != "" && filepath.IsAbs(dir) {
		base = dir
	} else if r.osDir != nil {
		base, osErr = r.osDir()
	}

	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return "", errors.Join(errors.New("resolve user home directory"), osErr, err)
		}

		base = filepath.Join(home, r.home)
	}

	return filepath.Join(append([]string{base, appName}, elem...)...), nil
}

// ConfigRoot is where config.yaml and the settings stores live.
func ConfigRoot() (string, error) { return configBase.resolve() }

// StateRoot is where logs are written.
func StateRoot() (string, error) { return stateBase.resolve() }

// LogsDir returns the log directory.
func LogsDir() (string, error) { return stateBase.resolve("logs") }

// DefaultLogFile is used when logging cannot go to stderr.
func DefaultLogFile() (string, error) { return stateBase.resolve("logs", "presence.log") }

// CredentialsFile holds the Steam Web API key when no keyring is available.
func CredentialsFile() (string, error) { return configBase.resolve("steam-api-key") }

// ProfileDir returns the settings store directory. A non-empty override,
// such as the profile.dir setting, wins.
func ProfileDir(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}

	return configBase.resolve("profile")
}
