package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrUnknownStore is returned for a store name that does not exist.
	ErrUnknownStore = errors.New("unknown settings store")
	// ErrCorrupt marks a saved store that could not be parsed. Load still
	// returns the defaults alongside it.
	ErrCorrupt = errors.New("saved settings are corrupt")
)

// Store is one named settings store backed by a JSON file.
type Store[T any] struct {
	name     string
	path     string
	defaults func() T
	validate func(*T) error
}

func newStore[T any](dir, name string, defaults func() T, validate func(*T) error) *Store[T] {
	return &Store[T]{
		name:     name,
		path:     filepath.Join(dir, name+".json"),
		defaults: defaults,
		validate: validate,
	}
}

// Name returns the store name.
func (s *Store[T]) Name() string { return s.name }

// Path returns the backing file.
func (s *Store[T]) Path() string { return s.path }

// Defaults returns a fresh copy of the default values.
func (s *Store[T]) Defaults() T { return s.defaults() }

// Saved reports whether the store has a backing file.
func (s *Store[T]) Saved() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns the saved values merged over the defaults. A missing file
// yields the defaults. A corrupt file yields the defaults and ErrCorrupt.
func (s *Store[T]) Load() (T, error) {
	v := s.defaults()

	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path under the settings directory
	if err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}

		return v, fmt.Errorf("read %s settings: %w", s.name, err)
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return s.defaults(), fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	return v, nil
}

// Save validates v and writes it atomically.
func (s *Store[T]) Save(v T) error {
	if s.validate != nil {
		if err := s.validate(&v); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s settings: %w", s.name, err)
	}

	return writeFileAtomic(s.path, append(data, '\n'))
}

// Reset discards the saved values so the next Load returns the defaults.
func (s *Store[T]) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset %s settings: %w", s.name, err)
	}

	return nil
}

// Update loads the store, applies fn and saves the result.
func (s *Store[T]) Update(fn func(*T) error) (T, error) {
	v, err := s.Load()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return v, err
	}

	if err := fn(&v); err != nil {
		return v, err
	}

	return v, s.Save(v)
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}

	tmp := tmpFile.Name()
	if _, writeErr := tmpFile.Write(data); writeErr != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmp)

		return fmt.Errorf("write temp settings file: %w", writeErr)
	}

	if closeErr := tmpFile.Close(); closeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp settings file: %w", closeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		// Windows refuses to rename over an existing file.
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			_ = os.Remove(tmp)
			return fmt.Errorf("remove existing settings file: %w", removeErr)
		}

		if retryErr := os.Rename(tmp, path); retryErr != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("replace settings file: %w", retryErr)
		}
	}

	return nil
}
