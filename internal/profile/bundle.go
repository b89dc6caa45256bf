package profile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Format is a bundle encoding.
type Format string

// Supported bundle formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned for an unsupported bundle format.
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat accepts json, yaml, yml or toml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: json, yaml, toml)", ErrUnknownFormat, s)
	}
}

// FormatForPath infers the format from a file extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Bundle is every store in one document.
type Bundle struct {
	Colors  Colors `json:"colors" yaml:"colors" toml:"colors"`
	Images  Images `json:"images" yaml:"images" toml:"images"`
	Links   Links  `json:"links" yaml:"links" toml:"links"`
	Profile Card   `json:"profile" yaml:"profile" toml:"profile"`
}

// Snapshot loads every store into a Bundle.
func (s *Stores) Snapshot() (Bundle, error) {
	colors, colorsErr := s.Colors.Load()
	images, imagesErr := s.Images.Load()
	links, linksErr := s.Links.Load()
	card, cardErr := s.Profile.Load()

	b := Bundle{Colors: colors, Images: images, Links: links, Profile: card}

	return b, multierr.Combine(colorsErr, imagesErr, linksErr, cardErr)
}

// Export encodes every store in format.
func (s *Stores) Export(format Format) ([]byte, error) {
	b, err := s.Snapshot()
	if err != nil && !isOnlyCorrupt(err) {
		return nil, err
	}

	return b.Encode(format)
}

// Import decodes data over the current values of every store and saves them
// all. Sections missing from data keep their current values. Nothing is
// written unless every section validates.
func (s *Stores) Import(data []byte, format Format) (Bundle, error) {
	b, err := s.Snapshot()
	if err != nil && !isOnlyCorrupt(err) {
		return b, err
	}

	if err := b.Decode(data, format); err != nil {
		return b, err
	}

	if err := multierr.Combine(
		validateColors(&b.Colors),
		validateLinks(&b.Links),
		validateCard(&b.Profile),
	); err != nil {
		return b, err
	}

	return b, multierr.Combine(
		s.Colors.Save(b.Colors),
		s.Images.Save(b.Images),
		s.Links.Save(b.Links),
		s.Profile.Save(b.Profile),
	)
}

// Encode renders the bundle in format.
func (b Bundle) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(b, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}

		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}

		return data, nil
	case FormatTOML:
		data, err := toml.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}

		return data, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Decode parses data in format over b.
func (b *Bundle) Decode(data []byte, format Format) error {
	var err error

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, b)
	case FormatYAML:
		err = yaml.Unmarshal(data, b)
	case FormatTOML:
		err = toml.Unmarshal(data, b)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidValue, format, err)
	}

	return nil
}

func isOnlyCorrupt(err error) bool {
	for _, e := range multierr.Errors(err) {
		if !errors.Is(e, ErrCorrupt) {
			return false
		}
	}

	return true
}
