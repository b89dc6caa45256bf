package profile

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Store names.
const (
	StoreColors  = "colors"
	StoreImages  = "images"
	StoreLinks   = "links"
	StoreProfile = "profile"
)

var (
	// ErrUnknownKey is returned for a setting key a store does not have.
	ErrUnknownKey = errors.New("unknown setting")
	// ErrInvalidValue is returned when a value does not fit its setting.
	ErrInvalidValue = errors.New("invalid setting value")
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Section is the untyped view of a store used by generic commands.
type Section interface {
	Name() string
	Path() string
	Saved() bool
	Values() (map[string]any, error)
	Set(key, value string) error
	Reset() error
}

// Stores groups the four settings stores kept in one directory.
type Stores struct {
	Colors  *Store[Colors]
	Images  *Store[Images]
	Links   *Store[Links]
	Profile *Store[Card]
}

// Open returns the stores rooted at dir. Nothing is read until Load.
func Open(dir string) *Stores {
	return &Stores{
		Colors:  newStore(dir, StoreColors, DefaultColors, validateColors),
		Images:  newStore(dir, StoreImages, DefaultImages, nil),
		Links:   newStore(dir, StoreLinks, DefaultLinks, validateLinks),
		Profile: newStore(dir, StoreProfile, DefaultCard, validateCard),
	}
}

// Names lists the store names in display order.
func Names() []string {
	return []string{StoreColors, StoreImages, StoreLinks, StoreProfile}
}

// Section returns the store called name.
func (s *Stores) Section(name string) (Section, error) {
	switch name {
	case StoreColors:
		return section[Colors]{s.Colors}, nil
	case StoreImages:
		return section[Images]{s.Images}, nil
	case StoreLinks:
		return section[Links]{s.Links}, nil
	case StoreProfile:
		return section[Card]{s.Profile}, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownStore, name, strings.Join(Names(), ", "))
	}
}

// Sections returns every store in display order.
func (s *Stores) Sections() []Section {
	out := make([]Section, 0, len(Names()))

	for _, name := range Names() {
		sec, _ := s.Section(name)
		out = append(out, sec)
	}

	return out
}

// RemoveLink deletes a link along with its colour and image overrides.
func (s *Stores) RemoveLink(id string) error {
	if _, err := s.Links.Update(func(l *Links) error { return l.Remove(id) }); err != nil {
		return err
	}

	if _, err := s.Colors.Update(func(c *Colors) error {
		delete(c.CustomLinkColors, id)
		return nil
	}); err != nil {
		return err
	}

	_, err := s.Images.Update(func(i *Images) error {
		delete(i.CustomLinkImages, id)
		return nil
	})

	return err
}

type section[T any] struct {
	*Store[T]
}

// Values returns the loaded store as a generic map keyed by setting name.
func (s section[T]) Values() (map[string]any, error) {
	v, err := s.Load()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return nil, err
	}

	return toMap(v)
}

// Set assigns one setting. Keys of map settings take the form
// "customLinkColors.<link-id>". The value is parsed according to the type of
// the current setting.
func (s section[T]) Set(key, value string) error {
	_, err := s.Update(func(v *T) error {
		m, err := toMap(*v)
		if err != nil {
			return err
		}

		if err := assign(m, key, value); err != nil {
			return err
		}

		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode %s settings: %w", s.name, err)
		}

		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}

		return nil
	})

	return err
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	return m, nil
}

func assign(m map[string]any, key, value string) error {
	top, sub, nested := strings.Cut(key, ".")

	current, ok := m[top]
	if !ok {
		return fmt.Errorf("%w: %q (valid: %s)", ErrUnknownKey, key, strings.Join(SortedKeys(m), ", "))
	}

	if nested {
		inner, ok := current.(map[string]any)
		if !ok || sub == "" {
			return fmt.Errorf("%w: %q is not a map setting", ErrUnknownKey, top)
		}

		if value == "" {
			delete(inner, sub)
		} else {
			inner[sub] = value
		}

		return nil
	}

	switch current.(type) {
	case string:
		m[top] = value
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false", ErrInvalidValue, key)
		}

		m[top] = b
	case float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number", ErrInvalidValue, key)
		}

		m[top] = n
	case nil:
		m[top] = value
	default:
		return fmt.Errorf("%w: %s cannot be set directly", ErrInvalidValue, key)
	}

	return nil
}

// SortedKeys returns the keys of m in order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func validateColors(c *Colors) error {
	fields, err := toMap(*c)
	if err != nil {
		return err
	}

	for key, v := range fields {
		if s, ok := v.(string); ok && !hexColor.MatchString(s) {
			return fmt.Errorf("%w: %s must be a hex colour, got %q", ErrInvalidValue, key, s)
		}
	}

	for id, s := range c.CustomLinkColors {
		if !hexColor.MatchString(s) {
			return fmt.Errorf("%w: customLinkColors.%s must be a hex colour, got %q", ErrInvalidValue, id, s)
		}
	}

	return nil
}

func validateCard(c *Card) error {
	if c.MotionBlurIntensity < 0 || c.MotionBlurIntensity > 100 {
		return fmt.Errorf("%w: motionBlurIntensity must be between 0 and 100, got %d", ErrInvalidValue, c.MotionBlurIntensity)
	}

	return nil
}

func validateLinks(l *Links) error {
	if l.DisplayMode != DisplayBox && l.DisplayMode != DisplayMiniIcons {
		return fmt.Errorf("%w: displayMode must be box or mini-icons, got %q", ErrInvalidValue, l.DisplayMode)
	}

	seen := make(map[string]bool, len(l.Links))

	for _, link := range l.Links {
		if seen[link.ID] {
			return fmt.Errorf("%w: duplicate link id %q", ErrInvalidValue, link.ID)
		}

		seen[link.ID] = true

		if err := validateLink(link); err != nil {
			return err
		}
	}

	return nil
}

func validateLink(link Link) error {
	if strings.TrimSpace(link.Name) == "" {
		return fmt.Errorf("%w: link name is required", ErrInvalidValue)
	}

	u, err := url.Parse(link.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: link url must be an absolute http(s) url, got %q", ErrInvalidValue, link.URL)
	}

	if !link.DisplayMode.Valid() {
		return fmt.Errorf("%w: link displayMode must be box, mini-icons or both, got %q", ErrInvalidValue, link.DisplayMode)
	}

	if link.Color != "" && !hexColor.MatchString(link.Color) {
		return fmt.Errorf("%w: link color must be a hex colour, got %q", ErrInvalidValue, link.Color)
	}

	return nil
}
