package profile

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrLinkNotFound is returned when no link has the requested id.
var ErrLinkNotFound = errors.New("link not found")

// LinkPatch lists the link fields to change. Nil fields are left alone.
type LinkPatch struct {
	Name        *string
	URL         *string
	Icon        *string
	Color       *string
	DisplayMode *DisplayMode
}

// Find returns the link with id.
func (l *Links) Find(id string) (Link, bool) {
	for _, link := range l.Links {
		if link.ID == id {
			return link, true
		}
	}

	return Link{}, false
}

// Add appends link under a new id and returns the stored copy. An empty
// display mode defaults to box.
func (l *Links) Add(link Link) (Link, error) {
	link.ID = uuid.NewString()

	if link.DisplayMode == "" {
		link.DisplayMode = DisplayBox
	}

	if err := validateLink(link); err != nil {
		return Link{}, err
	}

	l.Links = append(l.Links, link)

	return link, nil
}

// Update applies patch to the link with id.
func (l *Links) Update(id string, patch LinkPatch) (Link, error) {
	for i := range l.Links {
		if l.Links[i].ID != id {
			continue
		}

		updated := l.Links[i]
		if patch.Name != nil {
			updated.Name = *patch.Name
		}

		if patch.URL != nil {
			updated.URL = *patch.URL
		}

		if patch.Icon != nil {
			updated.Icon = *patch.Icon
		}

		if patch.Color != nil {
			updated.Color = *patch.Color
		}

		if patch.DisplayMode != nil {
			updated.DisplayMode = *patch.DisplayMode
		}

		if err := validateLink(updated); err != nil {
			return Link{}, err
		}

		l.Links[i] = updated

		return updated, nil
	}

	return Link{}, fmt.Errorf("%w: %s", ErrLinkNotFound, id)
}

// Remove deletes the link with id.
func (l *Links) Remove(id string) error {
	for i := range l.Links {
		if l.Links[i].ID == id {
			l.Links = append(l.Links[:i], l.Links[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrLinkNotFound, id)
}

// Shown returns the links visible in mode. Links marked both appear in
// either place.
func (l *Links) Shown(mode DisplayMode) []Link {
	var out []Link

	for _, link := range l.Links {
		if link.DisplayMode == mode || link.DisplayMode == DisplayBoth {
			out = append(out, link)
		}
	}

	return out
}
