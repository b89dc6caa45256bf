package card

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/profilecard/presence/internal/lanyard"
	"github.com/profilecard/presence/internal/profile"
)

// DefaultWidth is the card width when the terminal size is unknown.
const DefaultWidth = 48

// Palette holds the hex colours a card is drawn with.
type Palette struct {
	Online   string
	Idle     string
	DND      string
	Offline  string
	UserText string
	BioText  string
	Border   string
}

// DefaultPalette returns the stock colours.
func DefaultPalette() Palette {
	return PaletteFrom(profile.DefaultColors())
}

// PaletteFrom takes the card colours from the colour store.
func PaletteFrom(c profile.Colors) Palette {
	return Palette{
		Online:   c.StatusOnline,
		Idle:     c.StatusIdle,
		DND:      c.StatusDND,
		Offline:  c.StatusOffline,
		UserText: c.DiscordUserText,
		BioText:  c.DiscordBioText,
		Border:   c.NormalOutlineColor,
	}
}

// StatusColor returns the colour for status.
func (p Palette) StatusColor(status lanyard.Status) string {
	switch status {
	case lanyard.StatusOnline:
		return p.Online
	case lanyard.StatusIdle:
		return p.Idle
	case lanyard.StatusDND:
		return p.DND
	default:
		return p.Offline
	}
}

// View is everything a card shows.
type View struct {
	Snapshot *lanyard.Snapshot
	// Tracked is nil until the tracking check has answered.
	Tracked *bool
	Reason  string
	State   string
	Now     time.Time
}

// NotTracked reports whether the tracking check said the user is unknown.
func (v View) NotTracked() bool {
	return v.Tracked != nil && !*v.Tracked
}

// Lines returns the card body without styling.
func (v View) Lines() []string {
	if v.Snapshot == nil {
		if v.NotTracked() {
			return notTrackedLines(v.Reason)
		}

		return []string{"Waiting for presence..."}
	}

	s := v.Snapshot

	header := s.DisplayName
	if s.Username != "" && s.Username != s.DisplayName {
		header += "  @" + s.Username
	}

	status := "● " + s.Status.Label()
	if len(s.Platforms) > 0 {
		status += "  " + strings.Join(s.Platforms, ", ")
	}

	lines := []string{header, status}

	if s.CustomStatus != "" {
		lines = append(lines, "“"+s.CustomStatus+"”")
	}

	if v.NotTracked() {
		return append(lines, notTrackedLines(v.Reason)...)
	}

	return append(lines, MediaLines(s.NowPlaying, v.Now)...)
}

// MediaLines describes what is playing at now. Tracks show m:ss progress;
// games show time elapsed since they started.
func MediaLines(m *lanyard.Media, now time.Time) []string {
	if m == nil {
		return nil
	}

	switch m.Kind {
	case lanyard.MediaTrack:
		lines := []string{"♪ " + m.Name + " — " + m.Artist}

		if total := m.Duration(); total > 0 {
			lines = append(lines, fmt.Sprintf("  %s / %s", FormatClock(m.Elapsed(now)), FormatClock(total)))
		}

		return lines
	default:
		line := "🎮 " + m.Name
		if m.Details != "" {
			line += " — " + m.Details
		}

		lines := []string{line}

		if m.State != "" {
			lines = append(lines, "  "+m.State)
		}

		if !m.Start.IsZero() {
			if elapsed := FormatElapsed(now.Sub(m.Start)); elapsed != "" {
				lines = append(lines, "  "+elapsed+" elapsed")
			}
		}

		return lines
	}
}

func notTrackedLines(reason string) []string {
	if reason == "" {
		reason = "Not tracked by Lanyard"
	}

	return []string{reason, "Join Lanyard: " + lanyard.InviteURL}
}

// Summary renders the snapshot as one line for log-style output.
func Summary(s *lanyard.Snapshot, now time.Time) string {
	parts := []string{s.DisplayName, s.Status.Label()}

	if m := s.NowPlaying; m != nil {
		media := MediaLines(m, now)
		parts = append(parts, strings.TrimSpace(media[0]))
	}

	return strings.Join(parts, " · ")
}

// Renderer draws cards with lipgloss.
type Renderer struct {
	r       *lipgloss.Renderer
	palette Palette
	width   int
}

// NewRenderer creates a renderer whose colour support follows w.
func NewRenderer(w io.Writer, palette Palette) *Renderer {
	return &Renderer{r: lipgloss.NewRenderer(w), palette: palette, width: DefaultWidth}
}

// WithWidth sets the outer card width. Values below 20 are ignored.
func (r *Renderer) WithWidth(width int) *Renderer {
	if width >= 20 {
		r.width = width
	}

	return r
}

// Render draws v as a bordered card.
func (r *Renderer) Render(v View) string {
	inner := r.width - 4
	lines := v.Lines()

	name := r.r.NewStyle().Bold(true).Foreground(lipgloss.Color(r.palette.UserText))
	body := r.r.NewStyle().Foreground(lipgloss.Color(r.palette.BioText))

	out := make([]string, 0, len(lines)+1)

	for i, line := range lines {
		line = ansi.Truncate(line, inner, "…")

		switch {
		case i == 0 && v.Snapshot != nil:
			out = append(out, name.Render(line))
		case i == 1 && v.Snapshot != nil:
			dot := r.r.NewStyle().Foreground(lipgloss.Color(r.palette.StatusColor(v.Snapshot.Status)))
			out = append(out, dot.Render(line))
		default:
			out = append(out, body.Render(line))
		}
	}

	if v.State != "" {
		out = append(out, r.r.NewStyle().Faint(true).Render(ansi.Truncate("gateway: "+v.State, inner, "…")))
	}

	border := r.palette.Border
	if v.Snapshot != nil {
		border = r.palette.StatusColor(v.Snapshot.Status)
	}

	box := r.r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(0, 1).
		Width(r.width - 2)

	return box.Render(strings.Join(out, "\n"))
}
