package lanyard

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// Status is a normalized Discord online status.
type Status string

// Known statuses.
const (
	StatusOnline  = Status(discordgo.StatusOnline)
	StatusIdle    = Status(discordgo.StatusIdle)
	StatusDND     = Status(discordgo.StatusDoNotDisturb)
	StatusOffline = Status(discordgo.StatusOffline)
)

// ParseStatus maps a wire status to a Status. Anything unknown, including
// "invisible", is offline.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusOnline, StatusIdle, StatusDND:
		return Status(s)
	default:
		return StatusOffline
	}
}

// Label returns a human-readable status name.
func (s Status) Label() string {
	switch s {
	case StatusOnline:
		return "Online"
	case StatusIdle:
		return "Idle"
	case StatusDND:
		return "Do Not Disturb"
	default:
		return "Offline"
	}
}

// DiscordUser is the identity sub-object of a presence record.
type DiscordUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name"`
	DisplayName   string `json:"display_name"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
	Banner        string `json:"banner"`
	Bot           bool   `json:"bot"`
	PublicFlags   int    `json:"public_flags"`
}

// Spotify describes the track a user is listening to.
type Spotify struct {
	TrackID     string               `json:"track_id"`
	Song        string               `json:"song"`
	Artist      string               `json:"artist"`
	Album       string               `json:"album"`
	AlbumArtURL string               `json:"album_art_url"`
	Timestamps  discordgo.TimeStamps `json:"timestamps"`
}

// Presence is a presence record as sent by Lanyard.
type Presence struct {
	DiscordUser            DiscordUser          `json:"discord_user"`
	DiscordStatus          string               `json:"discord_status"`
	Activities             []discordgo.Activity `json:"activities"`
	ListeningToSpotify     bool                 `json:"listening_to_spotify"`
	Spotify                *Spotify             `json:"spotify"`
	ActiveOnDiscordDesktop bool                 `json:"active_on_discord_desktop"`
	ActiveOnDiscordMobile  bool                 `json:"active_on_discord_mobile"`
	ActiveOnDiscordWeb     bool                 `json:"active_on_discord_web"`
	KV                     map[string]string    `json:"kv,omitempty"`
}

// MediaKind distinguishes tracks from games.
type MediaKind string

// Media kinds.
const (
	MediaTrack MediaKind = "track"
	MediaGame  MediaKind = "game"
)

// Media is what the user is currently playing.
type Media struct {
	Kind    MediaKind `json:"kind"`
	Name    string    `json:"name"`
	Artist  string    `json:"artist,omitempty"`
	Album   string    `json:"album,omitempty"`
	ArtURL  string    `json:"art_url,omitempty"`
	Details string    `json:"details,omitempty"`
	State   string    `json:"state,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Elapsed returns how long the media has been playing at now.
func (m *Media) Elapsed(now time.Time) time.Duration {
	if m.Start.IsZero() || now.Before(m.Start) {
		return 0
	}

	elapsed := now.Sub(m.Start)
	if total := m.Duration(); total > 0 && elapsed > total {
		return total
	}

	return elapsed
}

// Duration returns the total length, or zero when no end is known.
func (m *Media) Duration() time.Duration {
	if m.Start.IsZero() || m.End.IsZero() || !m.End.After(m.Start) {
		return 0
	}

	return m.End.Sub(m.Start)
}

// Snapshot is a complete, self-contained view of a user's presence.
// Each snapshot replaces the previous one.
type Snapshot struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	AvatarHash   string    `json:"avatar_hash,omitempty"`
	BannerHash   string    `json:"banner_hash,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	BannerURL    string    `json:"banner_url,omitempty"`
	Status       Status    `json:"status"`
	Platforms    []string  `json:"platforms,omitempty"`
	CustomStatus string    `json:"custom_status,omitempty"`
	NowPlaying   *Media    `json:"now_playing,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Snapshot projects the record into a Snapshot stamped with receivedAt.
func (p *Presence) Snapshot(receivedAt time.Time) *Snapshot {
	u := &discordgo.User{
		ID:            p.DiscordUser.ID,
		Username:      p.DiscordUser.Username,
		Discriminator: p.DiscordUser.Discriminator,
		Avatar:        p.DiscordUser.Avatar,
		Banner:        p.DiscordUser.Banner,
	}

	s := &Snapshot{
		UserID:      p.DiscordUser.ID,
		Username:    p.DiscordUser.Username,
		DisplayName: p.DisplayName(),
		AvatarHash:  p.DiscordUser.Avatar,
		BannerHash:  p.DiscordUser.Banner,
		BannerURL:   u.BannerURL("512"),
		Status:      ParseStatus(p.DiscordStatus),
		NowPlaying:  p.NowPlaying(),
		ReceivedAt:  receivedAt,
	}

	// An empty hash means the Discord default avatar; leave the URL empty
	// so the configured profile image is used instead.
	if u.Avatar != "" {
		s.AvatarURL = u.AvatarURL("128")
	}

	if p.ActiveOnDiscordDesktop {
		s.Platforms = append(s.Platforms, "desktop")
	}

	if p.ActiveOnDiscordMobile {
		s.Platforms = append(s.Platforms, "mobile")
	}

	if p.ActiveOnDiscordWeb {
		s.Platforms = append(s.Platforms, "web")
	}

	for i := range p.Activities {
		if p.Activities[i].Type == discordgo.ActivityTypeCustom {
			s.CustomStatus = p.Activities[i].State
			break
		}
	}

	return s
}

// DisplayName prefers the global display name over the username.
func (p *Presence) DisplayName() string {
	switch {
	case p.DiscordUser.GlobalName != "":
		return p.DiscordUser.GlobalName
	case p.DiscordUser.DisplayName != "":
		return p.DiscordUser.DisplayName
	default:
		return p.DiscordUser.Username
	}
}

// NowPlaying returns the Spotify track when listening, otherwise the first
// named game activity, otherwise nil.
func (p *Presence) NowPlaying() *Media {
	if p.ListeningToSpotify && p.Spotify != nil {
		return &Media{
			Kind:   MediaTrack,
			Name:   p.Spotify.Song,
			Artist: p.Spotify.Artist,
			Album:  p.Spotify.Album,
			ArtURL: p.Spotify.AlbumArtURL,
			Start:  millis(p.Spotify.Timestamps.StartTimestamp),
			End:    millis(p.Spotify.Timestamps.EndTimestamp),
		}
	}

	for i := range p.Activities {
		a := &p.Activities[i]
		if a.Type != discordgo.ActivityTypeGame || a.Name == "" {
			continue
		}

		return &Media{
			Kind:    MediaGame,
			Name:    a.Name,
			Details: a.Details,
			State:   a.State,
			Start:   millis(a.Timestamps.StartTimestamp),
			End:     millis(a.Timestamps.EndTimestamp),
		}
	}

	return nil
}

func millis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms).UTC()
}
