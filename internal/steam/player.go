// Package steam reads profile, friend and recently played data from the
// Steam Web API.
package steam

import (
	"fmt"
	"time"
)

// PersonaState is Steam's online status for a player.
type PersonaState int

// Persona states as reported by GetPlayerSummaries.
const (
	PersonaOffline PersonaState = iota
	PersonaOnline
	PersonaBusy
	PersonaAway
	PersonaSnooze
	PersonaLookingToTrade
	PersonaLookingToPlay
)

// String returns the lowercase label Steam clients show. Unknown states read
// as offline.
func (s PersonaState) String() string {
	switch s {
	case PersonaOnline:
		return "online"
	case PersonaBusy:
		return "busy"
	case PersonaAway:
		return "away"
	case PersonaSnooze:
		return "snooze"
	case PersonaLookingToTrade:
		return "looking to trade"
	case PersonaLookingToPlay:
		return "looking to play"
	default:
		return "offline"
	}
}

// Color returns the hex colour used for the state badge.
func (s PersonaState) Color() string {
	switch s {
	case PersonaOnline:
		return "#22c55e"
	case PersonaBusy:
		return "#ef4444"
	case PersonaAway:
		return "#f59e0b"
	case PersonaSnooze:
		return "#8b5cf6"
	case PersonaLookingToTrade:
		return "#3b82f6"
	case PersonaLookingToPlay:
		return "#06b6d4"
	default:
		return "#6b7280"
	}
}

// Player is one entry of GetPlayerSummaries.
type Player struct {
	SteamID                  string       `json:"steamid"`
	PersonaName              string       `json:"personaname"`
	ProfileURL               string       `json:"profileurl"`
	Avatar                   string       `json:"avatar"`
	AvatarMedium             string       `json:"avatarmedium"`
	AvatarFull               string       `json:"avatarfull"`
	PersonaState             PersonaState `json:"personastate"`
	CommunityVisibilityState int          `json:"communityvisibilitystate"`
	ProfileState             int          `json:"profilestate"`
	LastLogoff               int64        `json:"lastlogoff"`
	RealName                 string       `json:"realname,omitempty"`
	TimeCreated              int64        `json:"timecreated,omitempty"`
	GameID                   string       `json:"gameid,omitempty"`
	GameExtraInfo            string       `json:"gameextrainfo,omitempty"`
	CountryCode              string       `json:"loccountrycode,omitempty"`
}

// InGame reports whether the player is currently running a game.
func (p *Player) InGame() bool {
	return p.GameExtraInfo != ""
}

// LastSeen returns the last logoff time, or the zero time when unknown.
func (p *Player) LastSeen() time.Time {
	if p.LastLogoff <= 0 {
		return time.Time{}
	}

	return time.Unix(p.LastLogoff, 0)
}

// Friend is one entry of GetFriendList.
type Friend struct {
	SteamID      string `json:"steamid"`
	Relationship string `json:"relationship"`
	FriendSince  int64  `json:"friend_since"`
}

// Since returns when the friendship started.
func (f Friend) Since() time.Time {
	return time.Unix(f.FriendSince, 0)
}

// Game is one entry of GetRecentlyPlayedGames. Playtimes are in minutes.
type Game struct {
	AppID           int    `json:"appid"`
	Name            string `json:"name"`
	Playtime2Weeks  int    `json:"playtime_2weeks"`
	PlaytimeForever int    `json:"playtime_forever"`
	ImgIconURL      string `json:"img_icon_url"`
}

// IconURL returns the community CDN URL of the game icon.
func (g Game) IconURL() string {
	if g.ImgIconURL == "" {
		return ""
	}

	return fmt.Sprintf("https://media.steampowered.com/steamcommunity/public/images/apps/%d/%s.jpg", g.AppID, g.ImgIconURL)
}

// FormatPlaytime renders minutes as "Xd Yh", "Xh Ym" or "Xm".
func FormatPlaytime(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}

	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
