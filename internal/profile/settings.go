// Package profile persists the profile card's settings stores: colours,
// images, links and card behaviour. Each store lives in its own JSON file and
// loads with saved values merged over the defaults.
package profile

// Colors holds the card text and outline colours.
type Colors struct {
	WebsiteText         string            `json:"websiteText" yaml:"websiteText" toml:"websiteText"`
	WebsiteIcon         string            `json:"websiteIcon" yaml:"websiteIcon" toml:"websiteIcon"`
	ProfileText         string            `json:"profileText" yaml:"profileText" toml:"profileText"`
	BioText             string            `json:"bioText" yaml:"bioText" toml:"bioText"`
	DiscordProfile      string            `json:"discordProfile" yaml:"discordProfile" toml:"discordProfile"`
	DiscordUserText     string            `json:"discordUserText" yaml:"discordUserText" toml:"discordUserText"`
	DiscordBioText      string            `json:"discordBioText" yaml:"discordBioText" toml:"discordBioText"`
	SteamUserText       string            `json:"steamUserText" yaml:"steamUserText" toml:"steamUserText"`
	ViewsText           string            `json:"viewsText" yaml:"viewsText" toml:"viewsText"`
	ViewsIcon           string            `json:"viewsIcon" yaml:"viewsIcon" toml:"viewsIcon"`
	NormalOutlineColor  string            `json:"normalOutlineColor" yaml:"normalOutlineColor" toml:"normalOutlineColor"`
	NormalGlowColor     string            `json:"normalGlowColor" yaml:"normalGlowColor" toml:"normalGlowColor"`
	HoverGlowColor      string            `json:"hoverGlowColor" yaml:"hoverGlowColor" toml:"hoverGlowColor"`
	HoverBorderColor    string            `json:"hoverBorderColor" yaml:"hoverBorderColor" toml:"hoverBorderColor"`
	HoverEffectsEnabled bool              `json:"hoverEffectsEnabled" yaml:"hoverEffectsEnabled" toml:"hoverEffectsEnabled"`
	StatusOnline        string            `json:"statusOnline" yaml:"statusOnline" toml:"statusOnline"`
	StatusIdle          string            `json:"statusIdle" yaml:"statusIdle" toml:"statusIdle"`
	StatusDND           string            `json:"statusDnd" yaml:"statusDnd" toml:"statusDnd"`
	StatusOffline       string            `json:"statusOffline" yaml:"statusOffline" toml:"statusOffline"`
	CustomLinkColors    map[string]string `json:"customLinkColors" yaml:"customLinkColors" toml:"customLinkColors"`
}

// DefaultColors returns the stock palette.
func DefaultColors() Colors {
	return Colors{
		WebsiteText:         "#374151",
		WebsiteIcon:         "#6b7280",
		ProfileText:         "#1f2937",
		BioText:             "#6b7280",
		DiscordProfile:      "#6b7280",
		DiscordUserText:     "#1f2937",
		DiscordBioText:      "#6b7280",
		SteamUserText:       "#6b7280",
		ViewsText:           "#ffffff",
		ViewsIcon:           "#ffffff",
		NormalOutlineColor:  "#e5e7eb",
		NormalGlowColor:     "#f3f4f6",
		HoverGlowColor:      "#3b82f6",
		HoverBorderColor:    "#3b82f6",
		HoverEffectsEnabled: true,
		StatusOnline:        "#22c55e",
		StatusIdle:          "#f59e0b",
		StatusDND:           "#ef4444",
		StatusOffline:       "#6b7280",
		CustomLinkColors:    map[string]string{},
	}
}

// CustomFile is an uploaded media file referenced by the card.
type CustomFile struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	URL  string `json:"url" yaml:"url" toml:"url"`
	Type string `json:"type" yaml:"type" toml:"type"`
}

// Images holds the media references shown on the card.
type Images struct {
	Avatar              string            `json:"avatar" yaml:"avatar" toml:"avatar"`
	AdditionalInfoImage string            `json:"additionalInfoImage" yaml:"additionalInfoImage" toml:"additionalInfoImage"`
	PeakMusicBadge      string            `json:"peakMusicBadge" yaml:"peakMusicBadge" toml:"peakMusicBadge"`
	NotoriousBadge      string            `json:"notoriousBadge" yaml:"notoriousBadge" toml:"notoriousBadge"`
	TouhouBadge         string            `json:"touhouBadge" yaml:"touhouBadge" toml:"touhouBadge"`
	BackgroundVideo     string            `json:"backgroundVideo" yaml:"backgroundVideo" toml:"backgroundVideo"`
	BackgroundAudio     string            `json:"backgroundAudio" yaml:"backgroundAudio" toml:"backgroundAudio"`
	DiscordBanner       string            `json:"discordBanner" yaml:"discordBanner" toml:"discordBanner"`
	SteamPfp            string            `json:"steamPfp" yaml:"steamPfp" toml:"steamPfp"`
	CustomFiles         []CustomFile      `json:"customFiles" yaml:"customFiles" toml:"customFiles"`
	CustomLinkImages    map[string]string `json:"customLinkImages" yaml:"customLinkImages" toml:"customLinkImages"`
}

// DefaultImages returns the stock media set.
func DefaultImages() Images {
	return Images{
		Avatar:              "/avatar.png",
		AdditionalInfoImage: "/additional-info.jpg",
		PeakMusicBadge:      "/badges/peak-music.png",
		NotoriousBadge:      "/badges/notorious.png",
		TouhouBadge:         "/badges/touhou.gif",
		BackgroundVideo:     "/background.mp4",
		BackgroundAudio:     "/background.mp3",
		DiscordBanner:       "/discord-banner.gif",
		SteamPfp:            "/steam.svg",
		CustomFiles:         []CustomFile{},
		CustomLinkImages:    map[string]string{},
	}
}

// DisplayMode says where a link is shown.
type DisplayMode string

// Display modes. Links may use any of the three; the store-wide mode is box
// or mini-icons.
const (
	DisplayBox       DisplayMode = "box"
	DisplayMiniIcons DisplayMode = "mini-icons"
	DisplayBoth      DisplayMode = "both"
)

// Valid reports whether m is a known mode.
func (m DisplayMode) Valid() bool {
	return m == DisplayBox || m == DisplayMiniIcons || m == DisplayBoth
}

// Link is a custom link on the card.
type Link struct {
	ID          string      `json:"id" yaml:"id" toml:"id"`
	Name        string      `json:"name" yaml:"name" toml:"name"`
	URL         string      `json:"url" yaml:"url" toml:"url"`
	Icon        string      `json:"icon" yaml:"icon" toml:"icon"`
	Color       string      `json:"color" yaml:"color" toml:"color"`
	DisplayMode DisplayMode `json:"displayMode" yaml:"displayMode" toml:"displayMode"`
}

// Links holds the custom links and the store-wide display mode.
type Links struct {
	Links       []Link      `json:"links" yaml:"links" toml:"links"`
	DisplayMode DisplayMode `json:"displayMode" yaml:"displayMode" toml:"displayMode"`
}

// DefaultLinks returns an empty link set shown in the profile box.
func DefaultLinks() Links {
	return Links{Links: []Link{}, DisplayMode: DisplayBox}
}

// Card holds card behaviour toggles.
type Card struct {
	MotionBlurEnabled     bool `json:"motionBlurEnabled" yaml:"motionBlurEnabled" toml:"motionBlurEnabled"`
	MotionBlurIntensity   int  `json:"motionBlurIntensity" yaml:"motionBlurIntensity" toml:"motionBlurIntensity"`
	MotionBlurOnHoverOnly bool `json:"motionBlurOnHoverOnly" yaml:"motionBlurOnHoverOnly" toml:"motionBlurOnHoverOnly"`
}

// DefaultCard returns the stock behaviour.
func DefaultCard() Card {
	return Card{
		MotionBlurEnabled:     true,
		MotionBlurIntensity:   50,
		MotionBlurOnHoverOnly: true,
	}
}
