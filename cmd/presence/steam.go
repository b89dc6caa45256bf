package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/profilecard/presence/internal/auth"
	"github.com/profilecard/presence/internal/card"
	"github.com/profilecard/presence/internal/config"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/output"
	"github.com/profilecard/presence/internal/prompt"
	"github.com/profilecard/presence/internal/steam"
)

func newSteamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steam",
		Short: "Show Steam presence, friends and games",
		Long: `Read a player's Steam presence through the Steam Web API. Requires a Web
API key stored with 'presence steam key set' or PRESENCE_STEAM_API_KEY.
The player defaults to steam.id.`,
	}

	cmd.AddCommand(newSteamStatusCmd())
	cmd.AddCommand(newSteamFriendsCmd())
	cmd.AddCommand(newSteamGamesCmd())
	cmd.AddCommand(newSteamKeyCmd())

	return cmd
}

// SteamStatus is the JSON shape of steam status.
type SteamStatus struct {
	SteamID    string `json:"steam_id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	StateColor string `json:"state_color"`
	Game       string `json:"game,omitempty"`
	ProfileURL string `json:"profile_url"`
	AvatarURL  string `json:"avatar_url"`
	Country    string `json:"country,omitempty"`
	LastSeen   string `json:"last_seen,omitempty"`
}

func newSteamStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [steam-id]",
		Short: "Show a player's Steam status",
		Long:  `Show the persona state, current game and profile details of a Steam player.`,
		Example: `  presence steam status
  presence steam status 76561197960287930 --json`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			steamID, err := steamIDArg(args, cfg)
			if err != nil {
				return err
			}

			client, err := newSteamClient(cfg)
			if err != nil {
				return err
			}

			var player *steam.Player

			err = withSpinner(out, "Fetching Steam profile", func() error {
				var fetchErr error
				player, fetchErr = client.PlayerSummary(cmd.Context(), steamID)

				return fetchErr
			})
			if err != nil {
				return steamError(err, steamID)
			}

			status := steamStatus(player)

			if out.JSON {
				return out.PrintJSON(status)
			}

			printSteamStatus(out, status)

			return nil
		},
	}
}

func steamStatus(p *steam.Player) SteamStatus {
	s := SteamStatus{
		SteamID:    p.SteamID,
		Name:       p.PersonaName,
		State:      p.PersonaState.String(),
		StateColor: p.PersonaState.Color(),
		Game:       p.GameExtraInfo,
		ProfileURL: p.ProfileURL,
		AvatarURL:  p.AvatarFull,
		Country:    p.CountryCode,
	}

	if p.PersonaState == steam.PersonaOffline {
		if seen := p.LastSeen(); !seen.IsZero() {
			s.LastSeen = seen.UTC().Format(time.RFC3339)
		}
	}

	return s
}

func printSteamStatus(out *output.Writer, s SteamStatus) {
	const width = 9

	out.Field(width, "Name", s.Name)
	out.Field(width, "State", s.State)

	if s.Game != "" {
		out.Field(width, "Playing", s.Game)
	}

	if s.LastSeen != "" {
		out.Field(width, "Last seen", s.LastSeen)
	}

	if s.Country != "" {
		out.Field(width, "Country", s.Country)
	}

	out.Field(width, "Profile", s.ProfileURL)
	out.Field(width, "Avatar", s.AvatarURL)
}

func newSteamFriendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "friends [steam-id]",
		Short: "List a player's Steam friends",
		Long:  `List the SteamID64 of every friend and the date the friendship started. The friend list must be public.`,
		Example: `  presence steam friends
  presence steam friends 76561197960287930 --json`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			steamID, err := steamIDArg(args, cfg)
			if err != nil {
				return err
			}

			client, err := newSteamClient(cfg)
			if err != nil {
				return err
			}

			var friends []steam.Friend

			err = withSpinner(out, "Fetching friend list", func() error {
				var fetchErr error
				friends, fetchErr = client.Friends(cmd.Context(), steamID)

				return fetchErr
			})
			if err != nil {
				return steamError(err, steamID)
			}

			if out.JSON {
				return out.PrintJSON(friends)
			}

			if len(friends) == 0 {
				out.Muted("No friends listed")
				return nil
			}

			for _, line := range friendRows(friends) {
				out.Println(line)
			}

			return nil
		},
	}
}

func friendRows(friends []steam.Friend) []string {
	rows := make([][]string, 0, len(friends)+1)
	rows = append(rows, []string{"STEAM ID", "FRIENDS SINCE"})

	for _, f := range friends {
		since := "-"
		if f.FriendSince > 0 {
			since = f.Since().UTC().Format(time.DateOnly)
		}

		rows = append(rows, []string{f.SteamID, since})
	}

	return card.Columns(rows)
}

func newSteamGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games [steam-id]",
		Short: "List recently played Steam games",
		Long: fmt.Sprintf(`List up to %d games played in the last two weeks with the time played in
that window and in total.`, steam.RecentGamesCount),
		Example: `  presence steam games
  presence steam games 76561197960287930 --json`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			steamID, err := steamIDArg(args, cfg)
			if err != nil {
				return err
			}

			client, err := newSteamClient(cfg)
			if err != nil {
				return err
			}

			var games []steam.Game

			err = withSpinner(out, "Fetching recent games", func() error {
				var fetchErr error
				games, fetchErr = client.RecentGames(cmd.Context(), steamID)

				return fetchErr
			})
			if err != nil {
				return steamError(err, steamID)
			}

			if out.JSON {
				return out.PrintJSON(games)
			}

			if len(games) == 0 {
				out.Muted("No games played in the last two weeks")
				return nil
			}

			for _, line := range gameRows(games) {
				out.Println(line)
			}

			return nil
		},
	}
}

func gameRows(games []steam.Game) []string {
	rows := make([][]string, 0, len(games)+1)
	rows = append(rows, []string{"GAME", "2 WEEKS", "TOTAL"})

	for _, g := range games {
		rows = append(rows, []string{g.Name, steam.FormatPlaytime(g.Playtime2Weeks), steam.FormatPlaytime(g.PlaytimeForever)})
	}

	return card.Columns(rows)
}

func newSteamKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the Steam Web API key",
		Long: `Store, inspect or remove the Steam Web API key. The key is kept in the
system keyring (macOS Keychain, Windows Credential Manager or Linux Secret
Service), or in a private file when no keyring is available.
PRESENCE_STEAM_API_KEY overrides the stored key.`,
	}

	cmd.AddCommand(newSteamKeySetCmd())
	cmd.AddCommand(newSteamKeyStatusCmd())
	cmd.AddCommand(newSteamKeyClearCmd())

	return cmd
}

func newSteamKeySetCmd() *cobra.Command {
	var (
		keyFlag  string
		noVerify bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a Steam Web API key",
		Long: `Prompt for a Steam Web API key and store it. When steam.id is configured
the key is first checked against the Steam Web API.`,
		Example: `  presence steam key set
  presence steam key set --key 0123456789ABCDEF0123456789ABCDEF --no-verify`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			if os.Getenv(auth.EnvVarName) != "" {
				out.Info("%s environment variable is set", auth.EnvVarName)
				out.Muted("Environment variable takes precedence over the stored key")
				out.Println()
			}

			key := keyFlag
			if key == "" {
				prompter := prompt.New(out)
				if !prompter.CanPrompt() {
					return clierrors.CannotPrompt(auth.EnvVarName)
				}

				var err error

				key, err = prompter.SteamKey()
				if err != nil {
					return fmt.Errorf("read steam key prompt: %w", err)
				}
			}

			if key == "" {
				return clierrors.SteamKeyEmpty()
			}

			if err := auth.ValidateKey(key); err != nil {
				return clierrors.SteamKeyRejected(err)
			}

			if steamID := cfg.SteamID(); steamID != "" && !noVerify {
				err := withSpinner(out, "Checking key with Steam", func() error {
					_, verifyErr := steam.NewClient(cfg.SteamAPIURL(), key).PlayerSummary(cmd.Context(), steamID)
					return verifyErr
				})
				if err != nil && !errors.Is(err, steam.ErrPlayerNotFound) {
					return steamError(err, steamID)
				}
			}

			source, err := auth.StoreSteamKey(key)
			if err != nil {
				return clierrors.ConfigFailed("store steam key", err)
			}

			out.Success("Steam key stored in %s", source)

			return nil
		},
	}

	cmd.Flags().StringVar(&keyFlag, "key", "", "Key for non-interactive use (prefer PRESENCE_STEAM_API_KEY to avoid shell history exposure)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Store the key without checking it against Steam")

	return cmd
}

// SteamKeyStatus is the JSON shape of steam key status.
type SteamKeyStatus struct {
	Configured bool   `json:"configured"`
	Source     string `json:"source,omitempty"`
	Key        string `json:"key,omitempty"`
}

func newSteamKeyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show where the Steam key comes from",
		Long:    `Report whether a Steam Web API key is available and where it was found. The key is masked.`,
		Example: `  presence steam key status`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			source, key := auth.SteamKey()
			status := SteamKeyStatus{Configured: key != ""}

			if status.Configured {
				status.Source = string(source)
				status.Key = auth.Mask(key)
			}

			if out.JSON {
				return out.PrintJSON(status)
			}

			if !status.Configured {
				out.Warning("No Steam Web API key configured")
				out.Muted("  Run 'presence steam key set' or set %s", auth.EnvVarName)

				return nil
			}

			out.Field(6, "Source", status.Source)
			out.Field(6, "Key", status.Key)

			return nil
		},
	}
}

func newSteamKeyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "clear",
		Short:   "Remove the stored Steam key",
		Long:    `Delete the Steam Web API key from the keyring and the credentials file.`,
		Example: `  presence steam key clear`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if err := auth.DeleteSteamKey(); err != nil {
				if errors.Is(err, auth.ErrNoKey) {
					out.Muted("No stored Steam key found")
					return nil
				}

				return clierrors.ConfigFailed("clear steam key", err)
			}

			out.Success("Steam key removed")

			if os.Getenv(auth.EnvVarName) != "" {
				out.Println()
				out.Warning("%s environment variable is still set", auth.EnvVarName)
			}

			return nil
		},
	}
}
