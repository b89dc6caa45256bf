package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/profilecard/presence/internal/card"
	"github.com/profilecard/presence/internal/config"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/lanyard"
	"github.com/profilecard/presence/internal/output"
)

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup [discord-id]",
		Short: "Fetch a user's current presence once",
		Long: `Ask the Lanyard REST API for the user's current presence and draw it as a
card. Fails with a join hint when Lanyard does not monitor the user. The
user defaults to presence.discord_id.`,
		Example: `  presence lookup 94490510688792576
  presence lookup --json`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			userID, err := discordIDArg(args, cfg)
			if err != nil {
				return err
			}

			var result *lanyard.LookupResult

			err = withSpinner(out, "Looking up "+userID, func() error {
				var lookupErr error
				result, lookupErr = lanyard.NewClient(cfg.APIURL()).Lookup(cmd.Context(), userID)

				return lookupErr
			})
			if err != nil {
				return clierrors.LookupFailed(err)
			}

			if !result.Tracked {
				return clierrors.NotTracked(userID, result.Reason)
			}

			now := time.Now()
			snap := result.Presence.Snapshot(now)

			if out.JSON {
				return out.PrintJSON(snap)
			}

			out.Println(cardRenderer(out, cfg).Render(card.View{Snapshot: snap, Now: now}))

			return nil
		},
	}
}
