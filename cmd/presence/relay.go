package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/profilecard/presence/internal/card"
	"github.com/profilecard/presence/internal/config"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/observability"
	"github.com/profilecard/presence/internal/output"
	"github.com/profilecard/presence/internal/relay"
)

func newRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Read snapshots shared through Redis",
		Long: `Snapshots published by 'presence watch --relay' are shared on Redis pub/sub
channels named <relay.channel_prefix>:<discord-id>.`,
	}

	cmd.AddCommand(newRelayTailCmd())

	return cmd
}

func newRelayTailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail [discord-id]",
		Short: "Print snapshots relayed by other watchers",
		Long: `Subscribe to the user's relay channel and print every snapshot another
watcher publishes, until interrupted. The user defaults to
presence.discord_id.`,
		Example: `  presence relay tail
  presence relay tail 94490510688792576 --json`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			logger := observability.FromContext(cmd.Context())
			cfg := config.Load()

			userID, err := discordIDArg(args, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rl, err := openRelay(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rl.Close()

			sub, err := rl.Subscribe(ctx, userID)
			if err != nil {
				return clierrors.RelayUnavailable(err)
			}
			defer sub.Close()

			if !out.JSON {
				out.Muted("Listening on %s (Ctrl+C to stop)", rl.Channel(userID))
			}

			return tailEnvelopes(ctx.Done(), out, sub.Envelopes())
		},
	}
}

// tailEnvelopes prints envelopes until done is closed or envelopes ends.
func tailEnvelopes(done <-chan struct{}, out *output.Writer, envelopes <-chan *relay.Envelope) error {
	for {
		select {
		case <-done:
			return nil
		case env, ok := <-envelopes:
			if !ok {
				return nil
			}

			if out.JSON {
				if err := out.PrintJSONLine(env); err != nil {
					return err
				}

				continue
			}

			s := env.Snapshot
			out.Print("%s  %s  (from %s)\n",
				s.ReceivedAt.Local().Format(time.TimeOnly), card.Summary(s, time.Now()), shortID(env.InstanceID))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}
