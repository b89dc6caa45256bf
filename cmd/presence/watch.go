package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/profilecard/presence/internal/card"
	"github.com/profilecard/presence/internal/config"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/lanyard"
	"github.com/profilecard/presence/internal/observability"
	"github.com/profilecard/presence/internal/output"
	"github.com/profilecard/presence/internal/presence"
	"github.com/profilecard/presence/internal/relay"
)

// watchRecord is one line of watch --json output.
type watchRecord struct {
	Type     string            `json:"type"`
	Source   string            `json:"source,omitempty"`
	Snapshot *lanyard.Snapshot `json:"snapshot,omitempty"`
	Tracked  *bool             `json:"tracked,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	State    string            `json:"state,omitempty"`
}

func recordFor(ev presence.Event) watchRecord {
	switch ev.Kind {
	case presence.EventSnapshot:
		return watchRecord{Type: "snapshot", Source: string(ev.Source), Snapshot: ev.Snapshot}
	case presence.EventTracked:
		tracked := ev.Tracked
		return watchRecord{Type: "tracked", Tracked: &tracked, Reason: ev.Reason}
	default:
		return watchRecord{Type: "state", State: ev.State.String()}
	}
}

func newWatchCmd() *cobra.Command {
	var (
		tui         bool
		publish     bool
		metricsAddr string
		noLookup    bool
	)

	cmd := &cobra.Command{
		Use:   "watch [discord-id]",
		Short: "Follow a user's live presence",
		Long: `Connect to the Lanyard gateway and print every presence snapshot for the
user until interrupted. Connection losses are retried after
presence.reconnect_delay. The user defaults to presence.discord_id.

With --tui the live card is drawn in the terminal. With --relay every
snapshot is also published to Redis for 'presence relay tail'. With
--metrics-addr Prometheus metrics are served at /metrics.`,
		Example: `  presence watch 94490510688792576
  presence watch --tui
  presence watch --json | jq .snapshot.status
  presence watch --relay --metrics-addr :9464`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			logger := observability.FromContext(cmd.Context())
			cfg := config.Load()

			userID, err := discordIDArg(args, cfg)
			if err != nil {
				return err
			}

			if tui && !out.Terminal().TUIEnabled() {
				return clierrors.New(clierrors.ExitUsage, "--tui needs an interactive terminal").
					WithHint("Run without --tui to print snapshots as lines")
			}

			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []presence.Option{
				presence.WithGatewayURL(cfg.GatewayURL()),
				presence.WithReconnectDelay(cfg.ReconnectDelay()),
				presence.WithHeartbeatFallback(cfg.HeartbeatFallback()),
				presence.WithLogger(logger),
			}

			if !noLookup {
				opts = append(opts, presence.WithLookup(lanyard.NewClient(cfg.APIURL())))
			}

			var closers []func() error

			defer func() {
				if closeErr := closeAll(closers); closeErr != nil {
					logger.Warn("watch shutdown incomplete", slog.String("error", closeErr.Error()))
				}
			}()

			if metricsAddr != "" {
				metrics, shutdown, metricsErr := serveMetrics(metricsAddr, logger)
				if metricsErr != nil {
					return metricsErr
				}

				opts = append(opts, presence.WithMetrics(metrics))
				closers = append(closers, shutdown)

				logger.Info("serving metrics", slog.String("addr", metricsAddr))
			}

			var rl *relay.Relay

			if publish {
				rl, err = openRelay(ctx, cfg, logger)
				if err != nil {
					return err
				}

				closers = append(closers, rl.Close)
			}

			watchCtx, cancelWatch := context.WithCancel(ctx)
			defer cancelWatch()

			client := presence.New(opts...)
			if err := client.Start(watchCtx, userID); err != nil {
				return clierrors.GatewayUnavailable(err)
			}

			updates := client.Updates()
			if rl != nil {
				updates = relayUpdates(watchCtx, updates, rl, logger)
			}

			if tui {
				err = runCardTUI(watchCtx, out, cardRenderer(out, cfg), updates)
			} else {
				err = printUpdates(out, updates)
			}

			cancelWatch()
			client.Stop()

			return err
		},
	}

	cmd.Flags().BoolVar(&tui, "tui", false, "Draw the live card in the terminal")
	cmd.Flags().BoolVar(&publish, "relay", false, "Publish snapshots to the Redis relay")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&noLookup, "no-lookup", false, "Skip the REST tracking check")

	return cmd
}

// printUpdates writes each event as a line until updates is closed.
func printUpdates(out *output.Writer, updates <-chan presence.Event) error {
	for ev := range updates {
		if out.JSON {
			if err := out.PrintJSONLine(recordFor(ev)); err != nil {
				return err
			}

			continue
		}

		switch ev.Kind {
		case presence.EventSnapshot:
			s := ev.Snapshot
			out.Print("%s  %s\n", s.ReceivedAt.Local().Format(time.TimeOnly), card.Summary(s, s.ReceivedAt))
		case presence.EventTracked:
			if ev.Tracked {
				out.Success("Tracked by Lanyard")
				continue
			}

			reason := ev.Reason
			if reason == "" {
				reason = "Not tracked by Lanyard"
			}

			out.Warning("%s", reason)
			out.Muted("  Join Lanyard: %s", lanyard.InviteURL)
		case presence.EventState:
			out.Muted("gateway: %s", ev.State)
		}
	}

	return nil
}

// runCardTUI draws the live card until the user quits or ctx ends.
func runCardTUI(ctx context.Context, out *output.Writer, renderer *card.Renderer, updates <-chan presence.Event) error {
	program := tea.NewProgram(card.NewModel(updates, renderer),
		tea.WithContext(ctx),
		tea.WithOutput(out.Out),
	)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("card display: %w", err)
	}

	return nil
}

// relayUpdates publishes every snapshot from in and passes all events on.
// The returned channel closes when in closes or ctx ends.
func relayUpdates(ctx context.Context, in <-chan presence.Event, rl *relay.Relay, logger *slog.Logger) <-chan presence.Event {
	out := make(chan presence.Event)

	go func() {
		defer close(out)

		for ev := range in {
			if ev.Kind == presence.EventSnapshot {
				if n, err := rl.Publish(ctx, ev.Snapshot); err != nil {
					logger.Warn("relay publish failed", slog.String("error", err.Error()))
				} else {
					logger.Debug("relayed snapshot", slog.Int64("receivers", n))
				}
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// openRelay connects to the configured Redis relay.
// closeAll runs every closer and joins their errors.
func closeAll(closers []func() error) error {
	var err error
	for _, closeFn := range closers {
		err = multierr.Append(err, closeFn())
	}

	return err
}

func openRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*relay.Relay, error) {
	url := cfg.RedisURL()
	if url == "" {
		return nil, clierrors.RelayNotConfigured()
	}

	rl, err := relay.New(url, cfg.ChannelPrefix(), logger)
	if err != nil {
		return nil, clierrors.ConfigFailed("parse relay.redis_url", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rl.Ping(pingCtx); err != nil {
		_ = rl.Close()
		return nil, clierrors.RelayUnavailable(err)
	}

	return rl, nil
}

// serveMetrics starts a Prometheus endpoint on addr and returns the client
// metrics registered with it and a shutdown function.
func serveMetrics(addr string, logger *slog.Logger) (*presence.Metrics, func() error, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics := presence.NewMetrics(reg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, clierrors.Wrap(clierrors.ExitUsage, fmt.Sprintf("Cannot serve metrics on %s", addr), err).
			WithHint("Pick a free address with --metrics-addr or metrics.addr")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("error", serveErr.Error()))
		}
	}()

	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)

		// Serve may not have taken ownership of ln yet.
		if closeErr := ln.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = multierr.Append(err, closeErr)
		}

		return err
	}

	return metrics, shutdown, nil
}
