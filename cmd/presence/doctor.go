package main

import (
	"github.com/spf13/cobra"

	"github.com/profilecard/presence/internal/config"
	"github.com/profilecard/presence/internal/doctor"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/output"
)

// DoctorReport is the JSON shape of doctor output.
type DoctorReport struct {
	Results  []doctor.Result `json:"results"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Warnings int             `json:"warnings"`
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify configuration and connectivity issues.

Checks performed:
  - Lanyard API reachability and response time
  - Whether Lanyard monitors the configured user
  - Gateway handshake and heartbeat interval
  - Steam Web API key source and validity
  - Redis relay reachability
  - Build version`,
		Example: `  presence doctor
  presence doctor --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			runner := doctor.New(doctorOptions(config.Load()))

			var results []doctor.Result

			_ = withSpinner(out, "Running checks", func() error {
				results = runner.Run(cmd.Context())
				return nil
			})

			passed, failed, warnings := doctor.Summary(results)

			if out.JSON {
				if err := out.PrintJSON(DoctorReport{Results: results, Passed: passed, Failed: failed, Warnings: warnings}); err != nil {
					return err
				}
			} else {
				printDoctorReport(out, results, passed, failed, warnings)
			}

			if failed > 0 {
				return clierrors.ChecksFailed(failed)
			}

			return nil
		},
	}
}

func doctorOptions(cfg *config.Config) doctor.Options {
	return doctor.Options{
		DiscordID:         cfg.DiscordID(),
		APIURL:            cfg.APIURL(),
		GatewayURL:        cfg.GatewayURL(),
		HeartbeatFallback: cfg.HeartbeatFallback(),
		SteamAPIURL:       cfg.SteamAPIURL(),
		SteamID:           cfg.SteamID(),
		RedisURL:          cfg.RedisURL(),
		ChannelPrefix:     cfg.ChannelPrefix(),
	}
}

func printDoctorReport(out *output.Writer, results []doctor.Result, passed, failed, warnings int) {
	out.Println("Presence Doctor")
	out.Println("===============")
	out.Println()

	doctor.RenderResults(results,
		out.Print,
		out.Success,
		out.Warning,
		out.Failure,
		out.Muted,
	)

	out.Println()
	out.Print("%d passed", passed)

	if failed > 0 {
		out.Print(", %d failed", failed)
	}

	if warnings > 0 {
		out.Print(", %d warning(s)", warnings)
	}

	out.Println()
}
