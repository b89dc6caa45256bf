package main

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/profilecard/presence/internal/config"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View and modify presence configuration settings stored in ~/.config/presence/config.yaml.`,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long:  `Display every configuration key with its current value, including built-in defaults.`,
		Example: `  presence config list
  presence config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			if out.JSON {
				return out.PrintJSON(cfg.All())
			}

			for _, key := range slices.Sorted(slices.Values(config.Keys())) {
				printSetting(out, key, cfg.Get(key))
			}

			return nil
		},
	}
}

func isUnset(value any) bool {
	return value == nil || value == ""
}

// printSetting writes "key = value". Empty values print as "".
func printSetting(out *output.Writer, key string, value any) {
	if isUnset(value) {
		value = `""`
	}

	out.Print("%s = %v\n", key, value)
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the current value of a single configuration key.`,
		Example: `  presence config get presence.discord_id`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]

			if !config.IsKnown(key) {
				return clierrors.UnknownConfigKey(key, config.Keys())
			}

			value := config.Load().Get(key)
			if isUnset(value) {
				out.Muted("%s is not set", key)
				return nil
			}

			printSetting(out, key, value)

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration key to the given value. Durations use Go syntax
(5s, 1m30s) and URLs must be absolute. The value is persisted to the
config file.`,
		Example: `  presence config set presence.discord_id 94490510688792576
  presence config set presence.reconnect_delay 10s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, value := args[0], args[1]

			if !config.IsKnown(key) {
				return clierrors.UnknownConfigKey(key, config.Keys())
			}

			if err := config.Load().Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			out.Success("Set %s = %s", key, value)

			return nil
		},
	}
}
