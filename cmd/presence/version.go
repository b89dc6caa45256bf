package main

import (
	"github.com/spf13/cobra"

	"github.com/profilecard/presence/internal/output"
)

// VersionInfo is the JSON shape of version.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Long:    `Display the presence binary version, git commit, and build date.`,
		Example: `  presence version`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			info := VersionInfo{Version: version, Commit: commit, Date: date}

			if out.JSON {
				return out.PrintJSON(info)
			}

			out.Print("presence %s\n", info.Version)
			out.Print("  commit: %s\n", info.Commit)
			out.Print("  built:  %s\n", info.Date)

			return nil
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completion scripts",
		Long: `Write a completion script for the given shell to stdout. Source it from
your shell profile to complete commands, flags and settings store names.`,
		Example: `  presence completion bash > /etc/bash_completion.d/presence
  presence completion zsh > "${fpath[1]}/_presence"
  presence completion fish > ~/.config/fish/completions/presence.fish`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			root := cmd.Root()

			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(w, true)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			default:
				return root.GenPowerShellCompletionWithDesc(w)
			}
		},
	}
}
