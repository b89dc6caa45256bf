package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/profilecard/presence/internal/auth"
	"github.com/profilecard/presence/internal/config"
	"github.com/profilecard/presence/internal/output"
	"github.com/profilecard/presence/internal/paths"
)

// PathsInfo holds all resolved paths for JSON output.
type PathsInfo struct {
	ConfigRoot  string `json:"config_root"`
	StateRoot   string `json:"state_root"`
	ConfigFile  string `json:"config_file"`
	Credentials string `json:"credentials"`
	LogFile     string `json:"log_file"`
	ProfileDir  string `json:"profile_dir"`
	APIURL      string `json:"api_url"`
	GatewayURL  string `json:"gateway_url"`
	KeySource   string `json:"steam_key_source"`
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show where presence stores files",
		Long: `Display the file and directory paths used by presence, along with the
Lanyard endpoints in effect and where the Steam key comes from.`,
		Example: `  presence paths
  presence paths --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			info := resolvePathsInfo(config.Load(), auth.SteamKey)

			if out.JSON {
				return out.PrintJSON(info)
			}

			printPathsInfo(out, info)

			return nil
		},
	}
}

// pathGroups lays out the human-readable paths report.
func pathGroups(info PathsInfo) [][][2]string {
	return [][][2]string{
		{{"Config root:", info.ConfigRoot}, {"State root:", info.StateRoot}},
		{{"Config file:", info.ConfigFile}, {"Credentials:", info.Credentials}, {"Log file:", info.LogFile}, {"Profile dir:", info.ProfileDir}},
		{{"API URL:", info.APIURL}, {"Gateway URL:", info.GatewayURL}, {"Steam key:", info.KeySource}},
	}
}

func printPathsInfo(out *output.Writer, info PathsInfo) {
	const width = 14

	for i, group := range pathGroups(info) {
		if i > 0 {
			out.Println()
		}

		for _, row := range group {
			out.Field(width, row[0], row[1])
		}
	}
}

func resolvePathsInfo(cfg *config.Config, steamKey func() (auth.CredentialSource, string)) PathsInfo {
	info := PathsInfo{
		ConfigRoot:  resolveOrError(paths.ConfigRoot),
		StateRoot:   resolveOrError(paths.StateRoot),
		Credentials: resolveOrError(paths.CredentialsFile),
		LogFile:     resolveOrError(paths.DefaultLogFile),
		ProfileDir: resolveOrError(func() (string, error) {
			return paths.ProfileDir(cfg.ProfileDir())
		}),
		APIURL:     cfg.APIURL(),
		GatewayURL: cfg.GatewayURL(),
	}

	info.ConfigFile = resolveOrError(func() (string, error) {
		root, err := paths.ConfigRoot()
		return filepath.Join(root, "config.yaml"), err
	})

	info.KeySource = "none"
	if source, _ := steamKey(); source != auth.SourceNone {
		info.KeySource = string(source)
	}

	return info
}

// resolveOrError keeps the report printable when a path cannot be resolved.
func resolveOrError(resolve func() (string, error)) string {
	p, err := resolve()
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}

	return p
}
