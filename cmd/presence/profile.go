package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/profilecard/presence/internal/card"
	"github.com/profilecard/presence/internal/config"
	clierrors "github.com/profilecard/presence/internal/errors"
	"github.com/profilecard/presence/internal/output"
	"github.com/profilecard/presence/internal/profile"
	"github.com/profilecard/presence/internal/prompt"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the profile card settings",
		Long: fmt.Sprintf(`View and change the settings stores that style the profile card: %s.
Each store is a JSON file in the profile directory; unsaved stores show
their defaults.`, strings.Join(profile.Names(), ", ")),
	}

	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileShowCmd())
	cmd.AddCommand(newProfileSetCmd())
	cmd.AddCommand(newProfileResetCmd())
	cmd.AddCommand(newProfileExportCmd())
	cmd.AddCommand(newProfileImportCmd())
	cmd.AddCommand(newProfileLinksCmd())

	return cmd
}

// StoreInfo is the JSON shape of one profile list entry.
type StoreInfo struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Saved bool   `json:"saved"`
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the settings stores",
		Long:  `List every settings store with its file and whether it has been saved.`,
		Example: `  presence profile list
  presence profile list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			infos := make([]StoreInfo, 0, len(profile.Names()))
			for _, sec := range stores.Sections() {
				infos = append(infos, StoreInfo{Name: sec.Name(), Path: sec.Path(), Saved: sec.Saved()})
			}

			if out.JSON {
				return out.PrintJSON(infos)
			}

			rows := [][]string{{"STORE", "STATE", "PATH"}}
			for _, info := range infos {
				state := "default"
				if info.Saved {
					state = "saved"
				}

				rows = append(rows, []string{info.Name, state, info.Path})
			}

			for _, line := range card.Columns(rows) {
				out.Println(line)
			}

			return nil
		},
	}
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <store>",
		Short: "Show the values of a settings store",
		Long:  `Show every setting of a store, with saved values merged over the defaults.`,
		Example: `  presence profile show colors
  presence profile show links --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name := args[0]

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			sec, err := stores.Section(name)
			if err != nil {
				return profileError(name, "", "open store", err)
			}

			values, err := sec.Values()
			if err != nil {
				out.Warning("%s", err)
			}

			if out.JSON {
				return out.PrintJSON(values)
			}

			printValues(out, values)

			return nil
		},
	}
}

func printValues(out *output.Writer, values map[string]any) {
	for _, key := range profile.SortedKeys(values) {
		switch v := values[key].(type) {
		case map[string]any:
			if len(v) == 0 {
				out.Print("%s = {}\n", key)
				continue
			}

			for _, sub := range profile.SortedKeys(v) {
				out.Print("%s.%s = %v\n", key, sub, v[sub])
			}
		case []any:
			out.Print("%s = [%d item(s)]\n", key, len(v))
		default:
			out.Print("%s = %v\n", key, v)
		}
	}
}

func newProfileSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <store> <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting of a store. Map settings take keys of the form
customLinkColors.<link-id>; an empty value removes the entry.`,
		Example: `  presence profile set colors statusOnline "#10b981"
  presence profile set profile motionBlurEnabled false
  presence profile set colors customLinkColors.<link-id> ""`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name, key, value := args[0], args[1], args[2]

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			sec, err := stores.Section(name)
			if err != nil {
				return profileError(name, key, "open store", err)
			}

			if err := sec.Set(key, value); err != nil {
				return profileError(name, key, "save "+name, err)
			}

			out.Success("Set %s.%s = %s", name, key, value)

			return nil
		},
	}
}

func newProfileResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset <store>",
		Short: "Restore a store to its defaults",
		Long:  `Delete the saved file of a store so it falls back to its defaults.`,
		Example: `  presence profile reset colors
  presence profile reset links --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name := args[0]

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			sec, err := stores.Section(name)
			if err != nil {
				return profileError(name, "", "open store", err)
			}

			if !sec.Saved() {
				out.Muted("%s already uses the defaults", name)
				return nil
			}

			if !force {
				prompter := prompt.New(out)
				if !prompter.CanPrompt() {
					return clierrors.New(clierrors.ExitUsage, "Refusing to reset without confirmation").
						WithHint("Pass --force to reset non-interactively")
				}

				ok, confirmErr := prompter.Confirm(fmt.Sprintf("Reset %s to defaults?", name), false)
				if confirmErr != nil {
					return fmt.Errorf("read confirmation: %w", confirmErr)
				}

				if !ok {
					out.Muted("Reset cancelled")
					return nil
				}
			}

			if err := sec.Reset(); err != nil {
				return profileError(name, "", "reset "+name, err)
			}

			out.Success("Reset %s to defaults", name)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	return cmd
}

func newProfileExportCmd() *cobra.Command {
	var (
		format string
		file   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every store as one document",
		Long: `Encode every settings store as one JSON, YAML or TOML document. The format
defaults to the extension of --output, or JSON when writing to stdout.`,
		Example: `  presence profile export > card.json
  presence profile export --format yaml
  presence profile export -o card.toml`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			f, err := bundleFormat(format, file)
			if err != nil {
				return err
			}

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			data, err := stores.Export(f)
			if err != nil {
				return clierrors.ProfileStoreFailed("export settings", err)
			}

			if file == "" {
				_, err = out.Out.Write(data)
				return err
			}

			if err := os.WriteFile(file, data, 0o600); err != nil {
				return clierrors.ProfileStoreFailed("write "+file, err)
			}

			out.Success("Exported settings to %s", file)

			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Document format: json, yaml or toml")
	cmd.Flags().StringVarP(&file, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}

func newProfileImportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load stores from an exported document",
		Long: `Read a document written by 'presence profile export' and save every store
it contains. Stores missing from the document keep their values. Nothing is
written unless every store validates.`,
		Example: `  presence profile import card.yaml
  presence profile import backup.txt --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			file := args[0]

			f, err := bundleFormat(format, file)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return clierrors.ProfileStoreFailed("read "+file, err)
			}

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			if _, err := stores.Import(data, f); err != nil {
				if errors.Is(err, profile.ErrInvalidValue) || errors.Is(err, profile.ErrUnknownFormat) {
					return clierrors.Wrap(clierrors.ExitUsage, fmt.Sprintf("Cannot import %s", file), err).
						WithHint("Fix the document and try again; nothing was saved")
				}

				return clierrors.ProfileStoreFailed("import "+file, err)
			}

			out.Success("Imported settings from %s", file)

			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Document format: json, yaml or toml (default from extension)")

	return cmd
}

// bundleFormat resolves the document format from the flag or the file name.
func bundleFormat(flag, file string) (profile.Format, error) {
	var (
		f   profile.Format
		err error
	)

	switch {
	case flag != "":
		f, err = profile.ParseFormat(flag)
	case file != "":
		f, err = profile.FormatForPath(file)
	default:
		return profile.FormatJSON, nil
	}

	if err != nil {
		return "", clierrors.Wrap(clierrors.ExitUsage, "Unknown document format", err).
			WithHint("Use --format json, yaml or toml")
	}

	return f, nil
}

func newProfileLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Manage the custom links on the card",
		Long:  `List, add, change and remove the custom links shown on the card.`,
	}

	cmd.AddCommand(newLinksListCmd())
	cmd.AddCommand(newLinksAddCmd())
	cmd.AddCommand(newLinksUpdateCmd())
	cmd.AddCommand(newLinksRemoveCmd())

	return cmd
}

func newLinksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the custom links",
		Long:  `List the custom links with their ids and where each is shown.`,
		Example: `  presence profile links list
  presence profile links list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			links, err := stores.Links.Load()
			if err != nil {
				out.Warning("%s", err)
			}

			if out.JSON {
				return out.PrintJSON(links.Links)
			}

			if len(links.Links) == 0 {
				out.Muted("No custom links")
				return nil
			}

			for _, line := range linkRows(links.Links) {
				out.Println(line)
			}

			return nil
		},
	}
}

func linkRows(links []profile.Link) []string {
	rows := make([][]string, 0, len(links)+1)
	rows = append(rows, []string{"ID", "NAME", "SHOWN", "URL"})

	for _, l := range links {
		rows = append(rows, []string{l.ID, l.Name, string(l.DisplayMode), l.URL})
	}

	return card.Columns(rows)
}

// linkFlags holds the link fields settable from the command line.
type linkFlags struct {
	name        string
	url         string
	icon        string
	color       string
	displayMode string
}

func (f *linkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Link label")
	cmd.Flags().StringVar(&f.url, "url", "", "Link target")
	cmd.Flags().StringVar(&f.icon, "icon", "", "Icon name or image URL")
	cmd.Flags().StringVar(&f.color, "color", "", "Hex colour, e.g. #3b82f6")
	cmd.Flags().StringVar(&f.displayMode, "display-mode", "", "Where the link is shown: box, mini-icons or both")
}

// patch returns the fields whose flags were given.
func (f *linkFlags) patch(cmd *cobra.Command) profile.LinkPatch {
	var p profile.LinkPatch

	if cmd.Flags().Changed("name") {
		p.Name = &f.name
	}

	if cmd.Flags().Changed("url") {
		p.URL = &f.url
	}

	if cmd.Flags().Changed("icon") {
		p.Icon = &f.icon
	}

	if cmd.Flags().Changed("color") {
		p.Color = &f.color
	}

	if cmd.Flags().Changed("display-mode") {
		mode := profile.DisplayMode(f.displayMode)
		p.DisplayMode = &mode
	}

	return p
}

func newLinksAddCmd() *cobra.Command {
	var flags linkFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a custom link",
		Long: `Add a custom link under a new id. The link is shown in the profile box unless --display-mode says otherwise.

On a terminal, a missing --name or --url is asked for, along with the display mode.`,
		Example: `  presence profile links add --name GitHub --url https://github.com/octocat
  presence profile links add --name Blog --url https://example.com --display-mode both`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if flags.name == "" || flags.url == "" {
				prompter := prompt.New(out)
				if !prompter.CanPrompt() {
					return clierrors.New(clierrors.ExitUsage, "A link needs --name and --url").
						WithHint("Run 'presence profile links add --help' for usage")
				}

				if err := askLinkFields(prompter, &flags, !cmd.Flags().Changed("display-mode")); err != nil {
					return promptError(err)
				}
			}

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			var added profile.Link

			_, err = stores.Links.Update(func(l *profile.Links) error {
				var addErr error
				added, addErr = l.Add(profile.Link{
					Name:        flags.name,
					URL:         flags.url,
					Icon:        flags.icon,
					Color:       flags.color,
					DisplayMode: profile.DisplayMode(flags.displayMode),
				})

				return addErr
			})
			if err != nil {
				return profileError(profile.StoreLinks, flags.name, "save links", err)
			}

			if out.JSON {
				return out.PrintJSON(added)
			}

			out.Success("Added link %s (%s)", added.Name, added.ID)

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newLinksUpdateCmd() *cobra.Command {
	var flags linkFlags

	cmd := &cobra.Command{
		Use:     "update <link-id>",
		Short:   "Change a custom link",
		Long:    `Change the fields of a custom link given by flags. Other fields keep their values.`,
		Example: `  presence profile links update 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --display-mode mini-icons`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			id := args[0]

			patch := flags.patch(cmd)
			if patch == (profile.LinkPatch{}) {
				return clierrors.New(clierrors.ExitUsage, "Nothing to change").
					WithHint("Pass at least one of --name, --url, --icon, --color or --display-mode")
			}

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			var updated profile.Link

			_, err = stores.Links.Update(func(l *profile.Links) error {
				var updateErr error
				updated, updateErr = l.Update(id, patch)

				return updateErr
			})
			if err != nil {
				return profileError(profile.StoreLinks, id, "save links", err)
			}

			if out.JSON {
				return out.PrintJSON(updated)
			}

			out.Success("Updated link %s", updated.Name)

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newLinksRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [link-id]",
		Short: "Remove a custom link",
		Long: `Remove a custom link together with its colour and image overrides.

Without a link id, the link is picked from a list on a terminal.`,
		Example: `  presence profile links remove 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  presence profile links remove`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			stores, err := openStores(config.Load())
			if err != nil {
				return err
			}

			var id string
			if len(args) == 1 {
				id = args[0]
			} else {
				prompter := prompt.New(out)
				if !prompter.CanPrompt() {
					return clierrors.New(clierrors.ExitUsage, "Which link? Pass a link id").
						WithHint("Run 'presence profile links list' to see link ids")
				}

				links, loadErr := stores.Links.Load()
				if loadErr != nil {
					return profileError(profile.StoreLinks, "", "load links", loadErr)
				}

				if id, err = pickLink(prompter, links.Links); err != nil {
					return promptError(err)
				}
			}

			if err := stores.RemoveLink(id); err != nil {
				return profileError(profile.StoreLinks, id, "remove link", err)
			}

			out.Success("Removed link %s", id)

			return nil
		},
	}
}

var displayModes = []profile.DisplayMode{profile.DisplayBox, profile.DisplayMiniIcons, profile.DisplayBoth}

// askLinkFields fills the empty name and url of flags from p, and the display
// mode too when askMode is set.
func askLinkFields(p *prompt.Prompter, flags *linkFlags, askMode bool) error {
	var err error

	if flags.name == "" {
		if flags.name, err = p.Input("Link name", ""); err != nil {
			return err
		}
	}

	if flags.url == "" {
		if flags.url, err = p.Input("Link URL", ""); err != nil {
			return err
		}
	}

	if !askMode {
		return nil
	}

	options := make([]string, len(displayModes))
	for i, mode := range displayModes {
		options[i] = string(mode)
	}

	choice, err := p.Select("Where should the link be shown?", options)
	if err != nil {
		return err
	}

	flags.displayMode = options[choice]

	return nil
}

// pickLink asks which of links to act on and returns its id.
func pickLink(p *prompt.Prompter, links []profile.Link) (string, error) {
	if len(links) == 0 {
		return "", clierrors.New(clierrors.ExitNotFound, "There are no custom links").
			WithHint("Add one with 'presence profile links add'")
	}

	options := make([]string, len(links))
	for i, link := range links {
		options[i] = fmt.Sprintf("%s  %s", link.Name, link.URL)
	}

	choice, err := p.Select("Remove which link?", options)
	if err != nil {
		return "", err
	}

	return links[choice].ID, nil
}

func promptError(err error) error {
	if prompt.IsCanceled(err) {
		return clierrors.New(clierrors.ExitUsage, "Cancelled")
	}

	return err
}
