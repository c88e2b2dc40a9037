package configcmder

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/pkg/cliui"
	"github.com/papercomputeco/parley/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every dotted key with its effective value, followed by the model
routes, preset bindings and users defined in the config.toml tables.
Entries marked "reloads live" are picked up by a running parley serve;
everything else needs a restart. The client token is masked unless
--show-secrets is given.

Examples:
  parley config list
  parley config list --show-secrets`

const listShortDesc string = "List all configuration values"

const (
	reloadsNote = "reloads live"
	restartNote = "restart to apply"
)

func newListCmd() *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd, configDir, showSecrets)
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print credentials in full")
	return cmd
}

func runList(cmd *cobra.Command, configDir string, showSecrets bool) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printTarget(cmd, cfger.GetTarget())

	keys := config.ValidConfigKeys()
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	for _, key := range keys {
		value, err := config.KeyValue(cfg, key)
		if err != nil {
			return err
		}
		if config.IsSecret(key) && !showSecrets {
			value = config.MaskSecret(value)
		}

		shown := cliui.DimStyle.Render("<not set>")
		if value != "" {
			shown = cliui.ValueStyle.Render(fmt.Sprintf("%q", value))
		}

		fmt.Fprintf(out, "  %s = %s%s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, key)), shown, keyNote(key))
	}

	printModels(out, cfg)
	printPresets(out, cfg)
	printUsers(out, cfg)
	fmt.Fprintln(out)

	return nil
}

func keyNote(key string) string {
	if config.IsReloadable(key) {
		return "  " + cliui.DimStyle.Render("("+reloadsNote+")")
	}
	return ""
}

func printSection(out io.Writer, title, note string) {
	fmt.Fprintf(out, "\n  %s %s\n", cliui.NameStyle.Render(title), cliui.DimStyle.Render("("+note+")"))
}

func printModels(out io.Writer, cfg *config.Config) {
	printSection(out, "models", restartNote)
	if len(cfg.Models) == 0 {
		fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render("<none>"))
		return
	}

	for _, id := range sortedKeys(cfg.Models) {
		m := cfg.Models[id]
		upstream := m.UpstreamModel
		if upstream == "" {
			upstream = id
		}
		detail := m.Provider + " " + upstream
		if m.APIKeyEnv != "" {
			detail += " key=$" + m.APIKeyEnv
		}
		fmt.Fprintf(out, "    %s %s\n", cliui.KeyStyle.Render(id), cliui.ValueStyle.Render(detail))
	}
}

func printPresets(out io.Writer, cfg *config.Config) {
	printSection(out, "presets", reloadsNote)
	if len(cfg.Presets) == 0 {
		fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render("<built-in bindings>"))
		return
	}

	for _, name := range sortedKeys(cfg.Presets) {
		fmt.Fprintf(out, "    %s -> %s\n", cliui.KeyStyle.Render(name), cliui.ValueStyle.Render(cfg.Presets[name].Model))
	}
}

func printUsers(out io.Writer, cfg *config.Config) {
	printSection(out, "users", reloadsNote)
	if len(cfg.Users) == 0 {
		fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render("<none>"))
		return
	}

	ids := make([]string, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		ids = append(ids, u.ID)
	}
	fmt.Fprintf(out, "    %s\n", cliui.ValueStyle.Render(strings.Join(ids, ", ")))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
