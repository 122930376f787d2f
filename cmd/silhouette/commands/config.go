package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/bryanchriswhite/Silhouette/internal/config"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the overlay settings",
	Long: `Inspect and edit the settings read by "silhouette serve".

Settings are grouped in sections: video (asset and decoder), render (margin
and crop anchor), capture and theme (how the host is snapshotted), devtools,
hotkey and output. Changes take effect the next time serve starts.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show [SECTION]",
	Short: "Print the settings, or one section of them",
	Example: `  # Every setting as a table of dotted keys
  silhouette config show

  # Only the crop and margin settings
  silhouette config show render

  # Machine readable
  silhouette config show video --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting",
	Long: `Change one setting. The value is parsed as the type the key already has;
list values such as theme.dark_cmd are comma separated. The whole
configuration is validated before it is saved.`,
	Example: `  # Keep the top of the video instead of the middle
  silhouette config set render.anchor_y 0

  # Decode with ffmpeg instead of GStreamer
  silhouette config set video.decoder ffmpeg

  # Command that switches the desktop to the dark theme
  silhouette config set theme.dark_cmd "lookandfeeltool,-a,org.kde.breezedark.desktop"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:     "get KEY",
	Short:   "Print one setting",
	Example: `  silhouette config get hotkey.key`,
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigGet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [KEY]",
	Short: "Restore a setting, or all of them, to the default",
	Example: `  # Back to the centered crop
  silhouette config reset render.anchor_y

  # Start over
  silhouette config reset`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configGetCmd, configResetCmd, configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "table", "output format (table, yaml or json)")
}

func openConfig() (*config.Manager, error) {
	m, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return m, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	m, err := openConfig()
	if err != nil {
		return err
	}

	section := ""
	var value interface{} = m.Get()
	if len(args) == 1 {
		section = args[0]
		if value, err = m.Lookup(section); err != nil {
			return err
		}
	}

	switch formatFlag {
	case "table":
		return printConfigTable(m, section)
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(value)
	default:
		return fmt.Errorf("unsupported format: %s (use table, yaml or json)", formatFlag)
	}
}

// printConfigTable prints every key under section next to its default.
// Changed keys are marked with *.
func printConfigTable(m *config.Manager, section string) error {
	keys, err := m.Keys()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"Key", "Value", "Default", ""})

	changed := 0
	for _, key := range keys {
		if section != "" && !strings.HasPrefix(key, section+".") && key != section {
			continue
		}
		v, err := m.Lookup(key)
		if err != nil {
			return err
		}
		def, _ := config.DefaultValue(key)

		mark := ""
		if !reflect.DeepEqual(v, def) {
			mark = "*"
			changed++
		}
		t.AppendRow(table.Row{key, formatValue(v), formatValue(def), mark})
	}
	t.AppendFooter(table.Row{"changed", changed, "", ""})

	fmt.Println(t.Render())
	return nil
}

// formatValue prints lists the way "config set" accepts them.
func formatValue(v interface{}) string {
	if list, ok := v.([]interface{}); ok {
		return strings.Join(cast.ToStringSlice(list), ",")
	}
	return cast.ToString(v)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	m, err := openConfig()
	if err != nil {
		return err
	}

	before, err := m.Lookup(key)
	if err != nil {
		return err
	}
	if err := m.SetString(key, raw); err != nil {
		return err
	}
	after, _ := m.Lookup(key)

	fmt.Printf("%s: %s -> %s\n", key, formatValue(before), formatValue(after))
	fmt.Println("Restart serve to apply.")
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	m, err := openConfig()
	if err != nil {
		return err
	}

	v, err := m.Lookup(args[0])
	if err != nil {
		return err
	}
	if _, section := v.(map[string]interface{}); section {
		return yaml.NewEncoder(os.Stdout).Encode(v)
	}
	fmt.Println(formatValue(v))
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	m, err := openConfig()
	if err != nil {
		return err
	}

	key := ""
	if len(args) == 1 {
		key = args[0]
	}
	if err := m.Reset(key); err != nil {
		return err
	}

	if key == "" {
		fmt.Printf("Configuration reset to defaults: %s\n", m.GetConfigPath())
		return nil
	}
	v, _ := m.Lookup(key)
	fmt.Printf("%s reset to %s\n", key, formatValue(v))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	m, err := openConfig()
	if err != nil {
		return err
	}
	fmt.Println(m.GetConfigPath())
	return nil
}
