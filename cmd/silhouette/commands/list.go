package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bryanchriswhite/Silhouette/internal/capture"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List capturable windows",
	Long: `List the windows the capture backends can see and mark the one that
would be used as the host.

The host is the first window whose name contains capture.host_name.`,
	Example: `  # List windows in table format (default)
  silhouette list

  # List windows in JSON format
  silhouette list --format json`,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
}

// windowEntry is one listed window
type windowEntry struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Host   bool   `json:"host"`
}

func runList(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	host, err := buildHostStack(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer host.Close()

	view, closeView := newViewport()
	defer closeView()
	size := view.Size()

	previews, err := host.capture.CaptureWindow(ctx, size.Width, size.Height)
	if err != nil {
		return fmt.Errorf("failed to capture windows: %w", err)
	}

	entries := make([]windowEntry, 0, len(previews))
	hostFound := false
	for _, p := range previews {
		e := windowEntry{Name: p.Name}
		if img, err := capture.Decode(p.URL); err == nil {
			e.Width = img.Bounds().Dx()
			e.Height = img.Bounds().Dy()
		}
		if !hostFound && strings.Contains(p.Name, cfg.Capture.HostName) {
			e.Host = true
			hostFound = true
		}
		entries = append(entries, e)
	}

	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case "table":
		printWindowsTable(entries)
		if !hostFound {
			fmt.Printf("No window matches host name %q\n", cfg.Capture.HostName)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printWindowsTable(entries []windowEntry) {
	t := table.NewWriter()
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"Name", "Size", "Host"})

	for _, e := range entries {
		isHost := ""
		if e.Host {
			isHost = "yes"
		}
		t.AppendRow(table.Row{e.Name, fmt.Sprintf("%dx%d", e.Width, e.Height), isHost})
	}

	fmt.Println(t.Render())
}
