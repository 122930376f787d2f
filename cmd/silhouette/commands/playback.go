package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bryanchriswhite/Silhouette/internal/playback"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Start or stop playback on a running server",
	Long: `Send the same toggle the hotkey sends to a running "silhouette serve".
Useful to bind playback to a window manager shortcut on Wayland, where the
X11 hotkey grab is not available.`,
	Example: `  silhouette toggle
  silhouette toggle --port 9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return callPlayback(http.MethodPost, "/api/playback/toggle")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the playback state of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return callPlayback(http.MethodGet, "/api/playback")
	},
}

func init() {
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(statusCmd)
}

func callPlayback(method, path string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req, err := http.NewRequest(method, fmt.Sprintf("http://localhost:%d%s", cfg.ServerPort, path), nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("is silhouette serve running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, body)
	}

	var st playback.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"State", "Session", "Frames", "Started", "Last error"})
	started := ""
	if !st.StartedAt.IsZero() {
		started = st.StartedAt.Format("15:04:05")
	}
	t.AppendRow(table.Row{st.State, st.SessionID, st.Frames, started, st.LastError})
	fmt.Println(t.Render())
	return nil
}
