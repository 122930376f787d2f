package commands

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/bryanchriswhite/Silhouette/internal/vsync"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the host in both themes",
	Long: `Flip the host theme, capture it in light and dark and write the two
masks as light.png and dark.png. The original theme is restored afterwards.

Useful to check that the host is found and that theme switching works
before starting playback.`,
	Example: `  # Write light.png and dark.png into the current directory
  silhouette snapshot

  # Write into another directory
  silhouette snapshot --out /tmp/masks`,
	RunE: runSnapshot,
}

var snapshotOut string

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", ".", "output directory")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
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

	ticker := vsync.NewTicker(cfg.Render.RefreshHz)
	defer ticker.Stop()

	pair, err := newAcquirer(cfg, host, ticker, view.Size()).Acquire(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(snapshotOut, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for name, img := range map[string]image.Image{"light.png": pair.Light, "dark.png": pair.Dark} {
		path := filepath.Join(snapshotOut, name)
		if err := writePNG(path, img); err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%dx%d)\n", path, img.Bounds().Dx(), img.Bounds().Dy())
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
