package commands

import (
	"fmt"

	"github.com/bryanchriswhite/Silhouette/internal/crop"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Show the part of the video drawn into a viewport",
	Long: `Compute the cover crop of the configured video for a viewport size.

The crop is the source rectangle that, scaled into the viewport plus the
render margin, fills it completely without letterboxing.`,
	Example: `  # Crop for a full HD screen
  silhouette crop --width 1920 --height 1080

  # Keep the top of the video
  silhouette crop --width 1920 --height 1080 --anchor-y 0`,
	RunE: runCrop,
}

var (
	cropWidth   float64
	cropHeight  float64
	cropAnchorX float64
	cropAnchorY float64
)

func init() {
	rootCmd.AddCommand(cropCmd)

	cropCmd.Flags().Float64Var(&cropWidth, "width", 1920, "viewport width")
	cropCmd.Flags().Float64Var(&cropHeight, "height", 1080, "viewport height")
	cropCmd.Flags().Float64Var(&cropAnchorX, "anchor-x", -1, "horizontal anchor 0-1 (default from config)")
	cropCmd.Flags().Float64Var(&cropAnchorY, "anchor-y", -1, "vertical anchor 0-1 (default from config)")
}

func runCrop(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a := anchor(cfg)
	if cmd.Flags().Changed("anchor-x") {
		a.X = cropAnchorX
	}
	if cmd.Flags().Changed("anchor-y") {
		a.Y = cropAnchorY
	}

	intrinsic := videoSize(cfg)
	viewport := crop.Rect{W: cropWidth, H: cropHeight}
	dst := viewport.Expand(cfg.Render.Margin)
	src := crop.Cover(intrinsic, dst, a)

	t := table.NewWriter()
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"Rect", "X", "Y", "Width", "Height"})
	t.AppendRows([]table.Row{
		{"video", 0, 0, intrinsic.Width, intrinsic.Height},
		{"viewport", viewport.X, viewport.Y, viewport.W, viewport.H},
		{"destination", dst.X, dst.Y, dst.W, dst.H},
		{"source crop", src.X, src.Y, src.W, src.H},
	})
	t.AppendFooter(table.Row{"anchor", a.X, a.Y, "margin", cfg.Render.Margin})

	fmt.Println(t.Render())
	if src.Empty() {
		fmt.Println("Viewport has no area, nothing would be drawn")
	}
	return nil
}
