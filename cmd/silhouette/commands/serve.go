package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/Silhouette/internal/api"
	"github.com/bryanchriswhite/Silhouette/internal/config"
	"github.com/bryanchriswhite/Silhouette/internal/hotkey"
	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/bryanchriswhite/Silhouette/internal/media"
	"github.com/bryanchriswhite/Silhouette/internal/output"
	"github.com/bryanchriswhite/Silhouette/internal/playback"
	"github.com/bryanchriswhite/Silhouette/internal/plugin"
	"github.com/bryanchriswhite/Silhouette/internal/render"
	"github.com/bryanchriswhite/Silhouette/internal/viewport"
	"github.com/bryanchriswhite/Silhouette/internal/vsync"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Activate the overlay and start the API server",
	Long: `Activate Silhouette: load the video, connect to the host, register the
toggle hotkey and serve the HTTP API until interrupted.

Press the hotkey (F7 by default) or POST /api/playback/toggle to start and
stop playback.`,
	Example: `  # Start with the X11 overlay on the default port (8080)
  silhouette serve

  # Preview in a browser instead of drawing on screen
  silhouette serve --output mjpeg

  # Use another video
  silhouette serve --video ~/Videos/clip.webm

  # Start with debug logging
  silhouette serve --log-level debug --pretty`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("output", "", "frame output (x11, mjpeg or discard)")
	serveCmd.Flags().String("video", "", "video file to play")
	viper.BindPFlag("output.backend", serveCmd.Flags().Lookup("output"))
	viper.BindPFlag("video.path", serveCmd.Flags().Lookup("video"))
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("Silhouette")
	fmt.Println("==========")

	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if backend := viper.GetString("output.backend"); backend != "" {
		cfg.Output.Backend = backend
	}
	if path := viper.GetString("video.path"); path != "" {
		cfg.Video.Path = path
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.WithComponent("serve")
	log.Info().Str("path", configMgr.GetConfigPath()).Str("log_level", cfg.LogLevel).Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The asset is read once and kept in memory for every session
	asset, err := media.LoadAsset(cfg.Video.Path, cfg.Video.Width, cfg.Video.Height)
	if err != nil {
		return err
	}

	host, err := buildHostStack(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer host.Close()

	view, closeView := newViewport()
	defer closeView()
	size := view.Size()

	out, mjpeg, closeOut, err := newOutput(cfg, size)
	if err != nil {
		return err
	}
	defer closeOut()

	ticker := vsync.NewTicker(cfg.Render.RefreshHz)
	defer ticker.Stop()

	renderer := render.New(asset.Size())
	renderer.Margin = cfg.Render.Margin
	renderer.Anchor = anchor(cfg)

	controller := playback.NewController(playback.Options{
		Acquirer: newAcquirer(cfg, host, ticker, size),
		OpenVideo: func(ctx context.Context) (media.Video, error) {
			return media.Open(cfg.Video.Decoder, asset, cfg.Video.Volume)
		},
		Renderer: renderer,
		Viewport: view,
		Output:   out,
		VSync:    ticker,
	})

	var listener plugin.Listener
	if cfg.Hotkey.Enabled {
		l, err := hotkey.NewX11Listener(cfg.Hotkey.Key)
		if err != nil {
			log.Warn().Err(err).Str("key", cfg.Hotkey.Key).Msg("Hotkey unavailable, use the API to toggle")
		} else {
			defer l.Close()
			listener = l
		}
	}

	p := plugin.New(controller, listener)
	if err := p.Activate(ctx); err != nil {
		return err
	}
	defer p.Deactivate()

	server := api.NewServer(p, configMgr, mjpeg)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.ServerPort)
	}()

	fmt.Println()
	log.Info().
		Str("video", cfg.Video.Path).
		Str("output", out.Name()).
		Str("hotkey", cfg.Hotkey.Key).
		Int("port", cfg.ServerPort).
		Msg("Silhouette is running, press Ctrl+C to stop")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// newOutput creates the configured output. mjpeg is non-nil only for the
// MJPEG backend so the API can mount its handlers.
func newOutput(cfg *config.Config, size viewport.Size) (output.Output, *output.MJPEGOutput, func(), error) {
	oc := output.Config{
		Width:   size.Width,
		Height:  size.Height,
		FPS:     cfg.Render.RefreshHz,
		Quality: cfg.Output.Quality,
	}

	switch cfg.Output.Backend {
	case "x11":
		o, err := output.NewX11Overlay(oc)
		if err != nil {
			return nil, nil, nil, err
		}
		return o, nil, func() { o.Close() }, nil
	case "mjpeg":
		o := output.NewMJPEGOutput(oc)
		return o, o, func() { o.Stop() }, nil
	default:
		return &output.Discard{}, nil, func() {}, nil
	}
}
