package theme

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/bryanchriswhite/Silhouette/internal/portal"
)

// SchemeReader reports the desktop color scheme. *portal.Client implements
// it.
type SchemeReader interface {
	ColorScheme(ctx context.Context) (uint32, error)
}

// CommandRunner runs an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

// Desktop follows the desktop-wide color scheme. It reads the scheme from
// the settings portal and switches it with user-configured commands, by
// default gsettings.
type Desktop struct {
	reader       SchemeReader
	run          CommandRunner
	lightCommand []string
	darkCommand  []string
}

// NewDesktop returns a Desktop service. Commands are argv slices.
func NewDesktop(reader SchemeReader, run CommandRunner, lightCommand, darkCommand []string) *Desktop {
	if run == nil {
		run = ExecRunner
	}
	return &Desktop{
		reader:       reader,
		run:          run,
		lightCommand: lightCommand,
		darkCommand:  darkCommand,
	}
}

func (d *Desktop) Get(ctx context.Context) (Theme, error) {
	scheme, err := d.reader.ColorScheme(ctx)
	if err != nil {
		return "", fmt.Errorf("get theme: %w", err)
	}
	if scheme == portal.ColorSchemeDark {
		return Dark, nil
	}
	return Light, nil
}

func (d *Desktop) Set(ctx context.Context, t Theme) error {
	argv := d.lightCommand
	if t == Dark {
		argv = d.darkCommand
	}
	if len(argv) == 0 {
		return fmt.Errorf("set theme %s: no command configured", t)
	}

	logger.WithComponent("theme").Debug().
		Str("theme", t.String()).
		Strs("command", argv).
		Msg("Switching desktop color scheme")

	if err := d.run(ctx, argv[0], argv[1:]...); err != nil {
		return fmt.Errorf("set theme %s: %w", t, err)
	}
	return nil
}
