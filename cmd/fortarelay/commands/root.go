// Package commands provides the CLI command definitions for fortarelay.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/arbitraryexecution/forta-relay/internal/config"
	"github.com/arbitraryexecution/forta-relay/pkg/logger"
)

// Styles for CLI output
var (
	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// App holds the shared application state
type App struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Version    string
	Commit     string
	Date       string
}

// New creates the root CLI command with all subcommands
func New(version, commit, date string) *cli.Command {
	app := &App{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	return &cli.Command{
		Name:    "fortarelay",
		Usage:   "relay Forta alerts to a Discord webhook",
		Version: version,
		Description: `fortarelay looks up the full Forta alert behind an incoming alert
   notification, renders a COMP distribution message and posts it to Discord.

   Use 'fortarelay serve' to accept events over HTTP or
   'fortarelay invoke' to run a single event from a file or stdin.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Sources: cli.EnvVars("FORTARELAY_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			app.ConfigPath = cmd.String("config")

			cfg, err := config.Load(config.LoadOptions{ConfigPath: app.ConfigPath})
			if errors.Is(err, fs.ErrNotExist) {
				// config init writes the file named by --config.
				log.Warn("config file not found, using defaults", "path", app.ConfigPath)
				cfg, err = config.Load(config.LoadOptions{ConfigPath: app.ConfigPath, Optional: true})
			}
			if err != nil {
				return ctx, err
			}

			level := cfg.Logging.Level
			if cmd.Bool("debug") {
				level = "debug"
				log.SetLevel(log.DebugLevel)
			}

			app.Config = cfg
			app.Logger = logger.NewWithLevel(level)
			slog.SetDefault(app.Logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			app.serveCommand(),
			app.invokeCommand(),
			app.formatCommand(),
			app.configCommand(),
			app.versionCommand(),
		},
	}
}

// versionCommand shows version information
func (a *App) versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "show version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w := cmd.Root().Writer
			fmt.Fprintf(w, "%s version %s\n", logoStyle.Render("fortarelay"), a.Version)
			fmt.Fprintf(w, "  commit: %s\n", mutedStyle.Render(a.Commit))
			fmt.Fprintf(w, "  built:  %s\n", mutedStyle.Render(a.Date))
			return nil
		},
	}
}

func (a *App) buildInfo() string {
	return fmt.Sprintf("%s (%s) %s", a.Version, a.Commit, a.Date)
}
