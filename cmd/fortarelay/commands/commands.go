package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/arbitraryexecution/forta-relay/internal/app"
	"github.com/arbitraryexecution/forta-relay/internal/config"
	"github.com/arbitraryexecution/forta-relay/internal/notify"
	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

const shutdownTimeout = 10 * time.Second

func (a *App) newApp() (*app.App, error) {
	return app.New(app.Options{
		Config:    a.Config,
		Logger:    a.Logger,
		BuildInfo: a.buildInfo(),
		Version:   a.Version,
	})
}

// serveCommand returns the serve subcommand
func (a *App) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "accept alert events over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "listen address, overrides server.address",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.runServe(ctx, cmd)
		},
	}
}

func (a *App) runServe(ctx context.Context, cmd *cli.Command) error {
	if addr := cmd.String("address"); addr != "" {
		a.Config.Server.Address = addr
	}

	relayApp, err := a.newApp()
	if err != nil {
		return err
	}
	relayApp.Initialize()

	errCh := make(chan error, 1)
	go func() {
		errCh <- relayApp.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := relayApp.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// invokeCommand returns the invoke subcommand
func (a *App) invokeCommand() *cli.Command {
	return &cli.Command{
		Name:  "invoke",
		Usage: "run a single event through the relay",
		Description: `Reads one autotask event (JSON) and handles it once, printing the result.

Examples:
   fortarelay invoke --event event.json
   cat event.json | fortarelay invoke`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "event",
				Aliases: []string{"e"},
				Usage:   "path to the event JSON, stdin when omitted or '-'",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.runInvoke(ctx, cmd)
		},
	}
}

func (a *App) runInvoke(ctx context.Context, cmd *cli.Command) error {
	raw, err := readEvent(cmd.String("event"), cmd.Root().Reader)
	if err != nil {
		return err
	}

	relayApp, err := a.newApp()
	if err != nil {
		return err
	}

	res, err := relayApp.Relay.HandleRaw(ctx, raw)
	if err != nil {
		return err
	}

	out, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Fprintln(cmd.Root().Writer, string(out))
	return nil
}

func readEvent(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read event from stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event: %w", err)
	}
	return raw, nil
}

// formatCommand returns the format subcommand
func (a *App) formatCommand() *cli.Command {
	return &cli.Command{
		Name:  "format",
		Usage: "print the message that would be sent for the given amounts",
		Description: `Examples:
   fortarelay format --accrued 0 --distributed 4989396791922 --receiver 0x8F077B --tx 0xabc
   fortarelay format --accrued 4 --distributed 1 --receiver 0x1234 --tx 0xabc`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "accrued", Usage: "compAccrued value", Required: true},
			&cli.StringFlag{Name: "distributed", Usage: "compDistributed value", Required: true},
			&cli.StringFlag{Name: "receiver", Usage: "receiver address", Required: true},
			&cli.StringFlag{Name: "tx", Usage: "transaction hash", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			record := models.AlertRecord{
				Metadata: models.AlertMetadata{
					CompAccrued:     cmd.String("accrued"),
					CompDistributed: cmd.String("distributed"),
					Receiver:        cmd.String("receiver"),
				},
			}
			msg, err := notify.NewFormatter(a.Config.Explorer.TxURL).Format(record, cmd.String("tx"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, msg)
			return nil
		},
	}
}

// configCommand returns the config subcommand
func (a *App) configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "manage relay configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "show effective configuration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return a.runConfigShow(ctx, cmd)
				},
			},
			{
				Name:  "init",
				Usage: "initialize configuration interactively",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return a.runConfigInit(ctx, cmd)
				},
			},
		},
	}
}

func (a *App) runConfigShow(ctx context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer
	c := a.Config

	fmt.Fprintf(w, "Listen Address: %s\n", c.Server.Address)
	fmt.Fprintf(w, "Forta Endpoint: %s\n", c.Forta.Endpoint)
	fmt.Fprintf(w, "Chain ID:       %d\n", c.Forta.ChainID)
	fmt.Fprintf(w, "Page Size:      %d\n", c.Forta.PageSize)
	fmt.Fprintf(w, "Secret Name:    %s\n", c.Discord.SecretName)
	fmt.Fprintf(w, "Retry Delay:    %s\n", c.Discord.RetryDelay)
	fmt.Fprintf(w, "Explorer:       %s\n", c.Explorer.TxURL)
	fmt.Fprintf(w, "Log Level:      %s\n", c.Logging.Level)

	if c.Discord.WebhookURL != "" {
		fmt.Fprintf(w, "Webhook URL:    %s\n", mutedStyle.Render(maskURL(c.Discord.WebhookURL)))
	} else {
		fmt.Fprintf(w, "Webhook URL:    %s\n", errorStyle.Render("not set"))
	}
	return nil
}

// maskURL keeps only the scheme and host of a webhook URL; the path carries
// the webhook token.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "****"
	}
	return u.Scheme + "://" + u.Host + "/****"
}

func (a *App) runConfigInit(ctx context.Context, cmd *cli.Command) error {
	webhookURL := a.Config.Discord.WebhookURL
	secretName := a.Config.Discord.SecretName
	endpoint := a.Config.Forta.Endpoint
	explorer := a.Config.Explorer.TxURL

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Discord Webhook URL").
				Description("Used by POST /api/v1/alerts").
				Placeholder("https://discord.com/api/webhooks/...").
				EchoMode(huh.EchoModePassword).
				Value(&webhookURL),
			huh.NewInput().
				Title("Webhook Secret Name").
				Description("Secret key holding the webhook URL in autotask events").
				Value(&secretName).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("secret name cannot be empty")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Forta API Endpoint").
				Value(&endpoint),
			huh.NewInput().
				Title("Explorer Transaction URL").
				Description("Prefix for transaction links").
				Value(&explorer),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return err
	}

	a.Config.Discord.WebhookURL = webhookURL
	a.Config.Discord.SecretName = secretName
	a.Config.Forta.Endpoint = endpoint
	a.Config.Explorer.TxURL = explorer

	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	path := a.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	if err := a.Config.Save(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	log.Debug("config written", "path", path)
	fmt.Fprintf(cmd.Root().Writer, "\n%s Configuration saved to %s\n", successStyle.Render("✓"), path)
	return nil
}
