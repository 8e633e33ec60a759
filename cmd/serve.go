package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/prmarites/internal/api"
	"github.com/prmarites/internal/config"
)

// ServeCommand returns the CLI command for starting the webhook server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the webhook relay server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the webhook server (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			// .env is a local development convenience; absence is fine
			_ = godotenv.Load()

			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("port") {
				cfg.Server.Port = c.Int("port")
			}

			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if cfg.Debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration incomplete: %w", err)
			}

			log.Info().Int("port", cfg.Server.Port).Msg("Starting PR Marites webhook server")

			server := api.NewServer(cfg)
			return server.Start()
		},
	}
}
