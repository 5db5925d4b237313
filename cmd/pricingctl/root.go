package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/cabinetry/internal/app"
	"github.com/Simplici0/cabinetry/internal/config"
	"github.com/Simplici0/cabinetry/internal/logging"
	"github.com/Simplici0/cabinetry/internal/store"
)

// cli carries state shared by subcommands. The backend is opened on first use
// so commands that price a self-contained request never touch storage.
type cli struct {
	envFile  string
	logLevel string

	cfg config.Config
	log *zap.Logger
	app *app.App
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:   "pricingctl",
		Short: "Manage cabinet pricing configuration and versions",
		Long: `pricingctl prices cabinet estimates and administers the active pricing
configuration and its version log, using the same storage as the server.

Examples:
  pricingctl estimate -f request.json
  pricingctl versions
  pricingctl restore 1709294400000
  pricingctl config show`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		c.estimateCmd(),
		c.versionsCmd(),
		c.versionCmd(),
		c.restoreCmd(),
		c.configCmd(),
		c.migrateCmd(),
		c.seedCmd(),
	)
	return root, c
}

// execute runs root and always releases what the command opened, including
// when it fails.
func execute(root *cobra.Command, c *cli) error {
	err := root.Execute()
	if closeErr := c.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (c *cli) init() error {
	cfg, err := config.LoadFrom(c.envFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	c.cfg = cfg
	c.log = logging.New(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func (c *cli) backend(ctx context.Context) (store.Backend, error) {
	if c.app == nil {
		a, err := app.Open(ctx, c.cfg, c.log)
		if err != nil {
			return nil, fmt.Errorf("open backend: %w", err)
		}
		c.app = a
	}
	return c.app.Backend, nil
}

func (c *cli) close() error {
	if c.log != nil {
		defer func() { _ = c.log.Sync() }()
	}
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}
