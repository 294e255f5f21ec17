package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/adampresley/albummirror/cmd/albummirror/internal/configuration"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     configuration.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (configuration.Config, error) {
	c.configOnce.Do(func() {
		var path string

		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}

		if c.config, c.configErr = configuration.LoadConfig(path); c.configErr != nil {
			return
		}

		setupLogger(&c.config, Version)

		if c.configErr = c.config.Validate(); c.configErr != nil {
			return
		}

		slog.Info("configuration loaded",
			slog.String("app", appName),
			slog.String("version", Version),
			slog.String("loglevel", c.config.LogLevel),
			slog.String("immichURL", c.config.ImmichURL),
			slog.String("authType", c.config.AuthType),
			slog.String("storagePath", c.config.StoragePath),
			slog.Bool("publishEnabled", c.config.PublishEnabled()),
		)
	})

	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Mirror Immich albums locally as size-budgeted AVIF files",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "TOML configuration file. Environment variables are used when omitted")

	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newConvertCommand(ctx))
	rootCmd.AddCommand(newReindexCommand(ctx))
	rootCmd.AddCommand(newPublishCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newPingCommand(ctx))
	rootCmd.AddCommand(newAuthCommand(ctx))

	return rootCmd
}
