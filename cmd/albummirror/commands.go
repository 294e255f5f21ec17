package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adampresley/albummirror/pkg/immich"
	"github.com/adampresley/albummirror/pkg/models"
	"github.com/spf13/cobra"
)

/*
withApp builds the app for a command. When locked is set, the run lock
is held for the duration of fn.
*/
func withApp(ctx *commandContext, locked bool, fn func(shutdownCtx context.Context, a *app) error) error {
	config, err := ctx.ensureConfig()

	if err != nil {
		return err
	}

	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if locked {
		lock, err := acquireLock(config.LockPath())

		if err != nil {
			return err
		}

		defer releaseLock(lock)
	}

	a, err := newApp(shutdownCtx, config)

	if err != nil {
		return err
	}

	defer a.close()
	return fn(shutdownCtx, a)
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var albumID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download new and changed images from Immich",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(ctx, true, func(shutdownCtx context.Context, a *app) error {
				var (
					err    error
					result models.SyncResult
				)

				if albumID != "" {
					result, err = a.syncService.SyncAlbum(albumID)
				} else {
					result, err = a.syncService.SyncAll()
				}

				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderSyncSummary(result))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&albumID, "album", "", "Sync a single album by ID")
	return cmd
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Convert downloaded images to AVIF",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(ctx, true, func(shutdownCtx context.Context, a *app) error {
				result, err := a.conversionService.ConvertAll()

				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderConversionSummary(result))
				return nil
			})
		},
	}
}

func newReindexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Delete every AVIF file and convert all images again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(ctx, true, func(shutdownCtx context.Context, a *app) error {
				result, err := a.conversionService.Reindex()

				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderConversionSummary(result))
				return nil
			})
		},
	}
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Upload AVIF files to the configured S3 bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(ctx, true, func(shutdownCtx context.Context, a *app) error {
				if a.publishService == nil {
					return fmt.Errorf("publishing is not configured, set AWS_BUCKET")
				}

				result, err := a.publishService.PublishAll()

				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderPublishSummary(result))
				return nil
			})
		},
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve albums and AVIF images over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(ctx, false, func(shutdownCtx context.Context, a *app) error {
				serve(a, nil)
				return nil
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sync, convert, publish when configured, then serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(ctx, true, func(shutdownCtx context.Context, a *app) error {
				if err := runPipeline(a, cmd); err != nil {
					return err
				}

				serve(a, func(stop <-chan struct{}) {
					setupPeriodicSync(a, stop)
				})

				return nil
			})
		},
	}
}

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the connection to the Immich server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(ctx, false, func(shutdownCtx context.Context, a *app) error {
				pingCtx, cancel := context.WithTimeout(shutdownCtx, time.Second*30)
				defer cancel()

				version, err := a.immichClient.Ping(pingCtx)

				if err != nil {
					return fmt.Errorf("error connecting to Immich: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Connected to Immich %s\n", version.String())
				return nil
			})
		},
	}
}

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Obtain an OAuth access token for Immich",
	}

	authCmd.AddCommand(&cobra.Command{
		Use:   "url [state]",
		Short: "Print the URL to visit to authorize access",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := oauthProvider(ctx)

			if err != nil {
				return err
			}

			state := appName

			if len(args) > 0 {
				state = args[0]
			}

			fmt.Fprintln(cmd.OutOrStdout(), provider.AuthorizationURL(state))
			return nil
		},
	})

	authCmd.AddCommand(&cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code and print the access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := oauthProvider(ctx)

			if err != nil {
				return err
			}

			exchangeCtx, cancel := context.WithTimeout(cmd.Context(), time.Second*30)
			defer cancel()

			if err = provider.ExchangeCode(exchangeCtx, args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set OAUTH_ACCESS_TOKEN to:\n%s\n", provider.Token())
			return nil
		},
	})

	return authCmd
}

func oauthProvider(ctx *commandContext) (*immich.OAuthProvider, error) {
	config, err := ctx.ensureConfig()

	if err != nil {
		return nil, err
	}

	auth, err := config.AuthProvider()

	if err != nil {
		return nil, err
	}

	provider, ok := auth.(*immich.OAuthProvider)

	if !ok {
		return nil, fmt.Errorf("%w: auth commands require AUTH_TYPE=oauth", immich.ErrUnsupportedAuth)
	}

	return provider, nil
}

/*
runPipeline syncs, converts and publishes once. Only a failure to talk
to Immich at all stops the pipeline; per image failures are counted.
*/
func runPipeline(a *app, cmd *cobra.Command) error {
	var (
		err              error
		syncResult       models.SyncResult
		conversionResult models.ConversionResult
		publishResult    models.PublishResult
	)

	out := cmd.OutOrStdout()

	if syncResult, err = a.syncService.SyncAll(); err != nil {
		return err
	}

	fmt.Fprintln(out, renderSyncSummary(syncResult))

	if conversionResult, err = a.conversionService.ConvertAll(); err != nil {
		return err
	}

	fmt.Fprintln(out, renderConversionSummary(conversionResult))

	if a.publishService == nil {
		return nil
	}

	if publishResult, err = a.publishService.PublishAll(); err != nil {
		slog.Error("publishing failed", "error", err)
		return nil
	}

	fmt.Fprintln(out, renderPublishSummary(publishResult))
	return nil
}
