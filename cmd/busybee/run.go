package main

import (
	"context"
	"fmt"
	"time"

	"github.com/park285/BusyBee-chess-bot/internal/app"
	"github.com/park285/BusyBee-chess-bot/internal/config"
	"github.com/park285/BusyBee-chess-bot/internal/irisfast"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runCmd() *cobra.Command {
	var noChat, dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the chat bot and the slow game watcher until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, cfg *config.AppConfig, deps *app.Deps) error {
				return run(ctx, cfg, deps, noChat, dryRun)
			})
		},
	}
	cmd.Flags().BoolVar(&noChat, "no-chat", false, "only watch and alert, do not answer chat commands")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log alerts and replies instead of sending them")
	return cmd
}

func run(ctx context.Context, cfg *config.AppConfig, deps *app.Deps, noChat, dryRun bool) error {
	logger := deps.Logger
	if noChat {
		if err := cfg.ValidateAlerts(); err != nil {
			return err
		}
	} else if err := cfg.ValidateBot(); err != nil {
		return err
	}

	if !noChat || cfg.UsesNotifier("iris") {
		if err := deps.WithIris(dryRun); err != nil {
			return err
		}
	}
	notifier, err := deps.Notifier(dryRun)
	if err != nil {
		return err
	}
	watcher, err := deps.Watcher(notifier)
	if err != nil {
		return err
	}

	if !noChat {
		handler, err := deps.Commands()
		if err != nil {
			return err
		}
		if deps.WS == nil {
			return fmt.Errorf("IRIS_WS_URL is required")
		}
		handler.Attach(deps.WS)
		deps.WS.OnStateChange(func(state irisfast.WebSocketState) {
			logger.Info("iris_ws_state", zap.String("state", state.String()))
		})
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = deps.WS.Connect(cctx)
		cancel()
		if err != nil {
			return fmt.Errorf("iris ws connect: %w", err)
		}
	}

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	logger.Info("busybee_started",
		zap.Bool("chat", !noChat),
		zap.Bool("dry_run", dryRun),
		zap.Duration("interval", cfg.PollInterval),
		zap.Float64("threshold_minutes", cfg.SlowThresholdMinutes),
	)

	<-ctx.Done()
	logger.Info("busybee_stopping")
	// the in-flight tick finishes before Stop returns
	watcher.Stop()
	return nil
}
