// Command busybee watches Lichess users for slow games and answers chess
// commands in KakaoTalk rooms through Iris.
//
// Usage:
//
//	busybee run
//	busybee check
//	busybee users list
//	busybee users add <lichess user> --owner <chat user id>
//	busybee users follow <lichess user>
//	busybee fen "<FEN>" -o board.png
//	busybee iris-check --watch 10s
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/park285/BusyBee-chess-bot/internal/app"
	"github.com/park285/BusyBee-chess-bot/internal/config"
	"github.com/park285/BusyBee-chess-bot/internal/obslog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var envFile string
	root := &cobra.Command{
		Use:           "busybee",
		Short:         "Lichess slow game alerts and chess helpers for KakaoTalk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			if err := config.LoadDotEnv(files...); err != nil {
				return err
			}
			return obslog.InitFromEnv()
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default .env when present)")

	root.AddCommand(runCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(usersCmd())
	root.AddCommand(fenCmd())
	root.AddCommand(irisCheckCmd())

	err := root.Execute()
	obslog.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "busybee:", err)
		os.Exit(1)
	}
}

// withDeps loads config, builds the core components and closes them when fn returns.
// ctx is cancelled on SIGINT or SIGTERM.
func withDeps(fn func(ctx context.Context, cfg *config.AppConfig, deps *app.Deps) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	deps, err := app.New(ctx, cfg, obslog.L())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := deps.Close(); cerr != nil {
			obslog.L().Warn("shutdown_close_failed", zap.Error(cerr))
		}
	}()
	return fn(ctx, cfg, deps)
}
