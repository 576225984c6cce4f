package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/park285/BusyBee-chess-bot/internal/app"
	"github.com/park285/BusyBee-chess-bot/internal/config"
	"github.com/park285/BusyBee-chess-bot/internal/notify"
	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Poll once and print unannounced slow games without alerting or recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, cfg *config.AppConfig, deps *app.Deps) error {
				w, err := deps.Watcher(notify.NewLog(deps.Logger.Named("alerts")))
				if err != nil {
					return err
				}
				res, err := w.Check(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "queried %d, playing %d, slow %d, already announced %d\n", res.Queried, res.Playing, res.Slow, res.Known)
				if len(res.Alerts) == 0 {
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "USER\tCLOCK\tMINUTES\tURL")
				for _, a := range res.Alerts {
					fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\n", a.Username, a.Clock, a.TotalMinutes, a.URL)
				}
				return tw.Flush()
			})
		},
	}
}
