package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/park285/BusyBee-chess-bot/internal/config"
	"github.com/park285/BusyBee-chess-bot/internal/irisfast"
	"github.com/spf13/cobra"
)

func irisCheckCmd() *cobra.Command {
	var watchFor time.Duration
	cmd := &cobra.Command{
		Use:   "iris-check",
		Short: "Probe the Iris bridge: GET /config and an optional WebSocket session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.IrisBaseURL == "" {
				return errors.New("IRIS_BASE_URL is required")
			}
			out := cmd.OutOrStdout()
			headers := irisfast.Identity{UserID: cfg.XUserID, UserEmail: cfg.XUserEmail, SessionID: cfg.XSessionID}.Headers()
			client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers), irisfast.WithTimeout(8*time.Second))

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			ic, err := client.GetConfig(ctx)
			cancel()
			if err != nil {
				fmt.Fprintf(out, "/config error: %v\n", err)
			} else {
				fmt.Fprintf(out, "/config ok: port=%d polling=%d rate=%d endpoint=%s\n", ic.Port, ic.PollingSpeed, ic.MessageRate, ic.WebserverEndpoint)
			}

			if cfg.IrisWSURL == "" {
				fmt.Fprintln(out, "IRIS_WS_URL not set; skipping WS check")
				return err
			}
			ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
			ws.SetHeaderProvider(headers)
			ws.OnStateChange(func(state irisfast.WebSocketState) {
				fmt.Fprintf(out, "WS state: %s\n", state)
			})
			ws.OnMessage(func(msg *irisfast.Message) {
				from := msg.SenderName()
				if from == "" {
					from = "?"
				}
				fmt.Fprintf(out, "WS msg room=%s from=%s text=%q\n", msg.Room, from, msg.Msg)
			})

			cctx, ccancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			werr := ws.Connect(cctx)
			ccancel()
			if werr != nil {
				return errors.Join(err, fmt.Errorf("ws connect: %w", werr))
			}
			// observe for a short window
			select {
			case <-time.After(watchFor):
			case <-cmd.Context().Done():
			}
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			return errors.Join(err, ws.Close(closeCtx))
		},
	}
	cmd.Flags().DurationVar(&watchFor, "watch", 10*time.Second, "how long to print inbound messages")
	return cmd
}
