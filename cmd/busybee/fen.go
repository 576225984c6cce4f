package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/park285/BusyBee-chess-bot/internal/fenimg"
	"github.com/spf13/cobra"
)

func fenCmd() *cobra.Command {
	var out string
	var opts fenimg.Options
	cmd := &cobra.Command{
		Use:   "fen <FEN>",
		Short: "Render a FEN position to a PNG file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			png, err := fenimg.RenderFEN(ctx, strings.Join(args, " "), opts)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(png))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "board.png", "output file")
	cmd.Flags().BoolVar(&opts.Flipped, "flip", false, "draw from black's side")
	cmd.Flags().IntVar(&opts.Size, "size", fenimg.DefaultSize, "image edge in pixels")
	cmd.Flags().BoolVar(&opts.NoCoordinates, "no-coords", false, "omit the coordinate margin labels")
	return cmd
}
