package main

import (
	"context"
	"fmt"

	"github.com/park285/BusyBee-chess-bot/internal/app"
	"github.com/park285/BusyBee-chess-bot/internal/config"
	"github.com/spf13/cobra"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect or edit the watched user registry",
	}
	cmd.AddCommand(usersListCmd())
	cmd.AddCommand(usersAddCmd("add", "Watch a Lichess user, optionally linked to a chat user id", true))
	cmd.AddCommand(usersAddCmd("follow", "Watch a Lichess user without linking it", false))
	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List watched users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, cfg *config.AppConfig, deps *app.Deps) error {
				out := cmd.OutOrStdout()
				for _, e := range deps.Users.Entries() {
					if e.Linked() {
						fmt.Fprintf(out, "%s\t%s\n", e.Username, e.OwnerID)
						continue
					}
					fmt.Fprintln(out, e.Username)
				}
				return nil
			})
		},
	}
}

func usersAddCmd(use, short string, withOwner bool) *cobra.Command {
	var owner string
	var skipCheck bool
	cmd := &cobra.Command{
		Use:   use + " <lichess user>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			return withDeps(func(ctx context.Context, cfg *config.AppConfig, deps *app.Deps) error {
				if !skipCheck {
					ok, err := deps.Lichess.UserExists(ctx, username)
					if err != nil {
						return fmt.Errorf("check %s on lichess: %w", username, err)
					}
					if !ok {
						return fmt.Errorf("lichess user %s does not exist", username)
					}
				}
				added, err := deps.Users.Add(ctx, username, owner)
				if err != nil {
					return err
				}
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already watched\n", username)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", username)
				return nil
			})
		},
	}
	if withOwner {
		cmd.Flags().StringVar(&owner, "owner", "", "chat user id to link")
	}
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "do not verify the user on lichess")
	return cmd
}
