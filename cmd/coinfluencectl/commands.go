package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coinfluence/internal/auth"
	"coinfluence/internal/jobs"
	"coinfluence/internal/models"
	"coinfluence/internal/networks"
	"coinfluence/internal/services"

	"github.com/spf13/cobra"
)

const changedByCLI = "cli"

func newSetAdminCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "set-admin <email>",
		Short: "Grant admin status to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setStatus(cmd.Context(), args[0], models.UserStatusAdmin, reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the status history")
	return cmd
}

func newSetInfluencerCmd(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "set-influencer <email>",
		Short: "Grant influencer status and create the directory profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setStatus(cmd.Context(), args[0], models.UserStatusInfluencer, reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "profile description and status history reason")
	return cmd
}

func (a *app) setStatus(ctx context.Context, email string, status models.UserStatus, reason string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	db, err := a.openDB(ctx, cfg)
	if err != nil {
		return err
	}

	change, err := services.NewUserService(db).SetStatus(ctx, email, status, changedByCLI, reason)
	if err != nil {
		return fmt.Errorf("failed to set %s status for %s: %w", status, email, err)
	}

	if !change.Changed {
		fmt.Fprintf(a.out, "%s is already %s\n", email, status)
		return nil
	}
	fmt.Fprintf(a.out, "%s: %s -> %s\n", email, change.OldStatus, status)
	if change.Influencer != nil {
		fmt.Fprintf(a.out, "influencer profile #%d %s\n", change.Influencer.ID, change.Influencer.Handle)
	}
	return nil
}

func newRefreshViewsCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "refresh-views [view...]",
		Short: "Refresh the market data materialized views once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			db, err := a.openSQL(cfg)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := jobs.NewViewRefresher(db, args...).RefreshAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "views refreshed")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall refresh deadline")
	return cmd
}

func newNetworksCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "Print the supported networks as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := networks.Load(file)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"defaultNetwork": registry.Default().ID,
				"networks":       registry.List(),
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "networks file (yaml, json or toml); built-in defaults when empty")
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Issue an API bearer token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			db, err := a.openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			user, err := services.NewAuthService(db).ResolveUser(cmd.Context(), services.Identity{Email: args[0]})
			if err != nil {
				return fmt.Errorf("failed to find %s: %w", args[0], err)
			}

			auth.InitJWT(cfg.App.JWTSecret)
			subject := ""
			if user.FirebaseUID != nil {
				subject = *user.FirebaseUID
			}
			token, err := auth.GenerateToken(subject, user.Email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	return cmd
}
