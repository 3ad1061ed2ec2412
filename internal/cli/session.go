package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/storesync/internal/identity"
	"github.com/roach88/storesync/internal/store"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	AccessToken string
	UserID      string
	Email       string
	Name        string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Persist an authentication session",
		Long: `Persist an authentication session in the local database. The next
run resolves the identity from it.

Either pass an access token obtained elsewhere, or a user id to have the
remote issue one (twin backends only).

Examples:
  storesync login --token eyJhbGciOi...
  storesync login --user user-7 --email ada@example.com --name "Ada Lovelace"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AccessToken, "token", "", "access token")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id to issue a token for")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email for an issued token")
	cmd.Flags().StringVar(&opts.Name, "name", "", "full name for an issued token")
	cmd.MarkFlagsMutuallyExclusive("token", "user")
	cmd.MarkFlagsOneRequired("token", "user")

	return cmd
}

func runLogin(opts *LoginOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.setupLogging(cmd, cfg)
	ctx := commandContext(cmd)

	sess := identity.Session{AccessToken: opts.AccessToken}
	if opts.UserID != "" {
		client, err := newClient(cfg, nil)
		if err != nil {
			return err
		}
		if client == nil {
			return NewExitError(ExitCommandError, "issuing a token requires remote_url")
		}
		var meta map[string]any
		if opts.Name != "" {
			meta = map[string]any{"full_name": opts.Name}
		}
		pair, err := client.IssueToken(ctx, opts.UserID, opts.Email, meta)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to issue token", err)
		}
		sess = identity.Session{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    pair.ExpiresAt,
			User:         identity.SessionUser{ID: opts.UserID, Email: opts.Email, Metadata: meta},
		}
	}

	ident, ok := identity.FromSession(sess)
	if !ok {
		return NewExitError(ExitCommandError, "token does not identify a registered user")
	}

	local, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer local.Close()
	identity.AuthSession.Save(ctx, local, sess)
	slog.Info("session saved", "user", ident.ID)

	return opts.formatter(cmd).Success(
		map[string]any{"user": ident.ID, "display_name": ident.DisplayName},
		fmt.Sprintf("Logged in as %s (%s)\n", ident.ID, ident.DisplayName),
	)
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Forget the persisted session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			rootOpts.setupLogging(cmd, cfg)

			local, err := store.Open(cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer local.Close()

			ctx := commandContext(cmd)
			identity.AuthSession.Clear(ctx, local)
			identity.LastIdentity.Clear(ctx, local)
			return rootOpts.formatter(cmd).Success(map[string]any{"user": "guest"}, "Logged out\n")
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
