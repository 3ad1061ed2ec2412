package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/storesync/internal/twin"
)

// ServeTwinOptions holds flags for the serve-twin command.
type ServeTwinOptions struct {
	*RootOptions
	Addr        string
	Seed        string
	TokenSecret string
	RequireAuth bool

	// ready, when set, receives the bound address once listening (tests).
	ready chan<- string
}

// NewServeTwinCommand creates the serve-twin command.
func NewServeTwinCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeTwinOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve-twin",
		Short: "Serve an in-memory remote backend",
		Long: `Serve an in-memory implementation of the remote profile, catalog,
auth and realtime endpoints, optionally seeded from a YAML file.

Example:
  storesync serve-twin --addr 127.0.0.1:8787 --seed ./seed.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveTwin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "YAML seed file")
	cmd.Flags().StringVar(&opts.TokenSecret, "token-secret", "", "HMAC secret for issued tokens (random when empty)")
	cmd.Flags().BoolVar(&opts.RequireAuth, "require-auth", true, "restrict profile routes to the token subject")

	return cmd
}

func serveTwin(opts *ServeTwinOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.setupLogging(cmd, cfg)

	var seed *twin.Seed
	if opts.Seed != "" {
		seed, err = twin.LoadSeed(opts.Seed)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load seed", err)
		}
	}
	srv := twin.New(twin.Options{
		TokenSecret: opts.TokenSecret,
		RequireAuth: opts.RequireAuth,
		Seed:        seed,
	})

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()

	addr := ln.Addr().String()
	slog.Info("twin listening", "addr", addr, "seeded", seed != nil)
	fmt.Fprintf(cmd.OutOrStdout(), "Twin listening on http://%s\n", addr)
	if opts.ready != nil {
		opts.ready <- addr
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "twin server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "twin shutdown error", err)
	}
	slog.Info("twin stopped gracefully")
	return nil
}
