package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/storesync/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	For time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reconciliation engine",
		Long: `Resolve the persisted identity, reconcile it with the remote profile
service and keep applying realtime changes until interrupted. The final
state is printed on exit.

Example:
  storesync run --config ./storesync.yaml
  storesync run --db /tmp/storesync.db --for 30s --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.For, "for", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.setupLogging(cmd, cfg)

	t, err := openTiers(cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	engOpts, err := engineOptions(cfg, t, false)
	if err != nil {
		return err
	}
	eng := engine.New(engOpts)
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if opts.For > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, opts.For)
		defer stop()
	}

	if err := eng.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start engine", err)
	}

	slog.Info("engine starting", "db", cfg.Database, "remote", cfg.RemoteURL)
	fmt.Fprintln(opts.formatter(cmd).GetErrWriter(), "Engine started. Press Ctrl-C to stop.")

	err = eng.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		_ = opts.formatter(cmd).Error(ErrorCode(err), "engine stopped", err.Error())
		return WrapExitError(ExitFailure, "engine error", err)
	}
	slog.Info("engine stopped gracefully")

	snap := eng.Snapshot()
	return opts.formatter(cmd).Success(snap, renderSnapshot(snap))
}

// renderSnapshot formats a snapshot for text output.
func renderSnapshot(s engine.Snapshot) string {
	var b strings.Builder
	kind := "guest"
	if s.Identity.Registered {
		kind = "registered"
	}
	fmt.Fprintf(&b, "Identity:   %s (%s, %s)\n", s.Identity.ID, s.Identity.DisplayName, kind)
	fmt.Fprintf(&b, "Synced:     %t\n", s.Synced)
	fmt.Fprintf(&b, "Coins:      %d\n", s.Identity.Coins)
	fmt.Fprintf(&b, "Streak:     %d day(s), %d total\n", s.Identity.Stats.LoginStreak, s.Identity.Stats.LoginDaysTotal)

	fmt.Fprintf(&b, "Cart:       %d line(s), %s", len(s.Cart), formatCents(s.CartTotal))
	if s.Discount.Percent > 0 {
		fmt.Fprintf(&b, " -%d%% = %s", s.Discount.Percent, formatCents(s.DiscountedTotal()))
	}
	b.WriteString("\n")
	for _, l := range s.Cart {
		fmt.Fprintf(&b, "  %-20s x%-3d %s\n", l.ProductID, l.Quantity, formatCents(l.PriceSnapshot))
	}

	fmt.Fprintf(&b, "Favorites:  %s\n", listOrNone(s.Favorites))
	fmt.Fprintf(&b, "Wheel:      %s (spent=%t)\n", s.Wheel, s.Discount.Spent)
	if len(s.Missions) > 0 {
		b.WriteString("Missions:\n")
		for _, m := range s.Missions {
			status := "in progress"
			switch {
			case m.Claimed:
				status = "claimed"
			case m.Completed:
				status = "completed"
			}
			fmt.Fprintf(&b, "  %-16s %4d  %s\n", m.MissionID, m.Progress, status)
		}
	}
	if len(s.Inventory) > 0 {
		b.WriteString("Inventory:\n")
		for _, g := range s.Inventory {
			fmt.Fprintf(&b, "  %-16s expires %s\n", g.RewardID, g.ExpiresAt)
		}
	}
	return b.String()
}

func formatCents(c int64) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
