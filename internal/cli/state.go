package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/storesync/internal/engine"
)

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the locally persisted state",
		Long: `Resolve the persisted identity and print its locally stored cart,
favorites and discount without contacting the remote service.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			rootOpts.setupLogging(cmd, cfg)

			t, err := openTiers(cfg)
			if err != nil {
				return err
			}
			defer t.Close()

			opts, err := engineOptions(cfg, t, true)
			if err != nil {
				return err
			}
			opts.Inline = true
			eng := engine.New(opts)
			defer eng.Close()

			if err := eng.Start(commandContext(cmd)); err != nil {
				return WrapExitError(ExitFailure, "failed to start engine", err)
			}
			eng.Drain()

			snap := eng.Snapshot()
			return rootOpts.formatter(cmd).Success(snap, renderSnapshot(snap))
		},
	}
}
