package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/storesync/internal/catalog"
)

// MissionsOptions holds flags for the missions command.
type MissionsOptions struct {
	*RootOptions
	Catalog string
}

// NewMissionsCommand creates the missions command.
func NewMissionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MissionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "missions",
		Short: "Validate and list the mission catalog",
		Long: `Compile the mission and reward catalog and list its entries. Without
--catalog the configured catalog, or the embedded default, is used.

Example:
  storesync missions --catalog ./missions.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listMissions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE catalog file")

	return cmd
}

func listMissions(opts *MissionsOptions, cmd *cobra.Command) error {
	path := opts.Catalog
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		path = cfg.MissionCatalog
	}

	cat, err := loadCatalog(path)
	if err != nil {
		f := opts.formatter(cmd)
		_ = f.Error("VALIDATION", "invalid mission catalog", err.Error())
		return err
	}

	data := map[string]any{
		"missions": cat.Missions,
		"rewards":  cat.Rewards,
	}
	return opts.formatter(cmd).Success(data, renderCatalog(cat))
}

func renderCatalog(cat *catalog.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Missions (%d):\n", len(cat.Missions))
	for _, m := range cat.Missions {
		fmt.Fprintf(&b, "  %-16s %-16s target %-3d reward %d\n", m.ID, m.Trigger, m.Target, m.Reward)
	}
	fmt.Fprintf(&b, "Rewards (%d):\n", len(cat.Rewards))
	for _, r := range cat.Rewards {
		stock := "unlimited"
		if r.Stock != nil {
			stock = fmt.Sprintf("%d left", *r.Stock)
		}
		fmt.Fprintf(&b, "  %-16s cost %-5d %-10s valid %d days\n", r.ID, r.Cost, stock, r.ValidDays)
	}
	return b.String()
}
