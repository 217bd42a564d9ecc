package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"kzz_crawler/models"
)

type strategyFlags struct {
	target      float64
	targetHeavy float64
	sell        float64
	level       int64
	profit      string
	stateOwned  bool
	favorite    bool
	blacklisted bool
	analyzed    bool
	clear       []string
}

func newStrategyCmd(e *env) *cobra.Command {
	strategy := &cobra.Command{
		Use:   "strategy",
		Short: "Manage per-bond operator strategy",
	}

	var f strategyFlags
	set := &cobra.Command{
		Use:   "set <bond_id>",
		Short: "Merge the given fields into a bond's strategy row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := f.record(cmd, args[0])
			if err != nil {
				return err
			}
			bonds, err := e.bondService(cmd.Context())
			if err != nil {
				return err
			}
			if err := bonds.SetStrategy(cmd.Context(), rec); err != nil {
				return err
			}
			cols, _ := models.StrategyFields.Present(rec)
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s: %v\n", rec.BondID, cols)
			return nil
		},
	}

	f.bind(set)
	strategy.AddCommand(set)
	return strategy
}

// bind registers the flags on cmd.
func (f *strategyFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.target, "target", 0, "buy target price")
	fs.Float64Var(&f.targetHeavy, "target-heavy", 0, "heavy-position target price")
	fs.Float64Var(&f.sell, "sell", 0, "sell price")
	fs.Int64Var(&f.level, "level", 0, "safety level: 0 unsafe, 1 relatively safe, 2 safe")
	fs.StringVar(&f.profit, "profit-strategy", "", "free-form strategy note")
	fs.BoolVar(&f.stateOwned, "state-owned", false, "issuer is state owned")
	fs.BoolVar(&f.favorite, "favorite", false, "watch this bond in the monitor")
	fs.BoolVar(&f.blacklisted, "blacklist", false, "exclude this bond from monitoring and detail crawls")
	fs.BoolVar(&f.analyzed, "analyzed", false, "mark as analyzed")
	fs.StringSliceVar(&f.clear, "clear", nil, "columns to set to null, e.g. --clear target_price,sell_price")
}

// record builds a partial strategy row from the flags actually passed.
func (f *strategyFlags) record(cmd *cobra.Command, bondID string) (*models.StrategyRecord, error) {
	changed := cmd.Flags().Changed
	rec := &models.StrategyRecord{BondID: bondID}

	if changed("target") {
		rec.TargetPrice = models.Some(f.target)
	}
	if changed("target-heavy") {
		rec.TargetHeavyPrice = models.Some(f.targetHeavy)
	}
	if changed("sell") {
		rec.SellPrice = models.Some(f.sell)
	}
	if changed("level") {
		rec.Level = models.Some(f.level)
	}
	if changed("profit-strategy") {
		rec.ProfitStrategy = models.Some(f.profit)
	}
	if changed("state-owned") {
		rec.IsStateOwned = models.Some(flagInt(f.stateOwned))
	}
	if changed("favorite") {
		rec.IsFavorite = models.Some(flagInt(f.favorite))
	}
	if changed("blacklist") {
		rec.IsBlacklisted = models.Some(flagInt(f.blacklisted))
	}
	if changed("analyzed") {
		rec.IsAnalyzed = models.Some(flagInt(f.analyzed))
	}

	for _, col := range f.clear {
		switch col {
		case "target_price":
			rec.TargetPrice = models.Null[float64]()
		case "target_heavy_price":
			rec.TargetHeavyPrice = models.Null[float64]()
		case "sell_price":
			rec.SellPrice = models.Null[float64]()
		case "level":
			rec.Level = models.Null[int64]()
		case "profit_strategy":
			rec.ProfitStrategy = models.Null[string]()
		default:
			return nil, fmt.Errorf("cannot clear %q", col)
		}
	}

	if cols, _ := models.StrategyFields.Present(rec); len(cols) == 0 {
		return nil, fmt.Errorf("nothing to update for %s", bondID)
	}
	return rec, nil
}

func flagInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
