package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status [run_id]",
		Short: "Show the last completed crawl, or one run and its log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := e.operational()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				last, err := ops.GetLastRunTime(e.cfg.SiteID)
				if err != nil {
					return err
				}
				if last.IsZero() {
					fmt.Fprintln(out, "no completed crawl yet")
					return nil
				}
				fmt.Fprintf(out, "last completed crawl: %s (%s ago)\n",
					last.Local().Format(time.DateTime), time.Since(last).Round(time.Second))
				return nil
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("run id: %w", err)
			}
			run, err := ops.GetRun(id)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %d not found", id)
			}

			fmt.Fprintf(out, "run %d (%s) %s, started %s, took %s\n", run.ID, run.Trigger, run.Status,
				run.StartedAt.Local().Format(time.DateTime), run.Duration().Round(time.Second))
			fmt.Fprintf(out, "  %d found, %d upserted, %d/%d details, %d dropped, %d pruned, %d errors\n",
				run.ItemsFound, run.RowsUpserted, run.DetailsDone, run.DetailsQueued,
				run.DetailsDropped, run.RowsPruned, run.ErrorsCount)

			logs, err := ops.GetLogs(id)
			if err != nil {
				return err
			}
			for _, l := range logs {
				fmt.Fprintf(out, "  %s [%s] %s\n", l.Timestamp.Local().Format(time.TimeOnly), l.Level, l.Message)
			}
			return nil
		},
	}
}
