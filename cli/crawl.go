package cli

import (
	"log"

	"github.com/spf13/cobra"

	"kzz_crawler/scraper"
)

func newCrawlCmd(e *env) *cobra.Command {
	var opts scraper.RunOptions

	cmd := &cobra.Command{
		Use:   "crawl [--force] [--reconcile]",
		Short: "Run one crawl in the foreground and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := e.orchestrator(cmd.Context())
			if err != nil {
				return err
			}

			opts.Trigger = "cli"
			if opts.Reconcile {
				opts.IgnoreMarketHours = true
			}
			if err := orch.Run(cmd.Context(), opts); err != nil {
				return err
			}
			log.Println("Crawl complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.IgnoreMarketHours, "force", false, "crawl even when the market is closed")
	cmd.Flags().BoolVar(&opts.Reconcile, "reconcile", false, "prune delisted bonds and roll histories afterwards")
	return cmd
}
