package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"kzz_crawler/scheduler"
)

func newServeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: scheduled crawls, the change monitor and the command queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log.Printf("Starting kzz_crawler for site %s", e.cfg.SiteID)

			orch, err := e.orchestrator(ctx)
			if err != nil {
				return err
			}
			ops, err := e.operational()
			if err != nil {
				return err
			}
			monitor, err := e.monitor(ctx)
			if err != nil {
				return err
			}

			sched, err := scheduler.New(e.cfg.Scheduler, orch, ops)
			if err != nil {
				return err
			}
			sched.SetMonitor(monitor)
			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				monitor.Run(ctx)
			}()
			log.Println("Daemon running. Press Ctrl+C to stop.")

			<-ctx.Done()
			log.Println("Shutting down...")
			sched.Stop()
			<-done
			log.Println("Goodbye!")
			return nil
		},
	}
}
