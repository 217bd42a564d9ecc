package cli

import (
	"github.com/spf13/cobra"
)

func newMonitorCmd(e *env) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "monitor [--force]",
		Short: "Run only the change monitor in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			if force {
				e.cfg.Monitor.Force = true
			}
			m, err := e.monitor(cmd.Context())
			if err != nil {
				return err
			}
			m.Run(cmd.Context())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "poll outside the trading window")
	return cmd
}
