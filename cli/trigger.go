package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"kzz_crawler/models"
)

func newTriggerCmd(e *env) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:       "trigger <command>",
		Short:     "Queue a command for the running daemon",
		Args:      cobra.ExactArgs(1),
		ValidArgs: commandNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, ok := models.ParseCommandType(args[0])
			if !ok {
				return fmt.Errorf("unknown command %q (want one of %v)", args[0], commandNames())
			}

			ops, err := e.operational()
			if err != nil {
				return err
			}
			var params *models.CommandParams
			if reason != "" {
				params = &models.CommandParams{Reason: reason}
			}
			id, err := ops.CreateCommand(ct, params)
			if err != nil {
				return fmt.Errorf("queue command: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s as #%d\n", ct, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "note stored with the command")
	return cmd
}

func commandNames() []string {
	names := make([]string, len(models.KnownCommands))
	for i, c := range models.KnownCommands {
		names[i] = string(c)
	}
	return names
}
