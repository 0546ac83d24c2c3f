package cli

import (
	"github.com/spf13/cobra"
)

func newNotifyCmd(env *toolEnv) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Publish a dataset reloaded event",
		Long: `Publish a reloaded event on $MQTT_TOPIC so running servers drop their cached
results. Use after changing the store by other means than import.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.notify(cmd.Context(), source)
		},
	}
	cmd.Flags().StringVar(&source, "source", "manual", "source recorded in the event")
	return cmd
}
