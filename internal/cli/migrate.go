package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"surfsup/internal/migrate"
)

func newMigrateCmd(env *toolEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := env.openStore()
			if err != nil {
				return err
			}
			defer conn.Close()

			applied, err := migrate.Run(conn)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			env.logger.Info("migrations applied", "count", len(applied), "path", env.cfg.Path)
			return nil
		},
	}
}
