package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"surfsup/internal/dataset"
	"surfsup/internal/migrate"
)

type importFlags struct {
	measurements string
	stations     string
	replace      bool
	notify       bool
}

func newImportCmd(env *toolEnv) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load station and measurement CSV exports",
		Long: `Load hawaii_stations.csv (station,name,latitude,longitude,elevation) and
hawaii_measurements.csv (station,date,prcp,tobs) into the store in a single
transaction. Empty prcp values are stored as NULL. Pending migrations are
applied first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.measurements == "" && f.stations == "" {
				return fmt.Errorf("nothing to import: pass --measurements and/or --stations")
			}

			var src dataset.Sources
			if f.stations != "" {
				file, err := os.Open(f.stations)
				if err != nil {
					return err
				}
				defer file.Close()
				src.Stations = file
			}
			if f.measurements != "" {
				file, err := os.Open(f.measurements)
				if err != nil {
					return err
				}
				defer file.Close()
				src.Measurements = file
			}

			conn, err := env.openStore()
			if err != nil {
				return err
			}
			defer conn.Close()

			if _, err := migrate.Run(conn); err != nil {
				return err
			}

			res, err := dataset.Import(cmd.Context(), conn, src, f.replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d stations, %d measurements\n", res.Stations, res.Measurements)
			env.logger.Info("dataset imported",
				"stations", res.Stations,
				"measurements", res.Measurements,
				"replace", f.replace,
			)

			if f.notify {
				return env.notify(cmd.Context(), "import")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.measurements, "measurements", "", "measurement CSV file")
	cmd.Flags().StringVar(&f.stations, "stations", "", "station CSV file")
	cmd.Flags().BoolVar(&f.replace, "replace", false, "empty the imported tables first")
	cmd.Flags().BoolVar(&f.notify, "notify", false, "publish a reloaded event after a successful import")
	return cmd
}
