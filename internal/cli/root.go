// Package cli implements the dataset tooling: schema migrations, CSV import
// and reload notifications.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"surfsup/internal/config"
	"surfsup/internal/db"
	"surfsup/internal/logging"
	"surfsup/internal/mqtt"
)

const appName = "surfsup-tools"

var appVersion = "dev"

// SetVersion sets the version injected via ldflags.
func SetVersion(version string) {
	appVersion = version
}

// publishReloaded is replaced in tests.
var publishReloaded = func(ctx context.Context, opts mqtt.Options, source string) error {
	p := mqtt.NewPublisher(opts)
	if err := p.Connect(ctx); err != nil {
		return err
	}
	defer p.Disconnect()
	return p.PublishReloaded(ctx, source)
}

type toolEnv struct {
	cfg    config.Config
	logger *slog.Logger
	dbPath string
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	env := &toolEnv{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Maintain the surfsup observation store",
		Long: `Tools for creating the observation store schema, loading the station and
measurement CSV exports into it, and telling running servers that the
dataset changed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if env.dbPath != "" {
				cfg.Path = env.dbPath
			}
			cfg.ReadOnly = false
			env.cfg = cfg
			env.logger = logging.New(cfg, appVersion, appName)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&env.dbPath, "db", "", "sqlite file to maintain (default $SQLITE_PATH)")

	root.AddCommand(
		newMigrateCmd(env),
		newImportCmd(env),
		newNotifyCmd(env),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, appVersion)
			},
		},
	)
	return root
}

// Execute runs the command tree with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// openStore opens the store read-write. Migrations contain several
// statements per file, so this bypasses the statement-logging connector.
func (e *toolEnv) openStore() (*sql.DB, error) {
	dsn, err := db.DSN(e.cfg)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return conn, nil
}

func (e *toolEnv) notify(ctx context.Context, source string) error {
	if e.cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}
	opts := mqtt.OptionsFromConfig(e.cfg)
	// A distinct client id keeps the broker from dropping a server session.
	opts.ClientID = fmt.Sprintf("%s-%d", appName, os.Getpid())

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := publishReloaded(ctx, opts, source); err != nil {
		return err
	}
	e.logger.Info("dataset event published", "topic", opts.Topic, "source", source)
	return nil
}
