// Package cli holds the entry point shared by the driver-specific migrate
// binaries.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/startup-os/migrate"
)

// Options pins the parts of the configuration a binary decides for itself.
type Options struct {
	// Name is the binary name used in usage text.
	Name string

	// Driver overrides the configured driver when set.
	Driver string

	// ConnEnv is an extra environment variable holding the connection string.
	// It wins over DATABASE_URL when both are set.
	ConnEnv string
}

// Usage prints the help text.
func Usage(w io.Writer, opts Options) {
	connEnv := migrate.EnvConn
	if opts.ConnEnv != "" {
		connEnv = opts.ConnEnv + " (or " + migrate.EnvConn + ")"
	}
	fmt.Fprintf(w, `Usage:
  %s

Applies every pending *.sql file in the migrations directory, in filename
order, each in its own transaction. Takes no arguments.

Environment:
  %-22s Connection string (required).
  %-22s Directory of migration files (default %q).
  %-22s Ledger table (default %q).
  %-22s Maximum open connections (default %d).
  %-22s Log level (default %q).
  %-22s Optional YAML config file.
`, opts.Name,
		connEnv,
		migrate.EnvDir, migrate.DefaultConfig.MigrationsDir,
		migrate.EnvTable, migrate.DefaultConfig.LedgerTable,
		migrate.EnvPoolSize, migrate.DefaultConfig.PoolSize,
		migrate.EnvLogLevel, migrate.DefaultConfig.LogLevel,
		migrate.EnvConfigFile)
}

// Main runs one migration pass and returns the process exit code. Output goes
// to stderr.
func Main(ctx context.Context, args []string, stderr io.Writer, opts Options) int {
	if len(args) > 0 {
		if args[0] == "-version" || args[0] == "--version" {
			fmt.Fprintf(stderr, "%s version: %s\n", opts.Name, migrate.Version)
			return migrate.ExitOK
		}
		if args[0] == "-help" || args[0] == "--help" || args[0] == "-h" {
			Usage(stderr, opts)
			return migrate.ExitOK
		}
		fmt.Fprintf(stderr, "Error: %s takes no arguments, got %q.\n", opts.Name, strings.Join(args, " "))
		Usage(stderr, opts)
		return migrate.ExitFailure
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).With().Timestamp().Logger()

	cfg, err := loadConfig(opts)
	if err == nil {
		if lvl, lvlErr := zerolog.ParseLevel(cfg.LogLevel); lvlErr == nil {
			log = log.Level(lvl)
		}
		err = cfg.Validate()
	}
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return migrate.ExitCode(err)
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("Migration failed")
		return migrate.ExitCode(err)
	}
	return migrate.ExitOK
}

func loadConfig(opts Options) (migrate.Config, error) {
	cfg, err := migrate.LoadConfig(viper.New())
	if err != nil {
		return cfg, err
	}
	if opts.Driver != "" {
		cfg.Driver = opts.Driver
	}
	if opts.ConnEnv != "" {
		if conn := strings.TrimSpace(os.Getenv(opts.ConnEnv)); conn != "" {
			cfg.Conn = conn
		}
	}
	return cfg, nil
}

// run owns the database handle so that it is closed on every return path.
func run(ctx context.Context, cfg migrate.Config, log zerolog.Logger) error {
	db, err := migrate.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := migrate.NewRunner(cfg, db, migrate.WithLogger(log))
	if err != nil {
		return err
	}
	res, err := r.Run(ctx)
	if err != nil {
		log.Error().Int("applied", len(res.Applied)).Msg("Stopped before all migrations were applied")
		return err
	}
	if len(res.Applied) == 0 {
		log.Info().Int("skipped", res.Skipped).Msg("Database is up to date")
		return nil
	}
	log.Info().Int("applied", len(res.Applied)).Int("skipped", res.Skipped).Msg("All migrations completed successfully")
	return nil
}
