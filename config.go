package migrate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds settings for a migration run.
type Config struct {
	// Driver is the database driver, "pg" or "sqlite3".
	Driver string `mapstructure:"driver"`

	// Conn is the database connection string. It is required.
	Conn string `mapstructure:"conn"`

	// MigrationsDir is the directory holding the *.sql migration files.
	MigrationsDir string `mapstructure:"migrations_dir"`

	// LedgerTable is the table recording applied migrations. For pg it may be
	// schema qualified ("ops.migrations").
	LedgerTable string `mapstructure:"ledger_table"`

	// PoolSize bounds the number of open connections.
	PoolSize int `mapstructure:"pool_size"`

	// LogLevel is a zerolog level name.
	LogLevel string `mapstructure:"log_level"`
}

// DefaultConfig provides default values for configuration.
var DefaultConfig = Config{
	Driver:        "pg",
	MigrationsDir: "supabase/migrations",
	LedgerTable:   "migrations",
	PoolSize:      5,
	LogLevel:      "info",
}

// Environment variables consulted by LoadConfig.
const (
	EnvConfigFile = "MIGRATE_CONFIG"
	EnvConn       = "DATABASE_URL"
	EnvConnLegacy = "VITE_SUPABASE_URL"
	EnvDriver     = "MIGRATE_DRIVER"
	EnvDir        = "MIGRATIONS_DIR"
	EnvTable      = "MIGRATE_TABLE"
	EnvPoolSize   = "MIGRATE_POOL_SIZE"
	EnvLogLevel   = "LOG_LEVEL"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// LoadConfig builds a Config from defaults, an optional YAML file named by
// $MIGRATE_CONFIG, and the environment, in increasing precedence. The result
// is not validated; call Validate before touching the database.
func LoadConfig(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	_ = v.BindEnv("conn", EnvConn, EnvConnLegacy)
	_ = v.BindEnv("driver", EnvDriver)
	_ = v.BindEnv("migrations_dir", EnvDir)
	_ = v.BindEnv("ledger_table", EnvTable)
	_ = v.BindEnv("pool_size", EnvPoolSize)
	_ = v.BindEnv("log_level", EnvLogLevel)
	_ = v.BindEnv("config_file", EnvConfigFile)

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &ConfigError{Field: "config_file", Reason: fmt.Sprintf("failed to read %s: %v", path, err)}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &ConfigError{Field: "config_file", Reason: fmt.Sprintf("failed to unmarshal config: %v", err)}
	}
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	cfg.Conn = strings.TrimSpace(cfg.Conn)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("driver", DefaultConfig.Driver)
	v.SetDefault("migrations_dir", DefaultConfig.MigrationsDir)
	v.SetDefault("ledger_table", DefaultConfig.LedgerTable)
	v.SetDefault("pool_size", DefaultConfig.PoolSize)
	v.SetDefault("log_level", DefaultConfig.LogLevel)
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DefaultConfig.Driver
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = DefaultConfig.MigrationsDir
	}
	if c.LedgerTable == "" {
		c.LedgerTable = DefaultConfig.LedgerTable
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultConfig.PoolSize
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultConfig.LogLevel
	}
	return c
}

// Validate checks the configuration. It never touches the database or the
// filesystem, so it is safe to run before anything else.
func (c Config) Validate() error {
	if c.Conn == "" {
		return &ConfigError{Field: "conn", Reason: fmt.Sprintf("connection string is required (set %s)", EnvConn)}
	}
	switch strings.ToLower(c.Driver) {
	case "pg", "sqlite3":
	default:
		return &ConfigError{Field: "driver", Reason: fmt.Sprintf("db driver '%s' not supported. Must be one of: sqlite3 or pg", c.Driver)}
	}
	if c.PoolSize < 1 {
		return &ConfigError{Field: "pool_size", Reason: "must be at least 1"}
	}
	if !identRe.MatchString(c.LedgerTable) {
		return &ConfigError{Field: "ledger_table", Reason: fmt.Sprintf("invalid table name %q", c.LedgerTable)}
	}
	if strings.ToLower(c.Driver) == "sqlite3" && strings.Contains(c.LedgerTable, ".") {
		return &ConfigError{Field: "ledger_table", Reason: "sqlite3 does not support schema qualified tables"}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return &ConfigError{Field: "log_level", Reason: err.Error()}
	}
	if c.MigrationsDir == "" {
		return &ConfigError{Field: "migrations_dir", Reason: "must not be empty"}
	}
	return nil
}
