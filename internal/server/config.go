package server

import (
	"flag"
	"fmt"
	"os"
	"time"

	"tracker/internal/domain/errors"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env             string        `json:"env" env:"ENV" env-default:"prod"`
	Addr            string        `json:"addr" env:"ADDR" env-default:"0.0.0.0"`
	Port            int           `json:"port" env:"PORT" env-default:"8080"`
	DBStr           string        `json:"dbStr" env:"DB_STR"`
	MigratePath     string        `json:"migratePath" env:"MIGRATE_PATH" env-default:"migrations"`
	JWTSecret       string        `json:"jwtSecret" env:"JWT_SECRET" env-default:"change-me"`
	TokenTTL        time.Duration `json:"tokenTTL" env:"TOKEN_TTL" env-default:"24h"`
	RedisAddr       string        `json:"redisAddr" env:"REDIS_ADDR"`
	AuthRateLimit   int           `json:"authRateLimit" env:"AUTH_RATE_LIMIT" env-default:"10"`
	AuthRateWindow  time.Duration `json:"authRateWindow" env:"AUTH_RATE_WINDOW" env-default:"1m"`
	MaxPhotoSize    int64         `json:"maxPhotoSize" env:"MAX_PHOTO_SIZE" env-default:"10485760"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
}

const (
	defaultPort      = 8080
	defaultDBStr     = "postgresql://tracker:tracker@db:5432/tracker?sslmode=disable"
	defaultJWTSecret = "change-me"
)

// Flags holds the command line overrides. Empty values leave the
// configuration untouched.
type Flags struct {
	ConfigFile  string
	Addr        string
	Port        int
	DBStr       string
	MigratePath string
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigFile, "c", "", "path to a JSON config file")
	fs.StringVar(&f.Addr, "addr", "", "listen address")
	fs.IntVar(&f.Port, "port", 0, "listen port")
	fs.StringVar(&f.DBStr, "dbdsn", "", "database DSN")
	fs.StringVar(&f.MigratePath, "migratepath", "", "migrations directory")
	return f
}

// ReadConfig layers defaults, the JSON file (-c flag or CONFIG variable),
// environment variables and flags, later sources winning. Warnings describe
// values that were ignored.
func ReadConfig(f *Flags) (*Config, []string) {
	var warnings []string
	cfg := &Config{}

	path := f.ConfigFile
	if path == "" {
		path = os.Getenv("CONFIG")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s %s: %v", errors.ErrConfigFileReadFailed, path, err))
			path = ""
		}
	}

	if path != "" {
		// ReadConfig also applies environment variables on top of the file.
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", errors.ErrConfigParseFailed, err))
			cfg = &Config{}
			path = ""
		}
	}
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", errors.ErrConfigInvalidFormat, err))
			cfg = defaultConfig()
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("%s: port must be within 1..65535, got %d", errors.ErrConfigInvalidFormat, cfg.Port))
		cfg.Port = defaultPort
	}

	if cfg.DBStr == "" {
		cfg.DBStr = dbStrFromParts()
	}

	applyFlagOverrides(cfg, f)

	if cfg.JWTSecret == defaultJWTSecret {
		warnings = append(warnings, fmt.Sprintf("%s: set JWT_SECRET", errors.ErrDefaultJWTSecret))
	}
	return cfg, warnings
}

// Validate rejects settings the service must not run with. A prod
// deployment signing tokens with the default secret lets anyone mint them.
func (c *Config) Validate() error {
	if c.Env == "prod" && c.JWTSecret == defaultJWTSecret {
		return errors.ErrDefaultJWTSecret
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Env:             "prod",
		Addr:            "0.0.0.0",
		Port:            defaultPort,
		DBStr:           defaultDBStr,
		MigratePath:     "migrations",
		JWTSecret:       defaultJWTSecret,
		TokenTTL:        24 * time.Hour,
		AuthRateLimit:   10,
		AuthRateWindow:  time.Minute,
		MaxPhotoSize:    10 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

func dbStrFromParts() string {
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
		return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
	}
	return defaultDBStr
}

func applyFlagOverrides(cfg *Config, f *Flags) {
	if f.Addr != "" {
		cfg.Addr = f.Addr
	}
	if f.Port > 0 && f.Port <= 65535 {
		cfg.Port = f.Port
	}
	if f.DBStr != "" {
		cfg.DBStr = f.DBStr
	}
	if f.MigratePath != "" {
		cfg.MigratePath = f.MigratePath
	}
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}
