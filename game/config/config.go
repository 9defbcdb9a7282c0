package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wricardo/connectfour/game/archive"
)

// EnvPrefix is prepended to every flag name to form its environment variable.
const EnvPrefix = "CONNECTFOUR"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the server settings shared by every command.
type Config struct {
	Host      string
	Port      int
	Debug     bool
	PublicURL string

	IdleTTL      time.Duration
	ReapSchedule string

	Archive       string
	ArchiveDir    string
	ArchiveLimit  int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	PostgresDSN   string

	JWTSecret string

	Ngrok          bool
	NgrokAuthtoken string
	NgrokDomain    string
}

// Default returns the configuration used when no flag or variable is set.
func Default() *Config {
	return &Config{
		Host:         "localhost",
		Port:         8080,
		IdleTTL:      30 * time.Minute,
		ReapSchedule: "@every 1m",
		Archive:      "memory",
		ArchiveDir:   "matches",
		ArchiveLimit: 100,
		RedisAddr:    "localhost:6379",
		RedisKey:     "connectfour:matches",
	}
}

// BindFlags registers one flag per field on fs, using the current values
// as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&c.Host, "host", c.Host, "address to bind to (env: CONNECTFOUR_HOST)")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "port to listen on (env: CONNECTFOUR_PORT)")
	fs.BoolVarP(&c.Debug, "debug", "d", c.Debug, "development logging (env: CONNECTFOUR_DEBUG)")
	fs.StringVar(&c.PublicURL, "public-url", c.PublicURL, "base URL used in share links (env: CONNECTFOUR_PUBLIC_URL)")

	fs.DurationVar(&c.IdleTTL, "idle-ttl", c.IdleTTL, "time before idle rooms are removed (env: CONNECTFOUR_IDLE_TTL)")
	fs.StringVar(&c.ReapSchedule, "reap-schedule", c.ReapSchedule, "cron schedule of the idle room sweep (env: CONNECTFOUR_REAP_SCHEDULE)")

	fs.StringVar(&c.Archive, "archive", c.Archive, "match archive backend: memory, file, redis or postgres (env: CONNECTFOUR_ARCHIVE)")
	fs.StringVar(&c.ArchiveDir, "archive-dir", c.ArchiveDir, "directory of the file archive (env: CONNECTFOUR_ARCHIVE_DIR)")
	fs.IntVar(&c.ArchiveLimit, "archive-limit", c.ArchiveLimit, "matches kept by bounded archives (env: CONNECTFOUR_ARCHIVE_LIMIT)")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address (env: CONNECTFOUR_REDIS_ADDR)")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "redis password (env: CONNECTFOUR_REDIS_PASSWORD)")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "redis database (env: CONNECTFOUR_REDIS_DB)")
	fs.StringVar(&c.RedisKey, "redis-key", c.RedisKey, "redis list holding matches (env: CONNECTFOUR_REDIS_KEY)")
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "postgres connection string (env: CONNECTFOUR_POSTGRES_DSN)")

	fs.StringVar(&c.JWTSecret, "jwt-secret", c.JWTSecret, "secret for player tokens, empty disables them (env: CONNECTFOUR_JWT_SECRET)")

	fs.BoolVar(&c.Ngrok, "ngrok", c.Ngrok, "expose the server through an ngrok tunnel (env: CONNECTFOUR_NGROK)")
	fs.StringVar(&c.NgrokAuthtoken, "ngrok-authtoken", c.NgrokAuthtoken, "ngrok auth token (env: CONNECTFOUR_NGROK_AUTHTOKEN)")
	fs.StringVar(&c.NgrokDomain, "ngrok-domain", c.NgrokDomain, "reserved ngrok domain (env: CONNECTFOUR_NGROK_DOMAIN)")
}

// NewViper returns a viper instance reading CONNECTFOUR_* variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyEnv binds every flag in fs to v and copies environment values into
// flags the command line left unset.
func ApplyEnv(fs *pflag.FlagSet, v *viper.Viper) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			}
		}
	})
	return errors.Join(errs...)
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1-65535 inclusive: %d", ErrInvalidConfig, c.Port)
	}
	if c.IdleTTL <= 0 {
		return fmt.Errorf("%w: idle-ttl must be positive: %s", ErrInvalidConfig, c.IdleTTL)
	}
	if _, err := cron.ParseStandard(c.ReapSchedule); err != nil {
		return fmt.Errorf("%w: reap-schedule %q: %v", ErrInvalidConfig, c.ReapSchedule, err)
	}

	switch c.Archive {
	case "memory", "redis":
	case "file":
		if c.ArchiveDir == "" {
			return fmt.Errorf("%w: the file archive needs archive-dir", ErrInvalidConfig)
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: the postgres archive needs postgres-dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown archive backend %q", ErrInvalidConfig, c.Archive)
	}

	if c.NgrokDomain != "" && !c.Ngrok {
		return fmt.Errorf("%w: ngrok-domain requires --ngrok", ErrInvalidConfig)
	}
	return nil
}

// Addr is the host:port the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL is where a local client reaches the server.
func (c *Config) BaseURL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// ArchiveConfig translates the archive settings for archive.Open.
func (c *Config) ArchiveConfig() archive.Config {
	return archive.Config{
		Backend:       c.Archive,
		Dir:           c.ArchiveDir,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisKey:      c.RedisKey,
		PostgresDSN:   c.PostgresDSN,
		Limit:         c.ArchiveLimit,
	}
}
