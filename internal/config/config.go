package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"conduit/internal/domain"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Driver string
		Path   string
		DSN    string
	}
	Auth struct {
		JWTSecret        string
		RegisterPassword string
		TokenTTLMinutes  int
	}
	Roster struct {
		FirstArticle   string
		PerUserLookups bool
	}
	Storage struct {
		Bucket         string
		KeyPrefix      string
		Region         string
		Endpoint       string
		PresignMinutes int
	}
	AWS struct {
		Profile string
	}
	Export struct {
		MaxConcurrent int
	}
	Log struct {
		Level string
	}
	Client struct {
		BaseURL string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	v := newViper()
	return unmarshal(v)
}

// LoadAndWatch behaves like Load and then calls onChange with the re-read
// configuration every time the config file changes. Without a config file
// there is nothing to watch and onChange is never called.
func LoadAndWatch(onChange func(fsnotify.Event, Config, error)) (Config, error) {
	v := newViper()
	cfg, err := unmarshal(v)
	if err != nil {
		return Config{}, err
	}
	if v.ConfigFileUsed() != "" && onChange != nil {
		v.OnConfigChange(func(ev fsnotify.Event) {
			next, err := unmarshal(v)
			onChange(ev, next, err)
		})
		v.WatchConfig()
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	// .env never overrides variables already present in the environment
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetEnvPrefix("CONDUIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/conduit.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.registerpassword", "")
	v.SetDefault("auth.tokenttlminutes", 60*24)
	v.SetDefault("roster.firstarticle", string(domain.FirstArticlePositional))
	v.SetDefault("roster.peruserlookups", false)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "roster-exports")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.presignminutes", 15)
	v.SetDefault("aws.profile", "")
	v.SetDefault("export.maxconcurrent", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("client.baseurl", "http://localhost:8080")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file
	return v
}

func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// FirstArticleRule parses Roster.FirstArticle.
func (c Config) FirstArticleRule() (domain.FirstArticleRule, error) {
	return domain.ParseFirstArticleRule(c.Roster.FirstArticle)
}

// Validate checks the settings the API server cannot start without.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			errs = append(errs, errors.New("database path is required for sqlite"))
		}
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			errs = append(errs, errors.New("database dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth jwt secret is required"))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("auth token ttl must be positive"))
	}
	if _, err := c.FirstArticleRule(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
