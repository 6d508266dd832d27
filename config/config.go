/*
Package config loads server settings from the environment.

PURPOSE:
  One flat struct, loaded once at startup. A local .env file is read if
  present (development convenience), then every field resolves from a
  CLASSPOINTS_ environment variable with a working default, so the server
  boots with zero configuration.

SEE ALSO:
  - cmd/server/main.go: The only consumer
*/
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `mapstructure:"addr"`

	// DBPath is the sqlite database file. ":memory:" works for demos.
	DBPath string `mapstructure:"db_path"`

	// CORSOrigins are the allowed browser origins, comma-separated in
	// the environment.
	CORSOrigins []string `mapstructure:"cors_origins"`

	// MaxPointDelta bounds a single point adjustment.
	MaxPointDelta int `mapstructure:"max_point_delta"`

	// AvoidHours is the default random-call repeat window.
	AvoidHours int `mapstructure:"avoid_hours"`

	// SeedDemo loads the demo classroom on startup when true.
	SeedDemo bool `mapstructure:"seed_demo"`
}

// Load reads .env (if present) and the CLASSPOINTS_* environment.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("classpoints")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "classpoints.db")
	v.SetDefault("cors_origins", "http://localhost:5173")
	v.SetDefault("max_point_delta", 1000)
	v.SetDefault("avoid_hours", 24)
	v.SetDefault("seed_demo", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	// The list arrives comma-split from the environment; trim the pieces.
	origins := cfg.CORSOrigins[:0]
	for _, o := range cfg.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSOrigins = origins
	return cfg, nil
}
