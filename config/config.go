// Package config loads collabd's configuration via viper, mirroring the
// teacher's CollabConfig in collab-service/backend/cmd/collab_server/
// main.go: the same config-file fallback chain and section shape, with
// JWT/auth fields added for the local-verifier path spec.md's deployment
// model needs alongside the teacher's remote-verifier one.
package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`

	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
		Enabled bool     `mapstructure:"enabled"`
	} `mapstructure:"kafka"`

	Auth struct {
		Mode       string        `mapstructure:"mode"` // "local" or "remote"
		RemoteBase string        `mapstructure:"remoteBase"`
		JWTSecret  string        `mapstructure:"jwtSecret"`
		CursorTTL  time.Duration `mapstructure:"cursorTTL"`
	} `mapstructure:"auth"`
}

// Load reads collabdConfig.yaml from whichever of the usual locations the
// process was started from, the same backend-or-repo-root fallback chain
// the teacher's initConfig used.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("collabdConfig")
	v.SetConfigType("yaml")
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetDefault("running.port", 8080)
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("auth.mode", "local")
	v.SetDefault("auth.cursorTTL", 10*time.Minute)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no config file found: fall back to the defaults above, the same
		// way a dev box running collabd straight from go run would.
		// Environment variables are not read.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
