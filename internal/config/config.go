// Package config loads the service configuration from the environment.
package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config is read from PLATENEST_* environment variables.
type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"localhost:5173,localhost:3000"`
	SceneFile      string `envconfig:"SCENE_FILE"`
	ConfigDir      string `envconfig:"CONFIG_DIR"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("platenest", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins returns the allowed websocket origin patterns.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
