package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env-default:"info"`
	HTTPPort   string `yaml:"http-port" env-default:"9090"`
	SocketPort string `yaml:"socket-port" env-default:"8080"`
	Rooms      Rooms  `yaml:"rooms"`
	Limits     Limits `yaml:"limits"`
}

type Rooms struct {
	Max           int           `yaml:"max" env-default:"1000"`
	Retention     time.Duration `env:"ROOM_RETENTION" env-default:"30m"`
	SweepInterval time.Duration `env:"ROOM_SWEEP_INTERVAL" env-default:"30m"`
}

type Limits struct {
	Window  time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"60s"`
	Ceiling int           `yaml:"ceiling" env-default:"50"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}
