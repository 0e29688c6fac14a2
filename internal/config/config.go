package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       App
	Server    Server
	Postgres  Postgres
	Redis     Redis
	Providers Providers
	Scoring   Scoring
	Jobs      Jobs
	Bot       Bot
}

type App struct {
	Name    string `env:"APP_NAME" envDefault:"boxradar"`
	Version string `env:"APP_VERSION" envDefault:"dev"`
}

type Server struct {
	ListenAddress        string `env:"HTTP_LISTEN_ADDRESS" envDefault:":8080"`
	ProbeListenAddress   string `env:"PROBE_LISTEN_ADDRESS" envDefault:":8081"`
	MetricsListenAddress string `env:"METRICS_LISTEN_ADDRESS" envDefault:":9090"`
	ShutdownTimeoutSec   int    `env:"HTTP_SHUTDOWN_TIMEOUT_SEC" envDefault:"10"`
	DumpHTTPBodies       bool   `env:"HTTP_DUMP_BODIES" envDefault:"false"`
	LogFieldMaxLen       int    `env:"LOG_FIELD_MAX_LEN" envDefault:"2048"`
}

// Bot is optional: with an empty token the opportunity notifier stays off.
type Bot struct {
	Token  string `env:"BOT_TOKEN"`
	ChatID int64  `env:"BOT_CHAT_ID"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}

	return config, nil
}
