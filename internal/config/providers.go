package config

import "time"

type Providers struct {
	OverpassURL        string        `env:"OVERPASS_URL" envDefault:"https://overpass-api.de/api/interpreter"`
	OverpassTimeout    time.Duration `env:"OVERPASS_TIMEOUT" envDefault:"20s"`
	SearchRadiusMeters int           `env:"POI_SEARCH_RADIUS_M" envDefault:"800"`

	DVFBaseURL string        `env:"DVF_BASE_URL" envDefault:"https://files.data.gouv.fr/geo-dvf/latest/csv"`
	DVFYear    string        `env:"DVF_YEAR" envDefault:"2024"`
	DVFTimeout time.Duration `env:"DVF_TIMEOUT" envDefault:"45s"`

	RetryMaxAttempts int           `env:"PROVIDER_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay   time.Duration `env:"PROVIDER_RETRY_BASE_DELAY" envDefault:"500ms"`

	GeoCacheTTL time.Duration `env:"GEO_CACHE_TTL" envDefault:"168h"`
}
