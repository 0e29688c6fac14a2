package config

import "time"

type Jobs struct {
	EnrichWorkers      int           `env:"ENRICH_WORKERS" envDefault:"4"`
	EnrichBatchSize    int           `env:"ENRICH_BATCH_SIZE" envDefault:"200"`
	StalenessThreshold time.Duration `env:"ENRICH_STALENESS" envDefault:"168h"`

	IngestMaxListings int `env:"INGEST_MAX_LISTINGS" envDefault:"500"`

	TrainMinSamples int `env:"TRAIN_MIN_SAMPLES" envDefault:"100"`

	MarketRefreshInterval time.Duration `env:"MARKET_REFRESH_INTERVAL" envDefault:"168h"`
	MarketCacheTTL        time.Duration `env:"MARKET_CACHE_TTL" envDefault:"10m"`
}
