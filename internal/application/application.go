package application

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"boxradar/internal/config"
	"boxradar/internal/domain/entity"
	"boxradar/internal/domain/service/enrichment"
	"boxradar/internal/domain/service/ingest"
	"boxradar/internal/domain/service/jobs"
	"boxradar/internal/domain/service/market"
	"boxradar/internal/domain/service/pricemodel"
	"boxradar/internal/domain/service/scoring"
	"boxradar/internal/infrastructure/notifier"
	"boxradar/internal/infrastructure/persistence"
	"boxradar/internal/infrastructure/providers"
	"boxradar/internal/infrastructure/queue"
	"boxradar/internal/infrastructure/source"
	"boxradar/internal/server"
	"boxradar/internal/worker"
	"boxradar/pkg/application/connectors"
	"boxradar/pkg/application/modules"
	"boxradar/pkg/contextx"
	"boxradar/pkg/httpx"
	"boxradar/pkg/logx"
	"boxradar/pkg/middlewarex"
	"boxradar/pkg/retryx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

func Run(ctx context.Context) error { //nolint:funlen
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}

	pg := &connectors.Postgres{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}
	db := pg.Client(ctx)
	defer pg.Close(ctx)

	redisConnector := &connectors.Redis{
		Address:            cfg.Redis.Address,
		Username:           cfg.Redis.Username,
		Password:           cfg.Redis.Password,
		DatabaseNumber:     cfg.Redis.DatabaseNumber,
		PoolSize:           cfg.Redis.PoolSize,
		MinIdleConnections: cfg.Redis.MinIdleConnections,
		MaxIdleConnections: cfg.Redis.MaxIdleConnections,
	}
	rdb := redisConnector.Client(ctx)
	defer redisConnector.Close(ctx)

	listingRepo := persistence.NewListingRepository(db)
	enrichmentRepo := persistence.NewEnrichmentRepository(db)
	aggregateRepo := persistence.NewMarketAggregateRepository(db)
	modelRepo := persistence.NewPriceModelRepository(db)
	jobRepo := persistence.NewJobRepository(db)

	marketProvider := market.NewProvider(aggregateRepo, cfg.Jobs.MarketCacheTTL)
	if err = marketProvider.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("marketProvider.SeedDefaults: %w", err)
	}

	estimator := pricemodel.NewService(listingRepo, modelRepo).
		WithMinSamples(cfg.Jobs.TrainMinSamples)

	retryCfg := retryx.Config{
		MaxAttempts: cfg.Providers.RetryMaxAttempts,
		BaseDelay:   cfg.Providers.RetryBaseDelay,
	}

	overpass := providers.NewOverpassClient(
		newHTTPClient(cfg.Providers.OverpassTimeout, cfg.Server),
		cfg.Providers.OverpassURL,
		cfg.Providers.SearchRadiusMeters,
		retryCfg,
	)
	geoSampler := providers.NewCachedGeoSampler(overpass, rdb, cfg.Providers.GeoCacheTTL)

	orchestrator := enrichment.NewOrchestrator(listingRepo, enrichmentRepo, marketProvider, geoSampler, estimator).
		WithParams(scoringParams(cfg.Scoring)).
		WithWorkers(cfg.Jobs.EnrichWorkers).
		WithBatchSize(cfg.Jobs.EnrichBatchSize).
		WithStaleness(cfg.Jobs.StalenessThreshold)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Bot.Token != "" {
		opportunities, alertErr := startAlertBot(ctx, g, cfg.Bot)
		if alertErr != nil {
			return fmt.Errorf("startAlertBot: %w", alertErr)
		}

		orchestrator.WithOpportunityHandler(func(ctx context.Context, opp entity.Opportunity) {
			select {
			case opportunities <- opp:
			default:
				logger(ctx).Warn("opportunity channel full, alert dropped")
			}
		})
	}

	ingestService := ingest.NewService(
		listingRepo,
		cfg.Jobs.IngestMaxListings,
		source.NewMockSource(time.Now().UnixNano()),
		source.NewLeboncoinSource(newHTTPClient(cfg.Providers.OverpassTimeout, cfg.Server), retryCfg),
	)

	enqueuer := queue.NewEnqueuer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DatabaseNumber,
	})
	defer func() {
		if closeErr := enqueuer.Close(); closeErr != nil {
			logger(ctx).Error("enqueuer.Close", logx.Error(closeErr))
		}
	}()

	controller := jobs.NewController(jobRepo, enqueuer, ingestService, orchestrator, estimator)

	transactions := providers.NewTransactionsClient(
		newHTTPClient(cfg.Providers.DVFTimeout, cfg.Server),
		cfg.Providers.DVFBaseURL,
		cfg.Providers.DVFYear,
		retryCfg,
	)

	refresher := worker.NewMarketRefresher(transactions, marketProvider, cfg.Jobs.MarketRefreshInterval)
	if err = refresher.Start(ctx); err != nil {
		return fmt.Errorf("refresher.Start: %w", err)
	}
	defer refresher.Stop()

	srv := server.NewServer(
		server.NewListingServer(listingRepo, enrichmentRepo),
		server.NewAnalyticsServer(listingRepo),
		server.NewJobServer(controller),
	)

	modules.HTTPServer{
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second,
	}.Run(ctx, g, &http.Server{ //nolint:exhaustruct
		Addr:              cfg.Server.ListenAddress,
		Handler:           newRouter(cfg.Server, srv),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	})

	modules.ProbeServer{
		Name:          cfg.App.Name,
		Version:       cfg.App.Version,
		ListenAddress: cfg.Server.ProbeListenAddress,
	}.Run(ctx, g)

	modules.MetricServer{
		ListenAddress: cfg.Server.MetricsListenAddress,
	}.Run(ctx, g)

	modules.AsynqServer{
		RedisUsername: cfg.Redis.Username,
		RedisPassword: cfg.Redis.Password,
		RedisAddress:  cfg.Redis.Address,
		RedisDB:       cfg.Redis.DatabaseNumber,
	}.Run(ctx, g,
		modules.AsynqQueues{queue.QueueJobs: 1},
		modules.AsynqHandler{
			Pattern: queue.TaskJobRun,
			Handle: func(ctx context.Context, task *asynq.Task) error {
				jobID, kind, decodeErr := queue.DecodeTask(task)
				if decodeErr != nil {
					return fmt.Errorf("queue.DecodeTask: %w", decodeErr)
				}

				return controller.Handle(ctx, jobID, kind)
			},
		},
	)

	if err = g.Wait(); err != nil {
		return fmt.Errorf("g.Wait: %w", err)
	}

	return nil
}

func newHTTPClient(timeout time.Duration, cfg config.Server) *http.Client {
	client := &http.Client{Timeout: timeout} //nolint:exhaustruct

	if cfg.DumpHTTPBodies {
		client.Transport = httpx.NewLoggingRoundTripper(
			http.DefaultTransport,
			httpx.WithLogFieldMaxLen(cfg.LogFieldMaxLen),
			httpx.WithSensitiveDataMasker(logx.NewSensitiveDataMasker()),
		)
	}

	return client
}

func newRouter(cfg config.Server, srv server.Server) chi.Router {
	router := chi.NewRouter()

	router.Use(
		middlewarex.TraceID,
		middlewarex.Logger,
		middlewarex.Recovery,
	)

	if cfg.DumpHTTPBodies {
		masker := logx.NewSensitiveDataMasker()
		router.Use(
			middlewarex.RequestLogging(masker, cfg.LogFieldMaxLen),
			middlewarex.ResponseLogging(masker, cfg.LogFieldMaxLen),
		)
	}

	srv.RegisterRoutes(router)

	return router
}

func startAlertBot(ctx context.Context, g *errgroup.Group, cfg config.Bot) (chan<- entity.Opportunity, error) {
	bot, err := notifier.NewTelegramBot(cfg.Token, cfg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("notifier.NewTelegramBot: %w", err)
	}

	opportunities := make(chan entity.Opportunity, 100)

	g.Go(func() error {
		if err := bot.Run(ctx, opportunities); err != nil && ctx.Err() == nil {
			return fmt.Errorf("bot.Run: %w", err)
		}

		return nil
	})

	return opportunities, nil
}

func scoringParams(cfg config.Scoring) scoring.Params {
	return scoring.Params{
		Weights: scoring.Weights{
			PriceDeviation: cfg.WeightPriceDeviation,
			Yield:          cfg.WeightYield,
			Storage:        cfg.WeightStorage,
			Demand:         cfg.WeightDemand,
			Liquidity:      cfg.WeightLiquidity,
		},
		DeviationSlope:           cfg.DeviationSlope,
		PointsPerStation:         cfg.PointsPerStation,
		CommercialDensityCeiling: cfg.CommercialDensityCeiling,
		YieldPoorPct:             cfg.YieldPoorPct,
		YieldExcellentPct:        cfg.YieldExcellentPct,
	}
}
