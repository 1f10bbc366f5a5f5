package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/dedup"
	"github.com/dmitrymomot/billingkit/pkg/entitlement"
	"github.com/dmitrymomot/billingkit/pkg/gateway"
	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/ledger"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/processor"
	"github.com/dmitrymomot/billingkit/pkg/redis"
	"github.com/dmitrymomot/billingkit/pkg/usage"
)

// appConfig holds the service-level settings not owned by any component.
type appConfig struct {
	Environment     string `env:"APP_ENV" envDefault:"development"`
	ServiceName     string `env:"APP_NAME" envDefault:"billingd"`
	LevelMatrixPath string `env:"PLAN_LEVELS_PATH"` // optional YAML override of the tier level ceilings
	PaddleEnabled   bool   `env:"PADDLE_ENABLED" envDefault:"true"`
}

func main() {
	ctx := context.Background()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(
		logger.WithEnvironment(appCfg.Environment, appCfg.ServiceName),
		logger.WithContextValue("request_id", chimw.RequestIDKey),
	)
	logger.SetAsDefault(log)

	if err := run(ctx, appCfg, log); err != nil {
		log.ErrorContext(ctx, "service terminated", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, log *slog.Logger) error {
	var (
		pgCfg    pg.Config
		redisCfg redis.Config
		httpCfg  httpserver.Config
		gwCfg    gateway.Config
		procCfg  processor.Config
		retryCfg entitlement.RetryConfig
	)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&gwCfg)
	config.MustLoad(&procCfg)
	config.MustLoad(&retryCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	resolverOpts := []entitlement.ResolverOption{
		entitlement.WithLogger(log.With(logger.Component("entitlement"))),
	}

	if appCfg.PaddleEnabled {
		var paddleCfg entitlement.PaddleConfig
		config.MustLoad(&paddleCfg)
		priceAPI, err := entitlement.NewPaddlePriceAPI(paddleCfg)
		if err != nil {
			return err
		}
		resolverOpts = append(resolverOpts,
			entitlement.WithPriceAPI(entitlement.NewRetryingPriceAPI(priceAPI, retryCfg)))
	}

	if appCfg.LevelMatrixPath != "" {
		matrix, err := entitlement.LoadLevelMatrix(appCfg.LevelMatrixPath)
		if err != nil {
			return err
		}
		resolverOpts = append(resolverOpts, entitlement.WithLevelMatrix(matrix))
	}

	resolver := entitlement.NewResolver(entitlement.NewPGStore(pool), resolverOpts...)

	usageSvc := usage.NewService(usage.NewPGStore(pool),
		usage.WithLogger(log.With(logger.Component("usage"))))

	proc := processor.New(
		ledger.NewPGStore(pool),
		resolver,
		processor.NewPGDirectory(pool),
		procCfg,
		processor.WithLogger(log.With(logger.Component("processor"))),
		processor.WithWarnDeduper(dedup.NewRedisDeduper(redisClient, appCfg.ServiceName)),
	)

	gw, err := gateway.New(proc, gwCfg,
		gateway.WithLogger(log.With(logger.Component("gateway"))),
		gateway.WithHealthCheck("postgres", pg.Healthcheck(pool)),
		gateway.WithHealthCheck("redis", redis.Healthcheck(redisClient)),
		gateway.WithUsageService(usageSvc),
		gateway.WithLevelValidator(resolver),
	)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Mount("/", gw.Router())

	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.InfoContext(ctx, "listening", slog.String("addr", httpCfg.Addr))
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.InfoContext(ctx, "stopped")
		}),
	)
	return srv.Run(ctx, router)
}
