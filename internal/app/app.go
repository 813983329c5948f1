package app

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/escrow-backend/internal/data/db"
	httpx "github.com/yungbote/escrow-backend/internal/http"
	"github.com/yungbote/escrow-backend/internal/jobs/worker"
	"github.com/yungbote/escrow-backend/internal/observability"
	"github.com/yungbote/escrow-backend/internal/platform/envutil"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
	"github.com/yungbote/escrow-backend/internal/platform/policy"
	"github.com/yungbote/escrow-backend/internal/services"
	"github.com/yungbote/escrow-backend/internal/temporalx/deliverywindow"
	"github.com/yungbote/escrow-backend/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Policy   policy.Policy
	Metrics  *observability.Metrics
	Clients  Clients
	Services Services

	server   *httpx.Server
	worker   *worker.Worker
	temporal *temporalworker.Runner
	pg       *db.PostgresService
}

func New() (*App, error) {
	log, err := logger.New(envutil.GetEnv("LOG_MODE", "development", nil))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	pol, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load policy: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	var metrics *observability.Metrics
	if observability.Enabled() {
		metrics = observability.Init(log)
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		pg.Close()
		log.Sync()
		return nil, fmt.Errorf("init clients: %w", err)
	}

	reposet := wireRepos(theDB, log)
	aggs, runner := wireAggregates(theDB, log, cfg, pol, metrics, reposet)

	var scheduler services.DeliveryScheduler
	if clients.Temporal != nil {
		s, err := deliverywindow.NewScheduler(log, clients.Temporal, clients.TemporalCfg.TaskQueue)
		if err != nil {
			clients.Close()
			pg.Close()
			return nil, err
		}
		scheduler = s
	}
	svc := wireServices(log, cfg, pol, metrics, reposet, aggs, scheduler)

	pub, err := outboxPublisher(log, cfg, clients)
	if err != nil {
		clients.Close()
		pg.Close()
		return nil, err
	}
	jobs := wireWorker(log, cfg, metrics, runner, reposet, pub, svc.Orders)

	var temporalRunner *temporalworker.Runner
	if clients.Temporal != nil {
		temporalRunner, err = temporalworker.NewRunner(log, clients.TemporalCfg, clients.Temporal, svc.Orders)
		if err != nil {
			clients.Close()
			pg.Close()
			return nil, err
		}
	}

	return &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Policy:   pol,
		Metrics:  metrics,
		Clients:  clients,
		Services: svc,
		server:   wireHTTP(log, cfg, pol, theDB, metrics, svc, clients),
		worker:   jobs,
		temporal: temporalRunner,
		pg:       pg,
	}, nil
}

// Run serves HTTP and runs background work until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}

	shutdownOTel := observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: a.Cfg.ServiceName,
		Environment: a.Cfg.Env,
	})
	defer func() {
		if shutdownOTel != nil {
			_ = shutdownOTel(context.WithoutCancel(ctx))
		}
	}()

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.Metrics.StartOutboxCollector(ctx, a.Log, a.DB)
		if a.Clients.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
		}
		a.Metrics.StartSLOEvaluator(ctx, a.Log)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(ctx, net.JoinHostPort("", a.Cfg.Port))
	})
	g.Go(func() error {
		return a.worker.Run(ctx)
	})
	if a.temporal != nil {
		g.Go(func() error {
			return a.temporal.Run(ctx)
		})
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.pg != nil {
		a.pg.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
