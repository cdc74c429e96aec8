package main

import (
	"context"
	"expvar"
	"log"
	"runtime"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/tabsync/tabsync/internal/infrastructure/auth"
	"github.com/tabsync/tabsync/internal/infrastructure/broadcast"
	"github.com/tabsync/tabsync/internal/infrastructure/configs"
	"github.com/tabsync/tabsync/internal/infrastructure/jobs"
	"github.com/tabsync/tabsync/internal/infrastructure/logging"
	"github.com/tabsync/tabsync/internal/infrastructure/messaging"
	"github.com/tabsync/tabsync/internal/infrastructure/metrics"
	"github.com/tabsync/tabsync/internal/infrastructure/ordercache"
	"github.com/tabsync/tabsync/internal/infrastructure/ratelimiter"
	"github.com/tabsync/tabsync/internal/infrastructure/tracing"
	"github.com/tabsync/tabsync/internal/infrastructure/ws"
	"github.com/tabsync/tabsync/internal/persistence/db"
	"github.com/tabsync/tabsync/internal/persistence/repository"
	"github.com/tabsync/tabsync/internal/presentation/api"
	adminHandler "github.com/tabsync/tabsync/internal/presentation/handler/admin"
	healthHandler "github.com/tabsync/tabsync/internal/presentation/handler/health"
	realtimeHandler "github.com/tabsync/tabsync/internal/presentation/handler/realtime"
)

const serviceName = "tabsync"

func main() {
	tracerCfg := tracing.NewDefaultConfig(serviceName)

	sh, err := tracing.InitTracer(tracerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize the tracer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer sh(ctx)

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logging.FilePath,
		Encoding: cfg.Logging.Encoding,
		Level:    cfg.Logging.Level,
		Logger:   cfg.Logging.Logger,
	})
	logger.Init()

	instanceID := uuid.NewString()

	mongoClient, err := db.NewMongoClient(ctx, &db.MongoConfig{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		logger.Fatal(logging.MongoDB, logging.Startup, "failed to connect to mongodb", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	database := db.GetDatabase(mongoClient, &db.MongoConfig{Database: cfg.Mongo.Database})
	orderRepository := repository.NewMongoOrderRepository(database)
	tableRepository := repository.NewMongoTableRepository(database)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close()
	}

	var limiterStore ratelimiter.GetterSetter
	var orderStore ordercache.Store
	if redisClient != nil {
		limiterStore = ratelimiter.NewRedisStore(redisClient)
		orderStore = ordercache.NewRedisStore(redisClient)
	} else {
		limiterStore = ratelimiter.NewInMemory()
		orderStore = ordercache.NewMemoryStore()
	}

	limiter := ratelimiter.New(ratelimiter.Options{
		EventsPerWindow: cfg.RateLimiter.EventsPerWindow,
		Window:          cfg.RateLimiter.Window,
		Cache:           limiterStore,
		CacheTTL:        cfg.RateLimiter.CacheTTL,
	})

	orderCache := ordercache.New(orderStore, cfg.OrderCache.TTL)
	defer orderCache.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	syncer := ws.NewSynchronizer(orderRepository, tableRepository, cfg.Sync.CustomerWindow, cfg.Sync.QueryTimeout)
	hub := ws.NewHub(syncer, limiter, logger, m)
	go hub.Run(ctx)

	rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI)
	if err != nil {
		logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to connect to rabbitmq", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer rabbitmq.Close()

	backplane, err := messaging.NewBackplane(rabbitmq, cfg.RabbitMQ.Exchange, instanceID, logger)
	if err != nil {
		logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to set up event backplane", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	broadcaster := broadcast.NewBroadcaster(hub, backplane, orderCache, logger, m)
	dispatcher := broadcast.NewDispatcher(orderRepository, broadcaster)
	hub.SetHandler(dispatcher)

	if err := backplane.Subscribe(broadcaster.HandleRemote); err != nil {
		logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to subscribe to event backplane", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	reconcileJob := jobs.NewReconcileJob(orderCache, orderRepository, logger, cfg.OrderCache.ReconcileInterval)
	go reconcileJob.Start(ctx)

	gatekeeper := auth.NewGatekeeper(cfg.Auth.JWTSecret, cfg.Auth.Issuer, tableRepository, cfg.Auth.LookupTimeout)

	realtime := realtimeHandler.NewHandler(hub, gatekeeper, logger)
	health := healthHandler.NewHandler()
	admin := adminHandler.NewHandler(hub, reconcileJob, logger)

	onShutdown := func(context.Context) {
		reconcileJob.Stop()
		hub.Shutdown()
	}

	app := api.NewApplication(*cfg, *realtime, *health, *admin, logger, onShutdown)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	logger.Info(logging.General, logging.Startup, "instance starting", map[logging.ExtraKey]any{
		logging.ConnectionID: instanceID,
	})

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server terminated", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}
