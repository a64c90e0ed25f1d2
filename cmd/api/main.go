package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/crdb"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/memory"
	mongoadapter "github.com/robertarktes/bus-seat-booking/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/bus-seat-booking/internal/adapters/redis"
	"github.com/robertarktes/bus-seat-booking/internal/admin"
	"github.com/robertarktes/bus-seat-booking/internal/auth"
	"github.com/robertarktes/bus-seat-booking/internal/catalog"
	"github.com/robertarktes/bus-seat-booking/internal/config"
	httphandler "github.com/robertarktes/bus-seat-booking/internal/http"
	"github.com/robertarktes/bus-seat-booking/internal/idempotency"
	"github.com/robertarktes/bus-seat-booking/internal/jobs"
	"github.com/robertarktes/bus-seat-booking/internal/ledger"
	"github.com/robertarktes/bus-seat-booking/internal/lifecycle"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
	"github.com/robertarktes/bus-seat-booking/internal/payment"
	"github.com/robertarktes/bus-seat-booking/internal/rateLimit"
	"github.com/robertarktes/bus-seat-booking/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

type keyValue interface {
	idempotency.Store
	rateLimit.Counter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "busbook-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()
	var ready []httphandler.ReadinessCheck

	var st interface {
		store.Store
		store.AdminStore
	}
	inMemory := cfg.Storage == config.StorageMemory
	if inMemory {
		st = memory.NewStore()
		logger.Warn("using in-memory storage, bookings are lost on restart")
	} else {
		pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
		if err != nil {
			log.Fatalf("failed to connect to crdb: %v", err)
		}
		defer pool.Close()
		if err := crdb.Migrate(ctx, pool); err != nil {
			log.Fatalf("failed to migrate crdb: %v", err)
		}
		repo := crdb.NewRepository(pool)
		ready = append(ready, httphandler.ReadinessCheck{Name: "crdb", Check: repo.Ping})
		st = repo
	}
	if err := st.EnsureSeats(ctx); err != nil {
		log.Fatalf("failed to create seats: %v", err)
	}

	var catalogStore catalog.Store = memory.NewCatalog()
	var activity admin.ActivityLog = memory.NewActivityLog()
	if cfg.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer client.Disconnect(context.Background())
		db := client.Database(cfg.MongoDB)
		catalogStore = mongoadapter.NewCatalogRepository(db, logger)
		mongoActivity := mongoadapter.NewActivityLog(db, logger)
		if err := mongoActivity.EnsureIndexes(ctx); err != nil {
			log.Fatalf("failed to create mongo indexes: %v", err)
		}
		activity = mongoActivity
		ready = append(ready, httphandler.ReadinessCheck{Name: "mongo", Check: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}})
	}

	var cache httphandler.SeatCache = memory.NewSeatCache()
	var kv keyValue = memoryKV{memory.NewIdempotency(), memory.NewCounters()}
	if cfg.RedisAddr != "" {
		client := redisadapter.NewClient(cfg.RedisAddr)
		defer client.Close()
		redisCache := redisadapter.NewCache(client)
		cache = redisCache
		kv = redisKV{redisadapter.NewIdempotency(client), redisCache}
		ready = append(ready, httphandler.ReadinessCheck{Name: "redis", Check: redisCache.Ping})
	}

	cat := catalog.NewService(catalogStore, logger)
	if seeded, err := cat.SeedDefaults(ctx); err != nil {
		log.Fatalf("failed to seed catalog: %v", err)
	} else if seeded {
		logger.Info("catalog seeded with defaults")
	}

	authSvc := auth.NewService(st, cfg.JWTSecret, cfg.JWTTTL, logger)
	if cfg.AdminEmail != "" {
		if _, err := authSvc.Bootstrap(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatalf("failed to bootstrap admin: %v", err)
		}
	}

	engine := lifecycle.New(st, cat, logger, cfg.HoldTTL)
	seats := ledger.New(st, logger)
	gateway := payment.NewGateway(cfg.PaystackSecretKey, cfg.PaystackPublicKey)
	adminSvc := admin.NewService(st, engine, seats, cat, activity, cache, logger)

	handlers := httphandler.NewHandlers(httphandler.Deps{
		Engine:     engine,
		Bookings:   st,
		Seats:      seats,
		Catalog:    cat,
		SeatCache:  cache,
		Gateway:    gateway,
		Dispatcher: payment.NewDispatcher(engine, gateway, logger),
		Auth:       authSvc,
		Admin:      adminSvc,
		Ready:      ready,
	})
	r := httphandler.SetupRouter(handlers, httphandler.RouterOptions{
		Logger:      logger,
		RateLimiter: rateLimit.NewRateLimiter(kv, logger),
		Rate:        cfg.RateLimit,
		RatePeriod:  cfg.RateLimitReset,
		Idempotency: idempotency.NewIdempotency(kv, 24*time.Hour),
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	// A separate expiry worker cannot see in-memory bookings.
	if inMemory {
		sched, err := jobs.NewScheduler(logger)
		if err != nil {
			log.Fatalf("failed to create scheduler: %v", err)
		}
		if err := sched.Every(gctx, "expire-stale-bookings", cfg.SweepInterval, func(ctx context.Context) error {
			n, err := engine.ExpireStale(ctx)
			if err == nil && n > 0 {
				return cache.InvalidateSeatMap(ctx)
			}
			return err
		}); err != nil {
			log.Fatalf("failed to schedule expiry: %v", err)
		}
		sched.Start()
		defer sched.Shutdown()
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("api stopped")
	}
	logger.Info("api exited")
}

type memoryKV struct {
	*memory.Idempotency
	*memory.Counters
}

type redisKV struct {
	*redisadapter.Idempotency
	*redisadapter.Cache
}
