package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"cooperative-ai/backend/internal/ai"
	"cooperative-ai/backend/internal/repository"
	"cooperative-ai/backend/internal/service"
	"cooperative-ai/backend/pkg/cache"
	"cooperative-ai/backend/pkg/config"
	"cooperative-ai/backend/pkg/health"
	"cooperative-ai/backend/pkg/jwt"
	"cooperative-ai/backend/pkg/logger"
	"cooperative-ai/backend/pkg/resilience"
	"cooperative-ai/backend/pkg/secrets"
	"cooperative-ai/backend/shared/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// Container holds all the dependencies for the application
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	JWTService   *jwt.Service
	CookieSigner *jwt.CookieSigner
	Users        repository.UserRepository
	Gateway      ai.Gateway
	Breaker      *resilience.CircuitBreaker
	ChatService  *service.ChatService
	UserService  *service.UserService
	Health       *health.Checker
	Metrics      *observability.Metrics

	closers []func(context.Context) error
}

// New wires the services around an already built store and gateway. It is
// what tests use; Build adds the real connections on top.
func New(cfg *config.Config, log *logger.Logger, users repository.UserRepository, gateway ai.Gateway) *Container {
	return &Container{
		Config:       cfg,
		Logger:       log,
		JWTService:   jwt.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry),
		CookieSigner: jwt.NewCookieSigner(cfg.Auth.CookieSecret),
		Users:        users,
		Gateway:      gateway,
		ChatService:  service.NewChatService(users, gateway),
		UserService:  service.NewUserService(users),
		Health:       health.NewChecker(log, 30*time.Second),
	}
}

// Build opens the configured store, cache and AI provider and returns the
// wired container. Close releases what Build opened.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	var closers []func(context.Context) error
	fail := func(err error) (*Container, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](ctx)
		}
		return nil, err
	}

	if cfg.Vault.Enabled {
		vm, err := secrets.NewVaultManager(secrets.VaultConfig{
			Address:     cfg.Vault.Address,
			Token:       cfg.Vault.Token,
			Namespace:   cfg.Vault.Namespace,
			Mount:       cfg.Vault.Mount,
			SecretsPath: cfg.Vault.Path,
		}, log)
		if err != nil {
			return fail(fmt.Errorf("failed to create vault manager: %w", err))
		}
		closers = append(closers, func(context.Context) error { vm.Close(); return nil })
		cfg.ResolveSecrets(ctx, vm)
		log.Info("Secrets resolved from Vault", "path", cfg.Vault.Path)
	}

	metrics, err := observability.SetupMetrics(cfg.Observability.ServiceName)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, metrics.Shutdown)

	users, storePing, storeClose, err := openStore(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	if storeClose != nil {
		closers = append(closers, storeClose)
	}

	var cachePing func(context.Context) error
	if cfg.Cache.Enabled {
		var store cache.Store
		if cfg.Cache.RedisURL != "" {
			rs := cache.NewRedisStore(cache.RedisOptions{
				Addr:     cfg.Cache.RedisURL,
				Password: cfg.Cache.RedisPassword,
				DB:       cfg.Cache.RedisDB,
			})
			closers = append(closers, func(context.Context) error { return rs.Close() })
			cachePing = rs.Ping
			store = rs
		} else {
			mem := cache.NewCache(time.Minute, cfg.Cache.MaxSize)
			closers = append(closers, func(context.Context) error { return mem.Close() })
			store = mem
		}
		users = repository.NewCachedUserRepository(users, store, cfg.Cache.TTL)
		log.Info("User cache enabled", "redis", cfg.Cache.RedisURL != "", "ttl", cfg.Cache.TTL.String())
	}

	provider, err := ai.New(ctx, ai.Config{
		Provider: cfg.AI.Provider,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
	})
	if err != nil {
		return fail(err)
	}
	breaker := resilience.NewCircuitBreaker(resilience.Config{
		Name:             "ai-" + cfg.AI.Provider,
		FailureThreshold: cfg.AI.BreakerFailures,
		RetryTimeout:     cfg.AI.BreakerRetryWait,
	}, log)
	gateway := ai.Instrument(ai.WithBreaker(withTimeout(provider, cfg.AI.Timeout), breaker), cfg.AI.Provider)

	c := New(cfg, log, users, gateway)
	c.Breaker = breaker
	c.Metrics = metrics
	c.closers = closers

	metrics.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ai_circuit_open",
		Help: "1 while the AI provider circuit breaker is open",
	}, func() float64 {
		if breaker.State() == resilience.StateOpen {
			return 1
		}
		return 0
	}))

	c.Health.RegisterPingCheck("store", true, storePing)
	if cachePing != nil {
		c.Health.RegisterPingCheck("cache", false, cachePing)
	}
	c.Health.RegisterCheck("ai", false, func(context.Context) (health.Status, string, error) {
		if breaker.State() == resilience.StateOpen {
			return health.StatusDegraded, "Circuit open", nil
		}
		return health.StatusUp, "Circuit " + string(breaker.State()), nil
	})

	return c, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.UserRepository, func(context.Context) error, func(context.Context) error, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := config.NewDB(cfg, log)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := repository.NewGormUserRepository(db)
		if err := repo.Migrate(); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to migrate users table: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("Using postgres user store", "host", cfg.Database.Host, "database", cfg.Database.Name)
		return repo, repo.Ping, func(context.Context) error { return sqlDB.Close() }, nil

	case config.StoreDriverMongo:
		coll, err := config.NewMongoCollection(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := repository.NewMongoUserRepository(coll)
		log.Info("Using mongo user store", "database", cfg.Store.MongoDatabase, "collection", cfg.Store.MongoCollection)
		return repo, repo.Ping, coll.Database().Client().Disconnect, nil

	case config.StoreDriverMemory:
		log.Warn("Using in-memory user store; data is lost on restart")
		return repository.NewMemoryUserRepository(), func(context.Context) error { return nil }, nil, nil
	}

	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// withTimeout bounds every provider call
func withTimeout(next ai.Gateway, d time.Duration) ai.Gateway {
	if d <= 0 {
		return next
	}
	return ai.GatewayFunc(func(ctx context.Context, transcript []string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Complete(ctx, transcript)
	})
}

// Close releases connections in reverse order of creation
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return stderrors.Join(errs...)
}
