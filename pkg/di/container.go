package di

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"whatsjuju-chat/backend/ai"
	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/reply"
	"whatsjuju-chat/backend/internal/repository"
	"whatsjuju-chat/backend/internal/service"
	"whatsjuju-chat/backend/internal/storage"
	"whatsjuju-chat/backend/internal/ws"
	"whatsjuju-chat/backend/pkg/cache"
	"whatsjuju-chat/backend/pkg/config"
	"whatsjuju-chat/backend/pkg/health"
	"whatsjuju-chat/backend/pkg/jwt"
	"whatsjuju-chat/backend/pkg/logger"
	"whatsjuju-chat/backend/pkg/resilience"
	"whatsjuju-chat/backend/pkg/secrets"
	sharedredis "whatsjuju-chat/backend/shared/redis"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const historyCapacity = 50

// Container holds all the dependencies for the application
type Container struct {
	DB     *gorm.DB
	Config *config.Config
	Logger *logger.Logger

	JWTService *jwt.Service
	Hub        *ws.Hub
	Health     *health.Checker
	Breaker    *resilience.CircuitBreaker
	Uploader   *storage.LocalUploader

	Characters repository.CharacterRepository
	Store      repository.ConversationStore

	UserService         *service.UserService
	CharacterService    *service.CharacterService
	ChatService         *service.ChatService
	ConversationService *service.ConversationService
	SettingsService     *service.SettingsService

	redis        *redis.Client
	settingCache *cache.Cache
}

// New wires the application on top of an open database
func New(ctx context.Context, db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{
		DB:         db,
		Config:     cfg,
		Logger:     log,
		JWTService: jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry),
		Hub:        ws.NewHub(log),
		Health:     health.NewChecker(log, 30*time.Second),
		Uploader:   storage.NewLocalUploader(cfg.Uploads.Root, cfg.Uploads.MaxSize),
		Characters: repository.NewGormCharacterRepository(db),
	}

	c.Health.RegisterDatabaseCheck(func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	var store repository.ConversationStore = repository.NewGormConversationStore(db)
	if cfg.Redis.Enabled {
		client, err := sharedredis.NewClient(ctx, sharedredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// history falls back to the database
			log.LogError(err, "redis unavailable, history cache disabled", "addr", cfg.Redis.Addr)
		} else {
			c.redis = client
			history := sharedredis.NewHistoryCache[models.Message](client, "conversation", historyCapacity, cfg.Redis.HistoryTTL)
			store = repository.NewHistoryCachedStore(store, history, log)
			c.Health.RegisterCheck("redis", false, func(ctx context.Context) (health.Status, string, error) {
				if err := client.Ping(ctx).Err(); err != nil {
					return health.StatusDegraded, "history served from the database", err
				}
				return health.StatusUp, "history cache reachable", nil
			})
		}
	}
	c.Store = store

	secretManager, err := secrets.NewVaultManager(secrets.VaultConfig{
		Enabled:     cfg.Vault.Enabled,
		Address:     cfg.Vault.Addr,
		Token:       cfg.Vault.Token,
		Namespace:   cfg.Vault.Namespace,
		SecretsPath: cfg.Vault.SecretsPath,
	}, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("secrets manager: %w", err)
	}

	if cfg.Cache.Enabled {
		c.settingCache = cache.New(cache.Options{
			DefaultExpiration: cfg.Cache.TTL,
			CleanupInterval:   cfg.Cache.PurgeWindow,
			MaxItems:          cfg.Cache.MaxSize,
		})
	}
	c.SettingsService = service.NewSettingsService(
		repository.NewGormSettingRepository(db), secretManager, c.settingCache, cfg.Cache.TTL, log,
	)

	tables, err := reply.LoadDefaultTables()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("reply tables: %w", err)
	}
	seed := uint64(time.Now().UnixNano())
	rules := reply.NewRuleEngine(tables, rand.New(rand.NewPCG(seed, seed>>1)))

	c.Breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "completion",
		FailureThreshold: cfg.Completion.BreakerFailures,
		Cooldown:         cfg.Completion.BreakerCooldown,
	}, log)
	c.Health.RegisterBreakerCheck("completion", func() string { return string(c.Breaker.GetState()) })

	completion := ai.NewCompletionClient(ai.Config{
		BaseURL:      cfg.Completion.BaseURL,
		Model:        cfg.Completion.Model,
		Timeout:      cfg.Completion.Timeout,
		Temperature:  cfg.Completion.Temperature,
		MaxTokens:    cfg.Completion.MaxTokens,
		HistoryLimit: cfg.Completion.HistoryLimit,
	}, c.SettingsService, c.Breaker, log)

	locks := service.NewKeyedMutex()
	c.ChatService = service.NewChatService(
		store,
		c.Characters,
		reply.NewChain(completion, rules),
		rules,
		c.Uploader,
		c.Hub,
		service.ChatConfig{HistoryLimit: completion.HistoryLimit(), Locks: locks},
		log,
	)
	c.ConversationService = service.NewConversationService(store, c.Characters, c.Uploader, locks, log)
	c.UserService = service.NewUserService(repository.NewGormUserRepository(db), c.JWTService)
	c.CharacterService = service.NewCharacterService(c.Characters)

	return c, nil
}

// Close releases the connections the container opened. The database is
// owned by the caller.
func (c *Container) Close() {
	if c.settingCache != nil {
		c.settingCache.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.Logger.LogError(err, "redis close failed")
		}
	}
}
