package app

import (
	"context"
	"fmt"

	"github.com/veloform/activity-enhancer-go/internal/bridge"
	"github.com/veloform/activity-enhancer-go/internal/config"
	"github.com/veloform/activity-enhancer-go/internal/engine"
	"github.com/veloform/activity-enhancer-go/internal/service/llm"
	"github.com/veloform/activity-enhancer-go/internal/service/session"
	"github.com/veloform/activity-enhancer-go/internal/site"
	"github.com/veloform/activity-enhancer-go/internal/storage"
	"go.uber.org/zap"
)

// Container bundles the assembled services the daemon runs on.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Registry *site.Registry
	Store    session.Store
	Settings *storage.SettingsStore
	Enhancer *llm.Enhancer
	Engine   *engine.Engine
	Bridge   *bridge.Server

	closers []func()
}

// Close tears services down in reverse construction order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build assembles the full dependency graph. All heavy-weight initialization
// (Redis, model clients) happens here so main stays orchestration only.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	// Pending store and settings persistence
	var store session.Store
	var kv storage.KV

	switch cfg.Session.Backend {
	case "memory":
		store = session.NewMemoryStore()
		kv = storage.NewMemoryKV()
		logger.Info("Using in-memory session backend")
	default:
		redisStore, redisErr := session.NewRedisStore(session.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if redisErr != nil {
			return nil, fmt.Errorf("failed to create session store: %w", redisErr)
		}
		closers = append(closers, func() {
			_ = redisStore.Close()
		})
		store = redisStore
		kv = storage.NewRedisKV(redisStore.Client())
	}

	settings := storage.NewSettingsStore(kv, logger)

	// Model providers
	enhancer, err := llm.NewEnhancer(ctx, llm.EnhancerConfig{
		OpenAIAPIKey:       cfg.OpenAI.APIKey,
		GeminiAPIKey:       cfg.Gemini.APIKey,
		DefaultOpenAIModel: cfg.OpenAI.Model,
		DefaultGeminiModel: cfg.Gemini.Model,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create enhancer: %w", err)
	}

	// Orchestration
	registry := site.NewRegistry()
	eng := engine.NewEngine(registry, store, settings, enhancer, logger)
	closers = append(closers, eng.Wait)

	srv := bridge.NewServer(eng, logger)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Store:    store,
		Settings: settings,
		Enhancer: enhancer,
		Engine:   eng,
		Bridge:   srv,
		closers:  closers,
	}, nil
}
