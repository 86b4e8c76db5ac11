package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/junyuhe/scholarbot/backend/internal/config"
	"github.com/junyuhe/scholarbot/backend/internal/handler"
	"github.com/junyuhe/scholarbot/backend/internal/pipeline"
	"github.com/junyuhe/scholarbot/backend/internal/quota"
	"github.com/junyuhe/scholarbot/backend/internal/search"
	"github.com/junyuhe/scholarbot/backend/internal/service/answer"
	"github.com/junyuhe/scholarbot/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	conversationStore, err := newConversationStore(cfg.Store)
	if err != nil {
		log.Fatalf("failed to initialize conversation store: %v", err)
	}
	defer func() {
		if err := conversationStore.Close(); err != nil {
			log.Printf("warning: failed to close conversation store: %v", err)
		}
	}()
	log.Printf("conversation store initialized (driver=%s)", cfg.Store.Driver)

	guard := quota.NewGuard(map[quota.Provider]quota.Limit{
		quota.ProviderSearch: {Calls: cfg.Search.QuotaLimit, Window: cfg.Search.QuotaWindow},
		quota.ProviderLLM:    {Calls: cfg.AI.QuotaLimit, Window: cfg.AI.QuotaWindow},
	})

	var gateway pipeline.SearchGateway
	if cfg.Search.Enabled() {
		gateway = search.NewGateway(cfg.Search, guard)
		log.Println("search gateway initialized")
	} else {
		log.Println("search provider credentials not configured, answers will be ungrounded")
	}

	var generator pipeline.AnswerGenerator
	if cfg.AI.Enabled() {
		gen, err := answer.NewGenerator(ctx, cfg.AI, guard)
		if err != nil {
			log.Printf("warning: failed to initialize answer generator: %v", err)
		} else {
			generator = gen
			log.Println("answer generator initialized")
		}
	} else {
		log.Println("LLM credentials not configured, message endpoint will reject requests")
	}

	orchestrator := pipeline.New(conversationStore, gateway, generator, pipeline.Config{
		EvidenceBudget: cfg.Pipeline.EvidenceBudget,
		HistoryLimit:   cfg.AI.HistoryLimit,
		Interrogatives: cfg.Pipeline.Interrogatives,
		RecencyCues:    cfg.Pipeline.RecencyCues,
	})

	router := handler.NewRouter(orchestrator)

	startServer(ctx, cfg.Server, router)
}

func newConversationStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return store.New(store.DriverRedis,
			store.WithRedisClient(client),
			store.WithRedisTTL(cfg.RedisTTL),
		)
	}
	return store.New(store.DriverMemory)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Scholarbot backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
