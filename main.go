package main

import (
	"context"
	"log"
	"os"
	"time"

	"portfoliogo/internal/api"
	"portfoliogo/internal/auth"
	"portfoliogo/internal/config"
	"portfoliogo/internal/knowledge"
	"portfoliogo/internal/logger"
	"portfoliogo/internal/redis"
	"portfoliogo/internal/service/ai"
	"portfoliogo/internal/service/chat"
	"portfoliogo/internal/service/content"
	"portfoliogo/internal/storage"
	"portfoliogo/internal/tree"
	"portfoliogo/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("PORTFOLIO_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.BasicConfig.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	dbType := os.Getenv("PORTFOLIO_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	zl.Info("opening database", "driver", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		zl.Fatal("open database", "error", err)
	}
	defer db.Close()

	if err := storage.Migrate(db, dbType); err != nil {
		zl.Fatal("migrate database", "error", err)
	}

	// Redis is optional; without it caching and rate limiting are disabled.
	rdb, err := redis.NewClient(cfg)
	if err != nil {
		zl.Warn("redis unavailable, continuing without cache", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	def := tree.DefaultDefinition()
	if path := cfg.BasicConfig.TreeConfigPath; path != "" {
		loaded, err := tree.Load(path)
		if err != nil {
			zl.Fatal("load decision tree", "path", path, "error", err)
		}
		def = loaded
	}
	if err := def.Validate(); err != nil {
		zl.Fatal("validate decision tree", "error", err)
	}
	engine := tree.NewEngine(def)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := worker.NewPool(cfg.BasicConfig.RebuildWorkers, 0)
	defer pool.Close()

	var embedder knowledge.Embedder
	embeddings, err := ai.NewEmbeddings(ctx, cfg.Embedding)
	if err != nil {
		zl.Warn("embeddings unavailable, knowledge search falls back to substring matching", "error", err)
	} else {
		embedder = embeddings
	}

	knowledgeStore := knowledge.NewStore(db, embedder, zl,
		knowledge.WithDocsDir(cfg.BasicConfig.KnowledgeDocsDir),
		knowledge.WithPool(pool),
	)

	provider := cfg.BasicConfig.ChatProvider
	chatModel, err := ai.NewChatModel(ctx, provider, cfg.Providers[provider])
	if err != nil {
		zl.Warn("chat model unavailable, AI answers degrade to retrieval only", "provider", provider, "error", err)
		chatModel = nil
	}
	generator := ai.NewGenerator(chatModel, knowledgeStore, zl)

	chatStore := chat.NewStore(db)
	chatService := chat.NewService(chatStore, engine, generator, zl)

	contentService := content.NewService(db)
	contentService.StartAssetSweeper(ctx, content.DefaultAssetSweepInterval, pool, zl)

	authService := auth.NewService(db, cfg.Admin)

	fileBase := cfg.BasicConfig.UploadBaseDir
	if fileBase == "" {
		fileBase = "./data/uploads"
	}
	handlers := api.NewHandler(chatService, chatStore, contentService, knowledgeStore, authService, rdb, zl, api.Options{
		FileBaseDir:    fileBase,
		MaxUploadBytes: cfg.BasicConfig.MaxUploadBytes,
		RateLimit:      cfg.BasicConfig.ChatRateLimit,
		RateWindow:     time.Duration(cfg.BasicConfig.ChatRateWindow) * time.Second,
	})

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	zl.Info("listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		zl.Fatal("server stopped", "error", err)
	}
}
