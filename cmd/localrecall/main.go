package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/AdvitDeepak/local-recall/internal/ai"
	"github.com/AdvitDeepak/local-recall/internal/bus"
	"github.com/AdvitDeepak/local-recall/internal/config"
	"github.com/AdvitDeepak/local-recall/internal/control"
	"github.com/AdvitDeepak/local-recall/internal/db"
	"github.com/AdvitDeepak/local-recall/internal/embedcache"
	"github.com/AdvitDeepak/local-recall/internal/handler"
	"github.com/AdvitDeepak/local-recall/internal/job"
	"github.com/AdvitDeepak/local-recall/internal/middleware"
	"github.com/AdvitDeepak/local-recall/internal/pipeline"
	"github.com/AdvitDeepak/local-recall/internal/repo"
	"github.com/AdvitDeepak/local-recall/internal/schedule"
	"github.com/AdvitDeepak/local-recall/internal/service"
	"github.com/AdvitDeepak/local-recall/internal/vector"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "localrecall",
		Short: "local-recall capture and query server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run local-recall server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	resyncCmd := &cobra.Command{
		Use:   "resync",
		Short: "drop all vectors and mark every entry pending for re-embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			ctx := context.Background()
			if err := repo.NewVectorRepo(conn).DeleteAll(ctx); err != nil {
				return fmt.Errorf("drop vector records: %w", err)
			}
			flipped, err := repo.NewEntryRepo(conn).RequeueAll(ctx)
			if err != nil {
				return fmt.Errorf("requeue entries: %w", err)
			}
			fmt.Printf("marked %d entries pending; restart the server to re-embed\n", flipped)
			return nil
		},
	}
	resyncCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(resyncCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("embed_provider", cfg.AI.EmbedProvider),
		zap.String("chat_provider", cfg.AI.ChatProvider),
	)

	entryRepo := repo.NewEntryRepo(conn)
	vectorRepo := repo.NewVectorRepo(conn)
	eventBus := bus.New(conn)

	embedProvider, err := ai.NewEmbedProvider(cfg.AI.EmbedProvider, cfg.AI.EmbedArgs)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	chatArgs := cfg.AI.ChatArgs
	if chatArgs == nil {
		chatArgs = cfg.AI.EmbedArgs
	}
	chatProvider, err := ai.NewChatProvider(cfg.AI.ChatProvider, chatArgs)
	if err != nil {
		return fmt.Errorf("init chat provider: %w", err)
	}
	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel, cfg.AI.EmbedDimension, timeout)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize,
		time.Duration(cfg.AI.CacheTTLMins)*time.Minute)

	index, err := vector.New(cfg.AI.EmbedDimension)
	if err != nil {
		return fmt.Errorf("init vector index: %w", err)
	}

	pipe := pipeline.New(entryRepo, vectorRepo, index, eventBus, embedder, cfg.Pipeline)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := pipe.Hydrate(ctx)
	if err != nil {
		return fmt.Errorf("hydrate index: %w", err)
	}
	logutil.GetLogger(ctx).Info("index hydrated", zap.Int("vectors", loaded))

	state := control.NewState()
	entryService := service.NewEntryService(entryRepo, vectorRepo, index, eventBus, pipe)
	queryService := service.NewQueryService(entryRepo, index, embedder, chatProvider, cfg.AI.ChatModel, cfg.Query)
	statsService := service.NewStatsService(entryRepo, vectorRepo, index, state)

	deps := handler.RouterDeps{
		Entries:       handler.NewEntryHandler(entryService),
		Queries:       handler.NewQueryHandler(queryService),
		Notifications: handler.NewNotificationHandler(eventBus),
		Control:       handler.NewControlHandler(state, statsService),
		QueryWindow:   time.Duration(cfg.Query.RateLimitMs) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression,
				gzip.WithExcludedPaths([]string{"/api/v1/query/stream"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewRequeueFailedJob(entryRepo, pipe, cfg.Jobs.RequeueBatch), cfg.Jobs.RequeueSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewIndexCompactJob(index, eventBus), cfg.Jobs.CompactSpec); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewNotificationPruneJob(eventBus, cfg.Jobs.NotificationKeep), cfg.Jobs.PruneSpec); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := pipe.Run(ctx); err != nil && ctx.Err() == nil {
			logutil.GetLogger(ctx).Error("pipeline stopped", zap.Error(err))
		}
	}()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
