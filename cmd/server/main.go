package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/exhibitly/backend/api/handler"
	"github.com/exhibitly/backend/api/transport"
	"github.com/exhibitly/backend/domain"
	"github.com/exhibitly/backend/internal/config"
	"github.com/exhibitly/backend/internal/infrastructure/engines"
	"github.com/exhibitly/backend/internal/infrastructure/journal"
	"github.com/exhibitly/backend/internal/infrastructure/monitor"
	pgInfra "github.com/exhibitly/backend/internal/infrastructure/postgres"
	redisInfra "github.com/exhibitly/backend/internal/infrastructure/redis"
	"github.com/exhibitly/backend/internal/middleware"
	"github.com/exhibitly/backend/internal/router"
	"github.com/exhibitly/backend/internal/services/lifecycle"
	"github.com/exhibitly/backend/internal/services/reconcile"
	"github.com/exhibitly/backend/internal/services/workflow"
	"github.com/exhibitly/backend/pkg/httpcontext"
	"github.com/exhibitly/backend/pkg/logger"
	"github.com/exhibitly/backend/repository/postgres"
	redisRepo "github.com/exhibitly/backend/repository/redis"
	"github.com/exhibitly/backend/usecase"
	previewUC "github.com/exhibitly/backend/usecase/preview"
	resourceUC "github.com/exhibitly/backend/usecase/resource"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if cfg.Migrations.Enabled {
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	journalStore, err := journal.Open(cfg.Journal.Path, "workflow")
	if err != nil {
		zapLogger.Fatal("failed to open workflow journal", zap.Error(err))
	}
	manager.Register("journal", func(ctx context.Context) error {
		return journalStore.Close()
	})

	mon := monitor.New(pool, redisClient, journalStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	resourceRepo := postgres.NewResourceRepository(pool)
	objectStore := redisRepo.NewObjectStore(redisClient)

	voices := usecase.NewVoiceRegistry()
	for tag, backend := range cfg.Engines.TTSBackends {
		voices.Register(tag, engines.NewTTSBackend(backend.URL, backend.Voice, cfg.Engines.TTSTimeout))
	}

	scaler := engines.NewScaler(cfg.Assets.JPEGQuality)
	qrEncoder := engines.NewQREncoder()
	cdnClient := engines.NewCDNClient(cfg.Engines.CDNEndpoint, cfg.Engines.CDNToken, cfg.Engines.CDNTimeout)

	steps := []workflow.Step{
		workflow.NewImageStep(objectStore, scaler, workflow.ImageStepConfig{
			ThumbWidth:  cfg.Assets.ThumbWidth,
			ThumbHeight: cfg.Assets.ThumbHeight,
			MobileWidth: cfg.Assets.MobileWidth,
		}),
		workflow.NewAudioStep(objectStore, voices),
		workflow.NewQRStep(objectStore, qrEncoder, cfg.Assets.PublicBaseURL, cfg.Assets.QRSize),
		workflow.NewDeleteStep(objectStore),
		workflow.NewCDNStep(cdnClient, zapLogger),
	}

	engine := workflow.NewEngine(journalStore, resourceRepo, mon, steps, zapLogger, workflow.Config{
		Interval:    cfg.Workflow.Interval,
		BatchSize:   cfg.Workflow.BatchSize,
		MaxAttempts: cfg.Workflow.MaxAttempts,
		Backoff:     cfg.Workflow.Backoff,
		Retention:   time.Duration(cfg.Journal.RetentionHours) * time.Hour,
	})
	engine.Start()
	manager.Register("workflow_engine", func(ctx context.Context) error {
		engine.Stop(ctx)
		return nil
	})

	sweeper := reconcile.New(resourceRepo, engine, engine, zapLogger, reconcile.Config{
		Interval:  cfg.Reconcile.Interval,
		Threshold: cfg.Reconcile.Threshold,
	})
	sweeper.Start()
	manager.Register("reconcile_sweeper", func(ctx context.Context) error {
		sweeper.Stop(ctx)
		return nil
	})

	resourceUseCase := resourceUC.New(resourceRepo, engine, zapLogger)
	previewUseCase := previewUC.New(voices, cfg.Assets.PreviewCharLimit, zapLogger)

	signer := transport.NewURLSigner(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.Assets.AssetBaseURL, cfg.Assets.SignedURLTTL)
	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Institutions: apiHandler.NewResourceHandler(resourceUseCase, signer, domain.KindInstitution, ctxAdapter, zapLogger),
		Exhibitions:  apiHandler.NewResourceHandler(resourceUseCase, signer, domain.KindExhibition, ctxAdapter, zapLogger),
		Exhibits:     apiHandler.NewResourceHandler(resourceUseCase, signer, domain.KindExhibit, ctxAdapter, zapLogger),
		Preview:      apiHandler.NewPreviewHandler(previewUseCase, ctxAdapter, zapLogger),
		Health:       apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
