package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	catalogapi "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/handlers/catalog"
	resultapi "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/handlers/result"
	runapi "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/handlers/run"
	uploadapi "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/handlers/upload"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/router"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/server"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/config"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/infra/kafka/consumer"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/infra/kafka/producer"
	resultmsg "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/kafka/handlers/result"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/processor"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/provider"
	archiverepo "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/repository/archive"
	catalogrepo "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/repository/catalog"
	runrepo "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/repository/run"
	archivesvc "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/archive"
	catalogsvc "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/catalog"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/dispatch"
	runsvc "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/run"
	uploadsvc "github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/service/upload"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/storage/file"
)

const defaultConfigPath = "./config/config.yml"

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg := config.MustLoad(configPath)

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for Kafka.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	storage, err := file.NewStorage(
		ctx,
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.BucketName,
		cfg.Storage.PublicBaseURL,
		cfg.Storage.UseSSL,
	)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	// Worker pool bounding how many generation items run at once.
	pool, err := ants.NewPool(cfg.Dispatch.Workers, ants.WithPanicHandler(func(p interface{}) {
		zlog.Logger.Error().Interface("panic", p).Msg("panic in worker pool")
	}))
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create worker pool")
	}

	// Repositories.
	catalogRepo := catalogrepo.NewRepository(db)
	runRepo := runrepo.NewRepository(db)
	archiveRepo := archiverepo.NewRepository(db)

	// Services.
	p := producer.New(&cfg.Kafka, strategy)
	providerClient := provider.NewClient(cfg.Provider.URL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	dispatcher := dispatch.New(providerClient, runRepo, p, pool, dispatch.Timeouts{
		Provider: cfg.Provider.Timeout,
		Persist:  cfg.Dispatch.PersistTimeout,
	})

	catalogService := catalogsvc.NewService(catalogRepo)
	runService := runsvc.NewService(runRepo, catalogService, dispatcher)
	uploadService := uploadsvc.NewService(storage, cfg.Archive.FetchTimeout)

	thumbnailer := processor.New(storage, cfg.Archive.ThumbnailWidth, cfg.Archive.ThumbnailHeight)
	archiveService := archivesvc.NewService(storage, thumbnailer, archiveRepo, cfg.Archive.FetchTimeout)

	// Kafka consumer archiving recorded results.
	c := consumer.New(&cfg.Kafka, strategy, resultmsg.NewRecordedHandler(archiveService))

	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(router.Handlers{
		Run:     runapi.NewHandler(runService),
		Catalog: catalogapi.NewHandler(catalogService),
		Upload:  uploadapi.NewHandler(uploadService),
		Result:  resultapi.NewHandler(archiveService),
	})
	s := server.New(cfg.Server.HTTPPort, r, cfg.Server.WriteTimeout)
	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Wait for generation items that outlived their request.
	if err := pool.ReleaseTimeout(10 * time.Second); err != nil {
		zlog.Logger.Error().Err(err).Msg("worker pool did not drain in time")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close master DB")
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
		}
	}

	if err := p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err := c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
