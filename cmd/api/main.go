package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/essaylab/essay-eval-api/internal/config"
	"github.com/essaylab/essay-eval-api/internal/database"
	"github.com/essaylab/essay-eval-api/internal/handler"
	"github.com/essaylab/essay-eval-api/internal/middleware"
	"github.com/essaylab/essay-eval-api/internal/models"
	"github.com/essaylab/essay-eval-api/internal/repository"
	"github.com/essaylab/essay-eval-api/internal/router"
	"github.com/essaylab/essay-eval-api/internal/service"
	"github.com/essaylab/essay-eval-api/pkg/ai"
	cloud "github.com/essaylab/essay-eval-api/pkg/cloudinary"
	"github.com/essaylab/essay-eval-api/pkg/media"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Student{}, &models.Submission{}, &models.EvaluationLog{}, &models.Revision{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, failure events will be log-only")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	evaluator, err := ai.NewOpenAIEvaluator(ai.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.AITimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create evaluator: %v", err)
	}
	cachedEvaluator := ai.NewCachedEvaluator(evaluator, redisClient, cfg.AICacheTTL, logger)

	mediaProcessor := media.New(media.Config{
		WorkDir:      cfg.MediaWorkDir,
		VideoTimeout: cfg.VideoTimeout,
		AudioTimeout: cfg.AudioTimeout,
	}, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	revisionRepo := repository.NewRevisionRepository(db)
	logRepo := repository.NewEvaluationLogRepository(db)

	notifier := service.NewFailureNotifier(natsConn, "", logger)

	submissionService := service.NewSubmissionService(service.SubmissionServiceConfig{
		Submissions: submissionRepo,
		Revisions:   revisionRepo,
		Logs:        logRepo,
		Evaluator:   cachedEvaluator,
		Media:       mediaProcessor,
		Blob:        uploader,
		Notifier:    notifier,
		Cache:       redisClient,
		CacheTTL:    cfg.SubmissionCacheTTL,
	}, validate, logger)
	revisionService := service.NewRevisionService(submissionRepo, revisionRepo, logRepo, cachedEvaluator, notifier, redisClient, validate, logger)

	sweeper := service.NewRetrySweeper(submissionRepo, revisionRepo, logRepo, cachedEvaluator, notifier, redisClient, service.RetrySweeperConfig{
		Interval:   cfg.SweepInterval,
		StaleAfter: cfg.SweepStaleAfter,
		BatchSize:  cfg.SweepBatchSize,
	}, logger)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sweeper.Start(sweepCtx)

	submissionHandler := handler.NewSubmissionHandler(submissionService, validate, logger)
	revisionHandler := handler.NewRevisionHandler(revisionService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    110 << 20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: submissionHandler,
		RevisionHandler:   revisionHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopSweeper)
}

func waitForShutdown(app *fiber.App, stopSweeper context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
