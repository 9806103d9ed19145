package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/exam-grader-api/internal/config"
	"github.com/noah-isme/exam-grader-api/internal/database"
	"github.com/noah-isme/exam-grader-api/internal/grading"
	"github.com/noah-isme/exam-grader-api/internal/handler"
	"github.com/noah-isme/exam-grader-api/internal/middleware"
	"github.com/noah-isme/exam-grader-api/internal/observability"
	"github.com/noah-isme/exam-grader-api/internal/repository"
	"github.com/noah-isme/exam-grader-api/internal/router"
	"github.com/noah-isme/exam-grader-api/internal/service"
	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if !cfg.IsProduction() {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set; caching and redis events disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	generator, searcher, err := buildAIClients(cfg, logger)
	if err != nil {
		log.Fatalf("failed to configure ai provider: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	examRepo := repository.NewExamRepository(db)

	authService := service.NewAuthService(userRepo, validate, service.AuthConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.AppName,
		TTL:        cfg.JWTTTL,
		BcryptCost: bcrypt.DefaultCost,
	}, logger)
	courseService := service.NewCourseService(courseRepo, validate, logger)
	examService := service.NewExamService(examRepo, courseRepo, validate, logger)
	studentService := service.NewStudentService(userRepo, logger)
	dashboardService := service.NewDashboardService(courseRepo, examRepo, redisClient, cfg.DashboardCacheTTL, logger)
	newsService := service.NewNewsService(searcher, redisClient, cfg.NewsCacheTTL, logger)
	gradingEvents := service.NewGradingEventPublisher(redisClient, cfg.EventChannel, natsConn, logger)
	gradingService := service.NewGradingSessionService(examService, generator, examRepo, gradingEvents, dashboardService, validate, service.GradingSessionConfig{
		Instruction: cfg.GradingInstruction,
		TTL:         cfg.GradingSessionTTL,
	}, logger)

	uploadLimit := int64(cfg.UploadMaxSizeMB) * 1024 * 1024

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(uploadLimit) + 1024*1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AITimeout + 30*time.Second,
	})
	middleware.Register(app, middleware.Config{
		Logger:      &logger,
		CORSOrigins: cfg.CORSOrigins,
		AccessLog:   !cfg.IsProduction(),
	})
	app.Get("/metrics", observability.MetricsHandler())

	router.Register(app, cfg, router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(authService, logger),
		CourseHandler:    handler.NewCourseHandler(courseService, logger),
		ExamHandler:      handler.NewExamHandler(examService, uploadLimit, logger),
		StudentHandler:   handler.NewStudentHandler(studentService, logger),
		DashboardHandler: handler.NewDashboardHandler(dashboardService, logger),
		GradingHandler:   handler.NewGradingHandler(gradingService, uploadLimit, logger),
		NewsHandler:      handler.NewNewsHandler(newsService, logger),
		HealthProbes:     healthProbes(db, redisClient, natsConn),
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
		AuthLimiter:      middleware.RateLimit("auth", cfg.RateLimitRequests, cfg.RateLimitWindow),
		GradingLimiter:   middleware.RateLimit("grading", cfg.RateLimitRequests, cfg.RateLimitWindow),
	})

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		gradingService.Run(janitorCtx)
	}()

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Str("ai_provider", cfg.AIProvider).Msg("server starting")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
	stopJanitor()
	<-janitorDone
}

func buildAIClients(cfg config.Config, logger zerolog.Logger) (ai.Generator, ai.NewsSearcher, error) {
	switch cfg.AIProvider {
	case config.ProviderGemini:
		client, err := ai.NewGeminiClient(ai.GeminiConfig{
			APIKey:    cfg.AIAPIKey,
			BaseURL:   cfg.AIBaseURL,
			Model:     cfg.AIModel,
			NewsModel: cfg.AINewsModel,
			Timeout:   cfg.AITimeout,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	case config.ProviderOpenAI:
		client, err := ai.NewOpenAICompatClient(ai.OpenAIConfig{
			APIKey:          cfg.AIAPIKey,
			BaseURL:         cfg.AIBaseURL,
			Model:           cfg.AIModel,
			Timeout:         cfg.AITimeout,
			InlineDocuments: cfg.AIInlineDocuments,
			Logger:          logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case config.ProviderMock:
		logger.Warn().Msg("using the mock grader; results are fixed")
		return &ai.MockGenerator{Response: grading.FormatFenced(grading.Result{
			Score:    8,
			MaxScore: 10,
			Feedback: "Mock grading result. Configure a real provider to grade submissions.",
			Mistakes: []string{"No real evaluation was performed."},
		})}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) []handler.HealthProbe {
	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.WithContext(ctx).DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if redisClient != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	if natsConn != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "nats",
			Check: func(context.Context) error {
				if !natsConn.IsConnected() {
					return fmt.Errorf("nats status %s", natsConn.Status())
				}
				return nil
			},
		})
	}
	return probes
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
