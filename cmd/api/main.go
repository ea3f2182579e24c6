package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/havenhealth/patient-portal/cmd/mainconfig"
	"github.com/havenhealth/patient-portal/internal/api/router"
	"github.com/havenhealth/patient-portal/internal/appointments"
	"github.com/havenhealth/patient-portal/internal/auth"
	"github.com/havenhealth/patient-portal/internal/avatars"
	"github.com/havenhealth/patient-portal/internal/chat"
	appconfig "github.com/havenhealth/patient-portal/internal/config"
	"github.com/havenhealth/patient-portal/internal/messages"
	"github.com/havenhealth/patient-portal/internal/notify"
	"github.com/havenhealth/patient-portal/internal/observability/metrics"
	"github.com/havenhealth/patient-portal/internal/patients"
	"github.com/havenhealth/patient-portal/internal/recommendations"
	"github.com/havenhealth/patient-portal/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting patient portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	portalMetrics := metrics.NewPortalMetrics(nil)

	// LLM clients: Gemini primary, Bedrock fallback when configured.
	gemini, err := chat.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		logger.Error("failed to create gemini client", "error", err)
		os.Exit(1)
	}
	defer gemini.Close()

	var llm chat.LLMClient = gemini
	if cfg.BedrockModelID != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		bedrock := chat.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		llm = chat.NewFallbackClient(gemini, bedrock, logger)
	}

	// Repositories.
	patientsRepo := patients.NewPostgresRepository(pool)
	appointmentsRepo := appointments.NewPostgresRepository(pool)
	messagesRepo := messages.NewPostgresRepository(pool)

	// Email.
	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		logger.Warn("sendgrid not configured, using stub email sender")
		emailSender = notify.NewStubEmailSender(logger)
	}

	// Services.
	authService := auth.NewService(patientsRepo, redisClient, emailSender, auth.Config{
		JWTSecret:        cfg.JWTSecret,
		TokenTTL:         cfg.JWTTTL,
		PasswordResetTTL: cfg.PasswordResetTTL,
		ResetBaseURL:     cfg.PublicBaseURL,
	}, logger)

	feed := appointments.NewRedisFeed(redisClient, logger)
	appointmentsService := appointments.NewService(appointmentsRepo, patientsRepo, feed, logger, portalMetrics)
	appointmentsService.DefaultProvider = cfg.DefaultProvider

	quota := chat.NewQuotaStore(chat.NewRedisKV(redisClient))
	sessions := chat.NewSessionManager(llm, quota, chat.SessionConfig{
		DailyLimit:  cfg.ChatDailyLimit,
		MaxTokens:   cfg.ChatMaxTokens,
		Temperature: cfg.ChatTemperature,
	}, logger, portalMetrics)

	recommendationsService := recommendations.NewService(patientsRepo, llm, logger, cfg.ChatMaxTokens)

	// Handlers.
	routerCfg := &router.Config{
		Logger:                 logger,
		AuthHandler:            auth.NewHandler(authService, logger),
		PatientsHandler:        patients.NewHandler(patientsRepo, logger),
		AppointmentsHandler:    appointments.NewHandler(appointmentsService, feed, logger),
		ChatHandler:            chat.NewHandler(sessions, logger),
		RecommendationsHandler: recommendations.NewHandler(recommendationsService, logger),
		MessagesHandler:        messages.NewHandler(messagesRepo, logger),
		MetricsHandler:         promhttp.Handler(),
		JWTSecret:              cfg.JWTSecret,
		CORSAllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerSecond:     cfg.RateLimitPerSecond,
		RateLimitBurst:         cfg.RateLimitBurst,
	}

	if cfg.AvatarBucket != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config for avatars", "error", err)
			os.Exit(1)
		}
		store := avatars.NewStore(s3.NewFromConfig(awsCfg), cfg.AvatarBucket, cfg.AvatarBaseURL)
		routerCfg.AvatarsHandler = avatars.NewHandler(store, patientsRepo, logger)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
