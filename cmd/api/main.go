package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	_ "github.com/noah-isme/redtape-api/api/swagger"
	"github.com/noah-isme/redtape-api/internal/handler"
	"github.com/noah-isme/redtape-api/internal/repository"
	"github.com/noah-isme/redtape-api/internal/router"
	"github.com/noah-isme/redtape-api/internal/scheduler"
	"github.com/noah-isme/redtape-api/internal/service"
	"github.com/noah-isme/redtape-api/migrations"
	"github.com/noah-isme/redtape-api/pkg/cache"
	"github.com/noah-isme/redtape-api/pkg/config"
	"github.com/noah-isme/redtape-api/pkg/database"
	"github.com/noah-isme/redtape-api/pkg/export"
	"github.com/noah-isme/redtape-api/pkg/jobs"
	"github.com/noah-isme/redtape-api/pkg/logger"
	"github.com/noah-isme/redtape-api/pkg/storage"
)

// @title Red Tape API
// @version 1.0.0
// @description Public reporting of permitting obstacles with admin review, exports and transparency statistics.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sentryEnabled := cfg.Sentry.Enabled(cfg.Env)
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Env,
			EnableTracing:    cfg.Sentry.TracesSampleRate > 0,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			logr.Warn("sentry init failed", zap.Error(err))
			sentryEnabled = false
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if _, err := database.Migrate(ctx, db, migrations.Files, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	archive, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("export storage: %w", err)
	}

	reportRepo := repository.NewReportRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	metricsSvc := service.NewMetricsService()
	validate := service.NewValidator()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metricsSvc, cfg.Transparency.CacheTTL, logr, cfg.Transparency.CacheEnabled)
	limiter := service.NewRateLimiter(repository.NewRateLimitRepository(redisClient),
		service.RateLimitRule{Limit: cfg.Reports.IPLimit, Window: cfg.Reports.IPWindow},
		service.RateLimitRule{Limit: cfg.Reports.EmailLimit, Window: cfg.Reports.EmailWindow},
		logr,
	)

	transport, err := newMailTransport(cfg.Mail, logr)
	if err != nil {
		return err
	}
	mailQueue := jobs.NewQueue("mail", jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.MaxRetries,
		RetryDelay: cfg.Mail.RetryDelay,
		Logger:     logr,
		OnGiveUp: func(job jobs.Job, err error) {
			logr.Error("mail delivery abandoned", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		},
	})
	mailer := service.NewMailService(mailQueue, transport, userRepo, service.MailServiceConfig{
		PublicBaseURL:   cfg.PublicBaseURL,
		AdminRecipients: cfg.Mail.AdminRecipients,
	}, metricsSvc, logr)
	mailQueue.Handle(service.MailJobType, mailer.Deliver)
	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	auditSvc := service.NewAuditService(auditRepo, logr)
	reportSvc := service.NewReportService(reportRepo, mailer, limiter, cacheSvc, validate, metricsSvc, logr)
	moderationSvc := service.NewModerationService(db, reportRepo, auditSvc, cacheSvc, metricsSvc, logr, cfg.Reports.AdminPageSize)
	transparencySvc := service.NewTransparencyService(reportRepo, cacheSvc, cfg.Transparency.CacheTTL, logr)
	exportSvc := service.NewExportService(db, reportRepo, auditSvc, archive,
		storage.NewSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		cfg.Exports.Retention, metricsSvc, logr, export.NewCSVExporter(), export.NewPDFExporter(),
	)
	authSvc := service.NewAuthService(db, userRepo, sessionRepo, mailer,
		storage.NewSigner(cfg.PasswordReset.Secret, cfg.PasswordReset.TTL),
		validate, logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		},
	)

	engine := router.New(router.Dependencies{
		Config:    cfg,
		Logger:    logr,
		Metrics:   metricsSvc,
		Tokens:    authSvc,
		IPLimiter: limiter,
		Sentry:    sentryEnabled,
	}, router.Handlers{
		Reports:      handler.NewReportHandler(reportSvc),
		Transparency: handler.NewTransparencyHandler(transparencySvc),
		Auth:         handler.NewAuthHandler(authSvc),
		AdminReports: handler.NewAdminReportHandler(moderationSvc, exportSvc),
		Audit:        handler.NewAuditHandler(auditSvc),
		Ops:          handler.NewMetricsHandler(metricsSvc, db),
	})

	jobsScheduler := scheduler.New(cfg.Exports.CleanupSchedule, exportSvc, authSvc, logr)
	if err := jobsScheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer jobsScheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMailTransport(cfg config.MailConfig, logr *zap.Logger) (service.MailTransport, error) {
	switch cfg.Driver {
	case "smtp":
		transport, err := service.NewSMTPTransport(service.SMTPConfig{
			Host:          cfg.Host,
			Port:          cfg.Port,
			Username:      cfg.Username,
			Password:      cfg.Password,
			From:          cfg.From,
			RatePerSecond: cfg.RatePerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp transport: %w", err)
		}
		return transport, nil
	case "", "log":
		return service.NewLogTransport(logr), nil
	default:
		return nil, fmt.Errorf("unknown MAIL_DRIVER %q", cfg.Driver)
	}
}
