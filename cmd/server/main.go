package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/cache"
	"gulfquotes/internal/config"
	"gulfquotes/internal/db"
	"gulfquotes/internal/logger"
	"gulfquotes/internal/metrics"
	"gulfquotes/internal/middleware"
	"gulfquotes/internal/router"
	"gulfquotes/internal/services"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, finding env vars from system")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.LogLevel)
	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	conn, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	if err := db.Migrate(conn); err != nil {
		log.WithError(err).Fatal("migrate database")
	}
	if err := db.SeedCategories(conn, log); err != nil {
		log.WithError(err).Warn("seed categories failed")
	}

	m := metrics.New()

	c, err := cache.New(ctx, cfg.RedisAddr, log)
	if err != nil {
		log.WithError(err).Fatal("init cache")
	}
	if closer, ok := c.(io.Closer); ok {
		defer closer.Close()
	}

	mailer, err := services.NewMailService(services.MailConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("init mail service")
	}

	queue := newQueue(cfg, mailer, log, m)
	defer queue.Close()

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go cleanupLimiter(ctx, limiter, log)

	svc := router.NewServices(conn, log, queue, m, c, cfg.SiteURL)
	r := router.New(router.Options{
		DB:             conn,
		Log:            log,
		Metrics:        m,
		Limiter:        limiter,
		SessionSecret:  cfg.SessionSecret,
		SecureCookie:   strings.HasPrefix(cfg.SiteURL, "https://"),
		TrustedProxies: cfg.TrustedProxies,
	}, svc)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Gulfquotes server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// newQueue 配置了 RabbitMQ 就用 AMQP，连不上时退回内存队列
func newQueue(cfg *config.Config, mailer services.Mailer, log logrus.FieldLogger, m *metrics.Metrics) services.EmailQueue {
	if cfg.RabbitMQURL != "" {
		q, err := services.NewAMQPQueue(cfg.RabbitMQURL, mailer, log, m)
		if err == nil {
			return q
		}
		log.WithError(err).Warn("rabbitmq unavailable, using in-memory email queue")
	}
	return services.NewMemoryQueue(mailer, log, m, services.MemoryQueueOptions{
		Size:        1000,
		Workers:     4,
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
	})
}

func cleanupLimiter(ctx context.Context, limiter *middleware.IPRateLimiter, log logrus.FieldLogger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Cleanup(10 * time.Minute); n > 0 {
				log.WithField("removed", n).Debug("rate limiter cleanup")
			}
		}
	}
}
