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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/snapfolio/api/internal/audit"
	"github.com/snapfolio/api/internal/auth"
	"github.com/snapfolio/api/internal/auth/cache"
	"github.com/snapfolio/api/internal/auth/token"
	"github.com/snapfolio/api/internal/config"
	"github.com/snapfolio/api/internal/email"
	"github.com/snapfolio/api/internal/httpserver"
	"github.com/snapfolio/api/internal/media"
	"github.com/snapfolio/api/internal/metrics"
	"github.com/snapfolio/api/internal/password"
	"github.com/snapfolio/api/internal/repo"
	"github.com/snapfolio/api/internal/store"
	"github.com/snapfolio/api/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	credStore := store.NewCredentialStore(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	sessionCache := cache.New(rdb, cfg.ServiceName)
	if err := sessionCache.Ping(context.Background()); err != nil {
		log.Fatalf("redis: %v", err)
	}

	codec, err := token.NewCodec(token.Config{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Leeway:     cfg.Leeway,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		VerifyTTL:  cfg.VerifyTTL,
	})
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	var auditSink audit.Sink
	var kafkaSink *audit.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger)
		auditSink = kafkaSink
	} else {
		auditSink = audit.NewJSONWriterSink(os.Stdout)
	}
	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    true,
		BufferSize: 1024,
		DropIfFull: true,
	}, auditSink)
	defer dispatcher.Close()
	if kafkaSink != nil {
		defer kafkaSink.Close()
	}

	m := metrics.New()
	meter := otel.Meter(cfg.ServiceName)
	exporter, err := metrics.NewExporter(meter, m, dispatcher.Dropped)
	if err != nil {
		log.Fatalf("metrics exporter: %v", err)
	}
	defer exporter.Close()

	mailer := email.NewSMTPMailer(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword,
		cfg.MailFrom, cfg.PublicURL,
	)

	mediaStore, err := media.NewCloudinaryStore(
		cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret, cfg.CloudinaryFolder,
	)
	if err != nil {
		log.Fatalf("media: %v", err)
	}

	svc, err := auth.NewService(auth.Config{
		Codec:        codec,
		Cache:        sessionCache,
		Store:        credStore,
		Hasher:       password.NewHasher(),
		Audit:        dispatcher,
		Metrics:      m,
		Mailer:       mailer,
		Logger:       logger,
		RoleCacheTTL: cfg.RoleCacheTTL,
	})
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID(), httpserver.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthService:    svc,
		AuthHandler:    &httpserver.AuthHandler{Svc: svc, Store: credStore, Media: mediaStore},
		ImageHandler:   &httpserver.ImageHandler{Images: repo.NewImageRepo(db), Rates: repo.NewRateRepo(db), Media: mediaStore},
		CommentHandler: &httpserver.CommentHandler{Comments: repo.NewCommentRepo(db)},
		RateHandler:    &httpserver.RateHandler{Rates: repo.NewRateRepo(db)},
		TagHandler:     &httpserver.TagHandler{Tags: repo.NewTagRepo(db)},
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
