package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"conduit/internal/config"
	"conduit/internal/exporter"
	apphttp "conduit/internal/http"
	"conduit/internal/repository"
	"conduit/internal/repository/postgres"
	"conduit/internal/repository/sqlite"
	"conduit/internal/service"
	"conduit/internal/storage"
)

// stores is the subset of the sqlite and postgres Store types main relies on.
type stores struct {
	users    repository.UserRepository
	articles repository.ArticleRepository
	exports  repository.ExportRepository
	close    func() error
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadAndWatch(func(ev fsnotify.Event, next config.Config, err error) {
		if err != nil {
			logger.Warnf("reload config %s: %v", ev.Name, err)
			return
		}
		applyLogLevel(logger, next.Log.Level)
		logger.Infof("config %s changed, log level %s", ev.Name, logger.GetLevel())
	})
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	applyLogLevel(logger, cfg.Log.Level)
	rule, _ := cfg.FirstArticleRule()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer st.close()

	userService := service.NewUserService(st.users, cfg.Auth.RegisterPassword)
	articleService := service.NewArticleService(st.articles)
	exportService := service.NewExportService(st.exports)
	rosterService := service.NewRosterService(st.users, st.articles, service.RosterConfig{
		FirstArticle:   rule,
		PerUserLookups: cfg.Roster.PerUserLookups,
		Logger:         logger.WithField("component", "roster"),
	})

	var (
		storageSvc storage.Service
		manager    exporter.Manager
	)
	if cfg.Storage.Bucket != "" {
		storageSvc, err = buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		manager = exporter.NewManager(exporter.Config{
			Bucket:        cfg.Storage.Bucket,
			KeyPrefix:     cfg.Storage.KeyPrefix,
			MaxConcurrent: cfg.Export.MaxConcurrent,
			Logger:        logger.WithField("component", "exporter"),
		}, exportService, rosterService, storageSvc)
		if err := manager.Start(ctx); err != nil {
			logger.Fatalf("start export manager: %v", err)
		}
		if err := manager.Resume(ctx); err != nil {
			logger.Warnf("resume exports: %v", err)
		}
	} else {
		logger.Info("storage bucket not set, roster exports disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Options{
		Users:      userService,
		Articles:   articleService,
		Roster:     rosterService,
		Exports:    exportService,
		Exporter:   manager,
		Storage:    storageSvc,
		Bucket:     cfg.Storage.Bucket,
		KeyPrefix:  cfg.Storage.KeyPrefix,
		PresignTTL: time.Duration(cfg.Storage.PresignMinutes) * time.Minute,
		JWTSecret:  cfg.Auth.JWTSecret,
		TokenTTL:   time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
		Logger:     logger.WithField("component", "http"),
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if manager != nil {
		manager.Shutdown()
	}

	logger.Info("bye")
}

func applyLogLevel(logger *logrus.Logger, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("unknown log level %q, keeping %s", level, logger.GetLevel())
		return
	}
	logger.SetLevel(lvl)
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	switch cfg.Database.Driver {
	case "postgres":
		s, err := postgres.NewStore(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		return &stores{users: s.Users, articles: s.Articles, exports: s.Exports, close: s.Close}, nil
	default:
		s, err := sqlite.NewStore(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return &stores{users: s.Users, articles: s.Articles, exports: s.Exports, close: s.Close}, nil
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
