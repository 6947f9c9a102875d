package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/catchsmart/catchsmart/internal/auth"
	"github.com/catchsmart/catchsmart/internal/cache"
	"github.com/catchsmart/catchsmart/internal/config"
	"github.com/catchsmart/catchsmart/internal/db"
	"github.com/catchsmart/catchsmart/internal/imagesearch"
	"github.com/catchsmart/catchsmart/internal/imagesearch/brave"
	"github.com/catchsmart/catchsmart/internal/logging"
	"github.com/catchsmart/catchsmart/internal/photostore"
	"github.com/catchsmart/catchsmart/internal/photostore/local"
	s3store "github.com/catchsmart/catchsmart/internal/photostore/s3"
	"github.com/catchsmart/catchsmart/internal/service"
	"github.com/catchsmart/catchsmart/internal/store"
	"github.com/catchsmart/catchsmart/internal/vision"
	claudevision "github.com/catchsmart/catchsmart/internal/vision/claude"
	googlevision "github.com/catchsmart/catchsmart/internal/vision/google"
	"github.com/catchsmart/catchsmart/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AuthJWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET is not set; every request will be rejected as unauthorized")
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	photoStg, err := newPhotoStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize photo store", "error", err)
		return
	}

	resolver, closeCache := newImageResolver(ctx, cfg, logger)
	defer closeCache()

	uploadService := service.NewUploadService(
		photoStg,
		newAnnotator(cfg, logger),
		resolver,
		store.NewUploadStore(database),
		store.NewItemStore(database),
		service.Options{
			VisionTimeout:     cfg.VisionTimeout,
			SearchTimeout:     cfg.SearchTimeout,
			SearchConcurrency: cfg.SearchConcurrency,
		},
		logger,
	)

	server := web.NewServer(uploadService, auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthAudience), photoStg,
		web.Options{MaxUploadBytes: cfg.MaxUploadBytes, Bucket: cfg.StorageBucket}, logger)
	httpServer := server.NewHTTPServer(cfg.ListenAddr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("starting server", "addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
	}
}

func newPhotoStore(cfg *config.Config, logger *slog.Logger) (photostore.PhotoStore, error) {
	switch cfg.StorageBackend {
	case "s3":
		logger.Info("using S3 photo storage", "endpoint", cfg.S3Endpoint, "bucket", cfg.StorageBucket)
		return s3store.NewS3PhotoStore(s3store.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Bucket:    cfg.StorageBucket,
			PublicURL: cfg.S3PublicURL,
		})
	default:
		logger.Info("using local photo storage", "path", cfg.PhotoPath)
		return local.NewLocalPhotoStore(cfg.PhotoPath, cfg.PublicBaseURL)
	}
}

func newAnnotator(cfg *config.Config, logger *slog.Logger) vision.Annotator {
	backend := cfg.VisionBackend
	if backend == "" && cfg.GoogleVisionConfigured() {
		backend = "google"
	}

	switch backend {
	case "google":
		if !cfg.GoogleVisionConfigured() {
			logger.Warn("GOOGLE_CLOUD_API_KEY is not set, using mock vision annotations")
			return vision.MockAnnotator{}
		}
		logger.Info("using Google Vision backend")
		return googlevision.NewAnnotator(cfg.GoogleAPIKey, cfg.GoogleVisionURL)
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			logger.Warn("CLAUDE_API_KEY is not set, using mock vision annotations")
			return vision.MockAnnotator{}
		}
		logger.Info("using Claude vision backend", "model", cfg.ClaudeModel)
		return claudevision.NewAnnotator(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	default:
		logger.Warn("no vision backend configured, using mock vision annotations")
		return vision.MockAnnotator{}
	}
}

// newImageResolver returns nil when no search key is configured. The
// returned func releases the cache connection.
func newImageResolver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.ImageResolver, func()) {
	if !cfg.ImageSearchConfigured() {
		logger.Info("BRAVE_SEARCH_API_KEY is not set, product image search disabled")
		return nil, func() {}
	}

	var imgCache imagesearch.Cache
	closeCache := func() {}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis unavailable, image search results will not be cached", "addr", cfg.RedisAddr, "error", err)
		} else {
			logger.Info("caching image search results in redis", "addr", cfg.RedisAddr, "ttl", cfg.ImageCacheTTL)
			imgCache = rc
			closeCache = func() {
				if err := rc.Close(); err != nil {
					logger.Error("failed to close redis", "error", err)
				}
			}
		}
	}

	searcher := brave.NewClient(cfg.BraveAPIKey, cfg.BraveSearchURL)
	return imagesearch.NewResolver(searcher, imagesearch.DefaultTrustedDomains, imgCache, cfg.ImageCacheTTL, logger), closeCache
}
