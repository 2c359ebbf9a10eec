package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repairdesk/backend/internal/archive"
	"repairdesk/backend/internal/cache"
	"repairdesk/backend/internal/config"
	"repairdesk/backend/internal/httpapi"
	"repairdesk/backend/internal/logger"
	"repairdesk/backend/internal/recordstore"
	"repairdesk/backend/internal/service"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/store/memory"
	pgstore "repairdesk/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log := logger.Component("server")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	loc, _ := cfg.Location()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema migration failed")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info().Msg("repository: in-memory (seeded)")
	}

	reportCache, closeCache := newReportCache(ctx, cfg)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}
	reportArchive := newReportArchive(ctx, cfg)

	records := recordstore.New(repo)
	snap, err := records.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("initial record load failed")
	}
	log.Info().Uint64("version", snap.Version).Int("sales", len(snap.Sales)).Int("repairs", len(snap.Repairs)).Msg("records loaded")

	svc := service.New(records, repo, reportCache, reportArchive, service.Options{
		DefaultShopID: cfg.DefaultShopID,
		Currency:      cfg.Currency,
		Location:      loc,
		CacheTTL:      cfg.ReportCacheTTL(),
	})
	svc.HydrateLedger(snap)

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := records.Watch(watchCtx, repo); err != nil {
			log.Error().Err(err).Msg("change watcher stopped")
		}
	}()

	api := httpapi.New(svc, cfg.AllowedOrigin)
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      40 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("repair desk backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	stopWatch()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

// newReportCache returns the redis cache when it answers a ping, else a
// no-op cache. The close func is nil for the no-op cache.
func newReportCache(ctx context.Context, cfg config.Config) (cache.ReportCache, func() error) {
	log := logger.Component("server")
	if cfg.RedisAddr == "" {
		log.Info().Msg("report cache: noop")
		return cache.NoopReportCache{}, nil
	}

	redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using noop report cache")
		_ = redisCache.Close()
		return cache.NoopReportCache{}, nil
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("report cache: redis")
	return redisCache, redisCache.Close
}

func newReportArchive(ctx context.Context, cfg config.Config) archive.ReportArchive {
	log := logger.Component("server")
	if !cfg.ArchiveEnabled() {
		log.Info().Msg("report archive: in-memory")
		return archive.NewMemoryArchive()
	}

	minioArchive, err := archive.NewMinioArchive(ctx, archive.MinioConfig{
		Endpoint:  cfg.ArchiveEndpoint,
		AccessKey: cfg.ArchiveAccessKey,
		SecretKey: cfg.ArchiveSecretKey,
		Bucket:    cfg.ArchiveBucket,
		UseSSL:    cfg.ArchiveUseSSL,
	})
	if err != nil {
		log.Warn().Err(err).Msg("object storage unavailable, archiving reports in memory")
		return archive.NewMemoryArchive()
	}
	log.Info().Str("endpoint", cfg.ArchiveEndpoint).Str("bucket", cfg.ArchiveBucket).Msg("report archive: minio")
	return minioArchive
}
