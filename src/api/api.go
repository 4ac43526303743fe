package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/dao-proposals/src/api/config"
	"github.com/stake-plus/dao-proposals/src/api/data"
	"github.com/stake-plus/dao-proposals/src/api/webserver"
	"github.com/stake-plus/dao-proposals/src/cache"
	"github.com/stake-plus/dao-proposals/src/logging"
	"github.com/stake-plus/dao-proposals/src/metrics"
	"github.com/stake-plus/dao-proposals/src/proposals"
	"github.com/stake-plus/dao-proposals/src/snapshot"
	"github.com/stake-plus/dao-proposals/src/tally"
)

func main() {
	var (
		db       *gorm.DB
		settings *data.Settings
	)
	if dsn := config.MySQLDSN(); dsn != "" {
		var err error
		db, err = data.ConnectMySQL(dsn)
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		if err := data.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		if settings, err = data.LoadSettings(db); err != nil {
			log.Printf("Failed to load settings: %v", err)
		}
	}

	cfg, err := config.Load(settings)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := buildStore(ctx, cfg, logger)
	defer closeStore()

	collector := metrics.NewCollector("dao_proposals")

	var (
		recorder proposals.Recorder
		history  webserver.History
	)
	if db != nil {
		fetchLog := data.NewFetchLog(db, logger)
		recorder, history = fetchLog, fetchLog
	}

	svc, err := proposals.New(proposals.Config{
		Store: store,
		Offchain: snapshot.NewClient(snapshot.Config{
			Endpoint:      cfg.SnapshotURL,
			APIKey:        cfg.SnapshotAPIKey,
			Timeout:       cfg.UpstreamTimeout,
			RetryAttempts: cfg.RetryAttempts,
			RetryDelay:    cfg.RetryDelay,
		}, logger),
		Onchain: tally.NewClient(tally.Config{
			Endpoint:      cfg.TallyURL,
			APIKey:        cfg.TallyAPIKey,
			Timeout:       cfg.UpstreamTimeout,
			RetryAttempts: cfg.RetryAttempts,
			RetryDelay:    cfg.RetryDelay,
			MaxPages:      cfg.TallyMaxPages,
		}, logger),
		Recorder:     recorder,
		Metrics:      collector,
		Logger:       logger,
		Freshness:    cfg.CacheFreshness,
		StaleFor:     cfg.CacheStale,
		PageSize:     cfg.PageSize,
		FetchTimeout: cfg.UpstreamTimeout,
	})
	if err != nil {
		logger.Fatal("proposals service", zap.Error(err))
	}

	router := webserver.New(webserver.Deps{
		Config:  cfg,
		Fetcher: svc,
		History: history,
		Metrics: collector,
		Logger:  logger,
	})
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.EnableSSL {
		reloader, err := webserver.NewTLSReloader(cfg.SSLCert, cfg.SSLKey, logger)
		if err != nil {
			logger.Fatal("tls", zap.Error(err))
		}
		defer reloader.Close()
		httpSrv.TLSConfig = reloader.GetConfig()
	}

	go func() {
		var err error
		if cfg.EnableSSL {
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http", zap.Error(err))
		}
	}()
	logger.Info("DAO proposals API listening",
		zap.String("port", cfg.Port),
		zap.Bool("tls", cfg.EnableSSL),
		zap.Bool("mysql", db != nil),
		zap.Bool("redis", cfg.RedisURL != ""))

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// buildStore returns the memory LRU, fronting Redis when REDIS_URL is set.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (cache.Store, func()) {
	local := cache.NewMemory(cfg.CacheMaxEntries)
	if cfg.RedisURL == "" {
		return local, func() {}
	}

	rdb, err := data.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		// the memory tier alone still serves
		logger.Warn("redis unavailable, using memory cache only", zap.Error(err))
		return local, func() {}
	}
	shared := cache.NewRedis(rdb, cfg.CacheFreshness+cfg.CacheStale)
	return cache.NewTiered(local, shared), func() { _ = rdb.Close() }
}

