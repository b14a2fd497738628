package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sallegelias/metaverso-erp/auth"
	"github.com/sallegelias/metaverso-erp/internal/config"
	"github.com/sallegelias/metaverso-erp/internal/db"
	"github.com/sallegelias/metaverso-erp/internal/logger"
	"github.com/sallegelias/metaverso-erp/internal/metrics"
	"github.com/sallegelias/metaverso-erp/internal/models"
	"github.com/sallegelias/metaverso-erp/internal/policy"
	"github.com/sallegelias/metaverso-erp/view"
)

const serviceName = "metaverso-erp"

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
		ServiceName: serviceName,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	dbConn, err := db.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, cfg); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("migrations completed")
		return
	}
	if *seedOnlyFlag {
		if err := db.Seed(dbConn); err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
		log.Info("seeding completed")
		return
	}

	if err := db.Migrate(dbConn, cfg); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	if cfg.App.Seed {
		if err := db.Seed(dbConn); err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
	}

	if cfg.Session.Secret == "" && !cfg.App.Dev {
		log.Warn("SESSION_SECRET not set, using the development key")
	}
	auth.SetSecret(cfg.Session.Secret)
	auth.SetUserVerifier(userExists(dbConn))

	if !cfg.Mail.Configured() {
		log.Warn("SMTP credentials missing, quotation emails will fail", zap.String("host", cfg.Mail.Host))
	}

	rdb := connectRedis(cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(serviceName, reg)

	view.SetDev(cfg.App.Dev)
	view.SetStaticDir(cfg.App.StaticDir)

	routerCfg := policy.NewRouterConfig(policy.Deps{
		DB:      dbConn,
		Config:  cfg,
		Log:     log,
		Metrics: m,
		Redis:   rdb,
	})

	app := NewApp(dbConn, routerCfg, AppOptions{
		Log:       log,
		Metrics:   m,
		Gatherer:  reg,
		StaticDir: cfg.App.StaticDir,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server stopped gracefully")
}

// userExists rejects sessions whose user was deleted.
func userExists(conn *gorm.DB) auth.UserVerifier {
	return func(ctx context.Context, uid uint) bool {
		var count int64
		conn.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Count(&count)
		return count > 0
	}
}

// connectRedis returns nil when REDIS_URL is unset or unreachable; roles
// are then cached in process only.
func connectRedis(cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if cfg.URL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.Warn("invalid REDIS_URL, role cache stays in process", zap.Error(err))
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, role cache stays in process", zap.Error(err))
		rdb.Close()
		return nil
	}
	log.Info("redis role cache enabled", zap.String("addr", opts.Addr))
	return rdb
}
