// Command atomicbot wires the resilient licensing client together: env
// configuration, structured logging, the Redis-backed persistent cache tier
// and a Prometheus metrics endpoint. The Discord command layer plugs into
// the constructed client.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bimoraa/atomic-bot-sub001/internal/config"
	"github.com/bimoraa/atomic-bot-sub001/internal/luarmor"
	"github.com/bimoraa/atomic-bot-sub001/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	options := []luarmor.Option{
		luarmor.WithLogger(logger),
		luarmor.WithMetrics(),
	}

	var persistent store.Store
	if cfg.RedisAddr != "" {
		redisStore, err := store.NewRedisStore(&store.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Fatal("redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		persistent = redisStore
		defer func() { _ = redisStore.Close() }()
		options = append(options, luarmor.WithStore(redisStore))
		logger.Info("persistent cache tier enabled", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("REDIS_ADDR not set, running with memory cache only")
	}

	client := luarmor.NewClient(luarmor.Config{
		APIKey:          cfg.LuarmorAPIKey,
		ProjectID:       cfg.LuarmorProjectID,
		WebhookURL:      cfg.DiscordWebhookURL,
		UnbanWebhookURL: cfg.UnbanWebhookURL,
	}, options...)
	if !client.IsValid() {
		logger.Fatal("invalid client configuration", zap.Error(client.ValidationError()))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if rs, ok := persistent.(*store.RedisStore); ok && rs != nil {
			if err := rs.Health(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	_ = server.Close()
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
