package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"agriquant/db"
	qhttp "agriquant/http"
	"agriquant/logx"
	"agriquant/market"
	"agriquant/ml"
	"agriquant/monitoring"
)

type Config struct {
	Server struct {
		Port            int      `yaml:"port"`
		TimeoutSeconds  int      `yaml:"timeout_seconds"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
		AuthRequired    bool     `yaml:"auth_required"`
		InsightsEnabled bool     `yaml:"insights_enabled"`
		HistoryEnabled  bool     `yaml:"history_enabled"`
		TokenSecret     string   `yaml:"token_secret"`
		TokenTTLMinutes int      `yaml:"token_ttl_minutes"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Model struct {
		Dir         string `yaml:"dir"`
		WatchReload bool   `yaml:"watch_reload"`
	} `yaml:"model"`
	Insights struct {
		CacheSize int   `yaml:"cache_size"`
		Seed      int64 `yaml:"seed"`
	} `yaml:"insights"`
	Log logx.Config `yaml:"log"`
}

func main() {
	config, err := loadConfig("config.yaml")
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logx.New(config.Log)
	defer logger.Sync()

	store, err := db.Open(config.Database.Path)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	defer store.Close()
	logger.Info("database initialized", zap.String("path", config.Database.Path))

	cacheSize := config.Insights.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	insights, err := market.NewEngine(cacheSize, config.Insights.Seed)
	if err != nil {
		logger.Fatal("insight engine init failed", zap.Error(err))
	}

	hub := monitoring.NewHub(logger)
	go hub.Start()
	defer hub.Stop()

	// A missing model artifact is not fatal, predictions answer 503
	// until an artifact appears.
	var estimator ml.PriceEstimator
	if est, err := ml.LoadServingModel(config.Model.Dir); err != nil {
		logger.Warn("no serving model loaded", zap.String("dir", config.Model.Dir), zap.Error(err))
	} else {
		estimator = est
		logger.Info("serving model loaded", zap.String("model_type", est.Type()))
	}

	server := qhttp.NewServer(serverConfig(config), store, estimator, insights, hub, logger)

	if report, err := ml.LoadReport(config.Model.Dir); err == nil {
		server.SetTrainingReport(report)
	}

	if config.Model.WatchReload {
		watcher, err := ml.WatchModelDir(config.Model.Dir,
			func(est ml.PriceEstimator) { server.SwapEstimator(est) },
			func(err error) { logger.Error("model reload failed", zap.Error(err)) })
		if err != nil {
			logger.Warn("model watcher unavailable", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func serverConfig(config *Config) qhttp.Config {
	cfg := qhttp.DefaultConfig()
	if config.Server.Port > 0 {
		cfg.Port = config.Server.Port
	}
	if config.Server.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(config.Server.TimeoutSeconds) * time.Second
	}
	if len(config.Server.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = config.Server.AllowedOrigins
	}
	cfg.AuthRequired = config.Server.AuthRequired
	cfg.InsightsEnabled = config.Server.InsightsEnabled
	cfg.HistoryEnabled = config.Server.HistoryEnabled
	if config.Server.TokenSecret != "" {
		cfg.TokenSecret = config.Server.TokenSecret
	}
	if config.Server.TokenTTLMinutes > 0 {
		cfg.TokenTTL = time.Duration(config.Server.TokenTTLMinutes) * time.Minute
	}
	return cfg
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
