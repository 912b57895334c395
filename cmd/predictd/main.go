package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ekisa-team/predictd/internal/config"
	"github.com/ekisa-team/predictd/internal/env"
	"github.com/ekisa-team/predictd/internal/logger"
	"github.com/ekisa-team/predictd/internal/metrics"
	"github.com/ekisa-team/predictd/internal/model"
	grpcserver "github.com/ekisa-team/predictd/internal/server/grpc"
	httpserver "github.com/ekisa-team/predictd/internal/server/http"
	"github.com/ekisa-team/predictd/internal/service"
)

func main() {
	var (
		flagConfigPath = flag.String("config", "", "Path to config file (default: $PREDICTD_CONFIG, ./config.yaml, then the user config dir)")
		flagSchemaPath = flag.String("schema", "", "Path to an external config schema (default: embedded)")
		flagHost       = flag.String("host", "", "Host to bind to")
		flagHTTPPort   = flag.Int("http-port", config.DefaultHTTPPort(), "HTTP port to listen on")
		flagGRPCPort   = flag.Int("grpc-port", config.DefaultGRPCPort(), "gRPC port to listen on (enables gRPC when set)")
		flagModelPath  = flag.String("model", "", "Path to the model artifact")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	environment := env.FromEnv()
	level := new(slog.LevelVar)
	var loadedModel atomic.Pointer[string]

	configPath, err := config.ResolvePath(*flagConfigPath)
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		slog.Error("Failed to resolve config path", "error", err)
		os.Exit(1)
	}

	var (
		cfg     *config.Config
		watcher *config.Watcher
	)
	if configPath != "" {
		watcher, err = config.NewWatcher(configPath, *flagSchemaPath, func(next *config.Config, err error) {
			if err != nil {
				slog.Error("Failed to reload config", "error", err)
				return
			}
			applyLogLevel(level, next.Log.Level)
			if current := loadedModel.Load(); current != nil && next.Model.Path != *current {
				slog.Warn("Model path changed, restart to load it", "current", *current, "configured", next.Model.Path)
			}
			slog.Info("Log level applied", "level", level.Level().String())
		})
		if err != nil {
			slog.Error("Failed to create config watcher", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = watcher.Close()
		}()
		snapshot := *watcher.Snapshot()
		cfg = &snapshot
	} else {
		cfg, err = config.Load("", "")
		if err != nil {
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}
	}

	applyFlags(cfg, *flagHost, *flagHTTPPort, *flagGRPCPort, *flagModelPath)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	applyLogLevel(level, cfg.Log.Level)
	slog.SetDefault(
		logger.New(environment,
			logger.WithLevel(level),
			logger.WithLogToFile(cfg.Log.ToFile),
			logger.WithLogFile(cfg.Log.File),
		),
	)

	if configPath != "" {
		slog.Info("Config loaded successfully", "config", configPath, "schema", *flagSchemaPath)
	} else {
		slog.Info("No config file found, using defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle := model.LoadHandle(ctx, cfg.Model.Path, model.DefaultRegistry(), slog.Default())
	loadedModel.Store(&cfg.Model.Path)
	defer func() {
		if err := handle.Close(); err != nil {
			slog.Error("Failed to release model", "error", err)
		}
	}()

	m := metrics.New()
	m.SetModelAvailable(handle.Available())

	svc := service.NewPredict(handle, slog.Default(), m)
	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second

	httpSrv := httpserver.NewServer(httpserver.Options{
		Addr:            cfg.HTTPAddr(),
		PredictPaths:    cfg.Server.PredictPaths,
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		CORSEnabled:     cfg.Server.CORS.Enabled,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		ShutdownTimeout: shutdownTimeout,
	}, svc, m, slog.Default())

	errCh := make(chan error, 2)
	go func() {
		errCh <- httpSrv.Start()
	}()

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv = grpcserver.NewServer(cfg.GRPCAddr(), svc, slog.Default())
		go func() {
			errCh <- grpcSrv.Start()
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("Server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout+time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down HTTP server", "error", err)
	}
	if grpcSrv != nil {
		grpcSrv.Stop(shutdownCtx)
	}

	slog.Info("Server stopped")
}

// applyFlags overrides cfg with flags that were set explicitly.
func applyFlags(cfg *config.Config, host string, httpPort, grpcPort int, modelPath string) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = host
		case "http-port":
			cfg.Server.Port = httpPort
		case "grpc-port":
			cfg.GRPC.Enabled = grpcPort > 0
			cfg.GRPC.Port = grpcPort
		case "model":
			cfg.Model.Path = modelPath
		}
	})
}

func applyLogLevel(level *slog.LevelVar, raw string) {
	l, err := logger.ParseLevel(raw)
	if err != nil {
		slog.Warn("Invalid log level, keeping current", "level", raw, "error", err)
		return
	}
	level.Set(l)
}
