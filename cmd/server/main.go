package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"backend/api"
	"backend/internal/audit"
	"backend/internal/config"
	"backend/internal/directory"
	"backend/internal/infra"
	"backend/internal/logger"
	"backend/internal/notification"
	"backend/internal/worker"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting up",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to init database", zap.Error(err))
	}
	defer infra.CloseDatabase()

	if cfg.Database.AutoMigrate {
		logger.Info("running schema migration")
		models := append(directory.AllModels(), &audit.Log{})
		if err := db.AutoMigrate(models...); err != nil {
			logger.Fatal("schema migration failed", zap.Error(err))
		}
	} else {
		logger.Info("schema migration disabled by config")
	}

	redisClient, err := infra.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to init redis", zap.Error(err))
	}
	defer infra.CloseRedis()

	container := api.NewAppContainer(cfg, db, redisClient)
	defer container.Close()

	handlers := api.NewHandlers(container)
	router := api.NewRouter(container, handlers)
	server := api.BuildHTTPServer(container, router)

	mailer := notification.NewSMTPMailer(cfg.SMTP, logger.Get())
	workerServer := worker.NewServer(cfg.Redis, mailer, logger.Get())

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := workerServer.Run(); err != nil {
			logger.Fatal("worker server failed", zap.Error(err))
		}
	}()

	gracefulShutdown(server, workerServer)
}

// loadEnvFile walks upward from the working directory and the
// executable's directory looking for a .env to load.
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Printf("failed to load env file %s: %v\n", path, err)
		} else {
			fmt.Printf("loaded env file: %s\n", path)
		}
	} else {
		fmt.Println("no .env file found, using system environment and config/* only")
	}
}

func resolveEnvPath() string {
	for _, path := range collectEnvCandidates() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func collectEnvCandidates() []string {
	seen := make(map[string]struct{})
	var candidates []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		candidates = append(candidates, path)
	}

	traverse := func(start string) {
		dir := filepath.Clean(start)
		for i := 0; i < 8; i++ {
			if dir == "" || dir == string(filepath.Separator) || dir == "." {
				break
			}
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if wd, err := os.Getwd(); err == nil {
		traverse(wd)
	}
	if exe, err := os.Executable(); err == nil {
		traverse(filepath.Dir(exe))
	}

	return candidates
}

func gracefulShutdown(server *http.Server, workerServer *worker.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	workerServer.Shutdown()

	if err := infra.CloseDatabase(); err != nil {
		logger.Error("database close error", zap.Error(err))
	}
	if err := infra.CloseRedis(); err != nil {
		logger.Error("redis close error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
