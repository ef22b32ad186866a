package worker

import (
	"context"
	"fmt"

	"backend/internal/config"
	"backend/internal/notification"
	"backend/internal/worker/handlers"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewServer(cfg config.RedisConfig, mailer notification.Mailer, logger *zap.Logger) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		},
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"mail":    3,
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()

	inviteHandler := handlers.NewInviteHandler(mailer, logger)
	mux.HandleFunc(tasks.TypeMembershipInvite, inviteHandler.HandleMembershipInvite)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Run starts the worker and blocks until shutdown.
func (s *Server) Run() error {
	s.logger.Info("worker server starting")
	return s.server.Run(s.mux)
}

// Start runs the worker in the background.
func (s *Server) Start() error {
	s.logger.Info("worker server starting in background")
	return s.server.Start(s.mux)
}

// Shutdown stops the worker gracefully.
func (s *Server) Shutdown() {
	s.logger.Info("worker server stopping")
	s.server.Shutdown()
}
