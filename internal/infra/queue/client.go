package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/config"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client enqueues background tasks.
type Client interface {
	EnqueueMembershipInvite(payload tasks.MembershipInvitePayload) error
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

// NewClient creates the task queue client.
func NewClient(cfg config.RedisConfig) Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &asynqClient{client: client}
}

func (c *asynqClient) EnqueueMembershipInvite(payload tasks.MembershipInvitePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeMembershipInvite, data)

	_, err = c.client.Enqueue(task,
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Queue("mail"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
