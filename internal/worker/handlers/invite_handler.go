package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"backend/internal/notification"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type InviteHandler struct {
	mailer notification.Mailer
	logger *zap.Logger
}

func NewInviteHandler(mailer notification.Mailer, logger *zap.Logger) *InviteHandler {
	return &InviteHandler{
		mailer: mailer,
		logger: logger,
	}
}

func (h *InviteHandler) HandleMembershipInvite(ctx context.Context, t *asynq.Task) error {
	var p tasks.MembershipInvitePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	h.logger.Info("sending membership invitation",
		zap.String("email", p.Email),
		zap.String("org_slug", p.OrgSlug))

	loginURL := "/" + p.OrgSlug + "/login"
	body, err := notification.InviteMessage(p.OrgName, p.PlatformName, p.Role, loginURL)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("You have been invited to %s", p.OrgName)
	if err := h.mailer.Send(ctx, p.Email, subject, body); err != nil {
		h.logger.Error("invitation mail failed",
			zap.String("email", p.Email), zap.Error(err))
		return err
	}

	return nil
}
