package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/health-campaign-api/internal/models"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit stores entry and only logs failures; auditing never fails the operation.
func recordAudit(ctx context.Context, rec auditRecorder, logger *zap.Logger, actor Actor, action, resource, resourceID string) {
	if rec == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource}
	if actor.ID != "" {
		id := actor.ID
		entry.UserID = &id
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if err := rec.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
