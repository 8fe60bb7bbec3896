package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

type Log struct {
	ID         int64             `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ActorID    *string           `json:"actor_id"`
	Action     string            `json:"action" gorm:"not null;index"`
	TargetType string            `json:"target_type" gorm:"not null"`
	TargetID   *string           `json:"target_id"`
	Detail     datatypes.JSONMap `json:"detail"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null"`
}

func (Log) TableName() string { return "audit_logs" }

type Service interface {
	// Record writes an operator-facing log entry. Failures are logged and
	// swallowed by implementations; auditing must never fail the caller.
	Record(ctx context.Context, actorID *string, action, targetType string, targetID *string, detail map[string]any)
}
