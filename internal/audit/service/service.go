package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/npclabs/storefront/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

func (s *Service) Record(ctx context.Context, actorID *string, action, targetType string, targetID *string, detail map[string]any) {
	entry := &domain.Log{
		ID:         s.genID.Generate().Int64(),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}
	if detail != nil {
		entry.Detail = datatypes.JSONMap(detail)
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.log.Error("audit write failed",
			zap.String("action", action),
			zap.Error(err))
	}
}
