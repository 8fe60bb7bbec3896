package db

import (
	"time"

	"github.com/npclabs/storefront/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Partner wraps the partner product's database handle so fx can distinguish
// it from the storefront handle. The partner schema is owned by the partner
// product; this service never migrates it.
type Partner struct {
	*gorm.DB
}

var Module = fx.Module("db",
	fx.Provide(NewStorefrontDB),
	fx.Provide(NewPartnerDB),
)

func NewStorefrontDB(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	return open(cfg.Storefront, log.Named("db.storefront"))
}

func NewPartnerDB(cfg config.Config, log *zap.Logger) (Partner, error) {
	conn, err := open(cfg.Partner, log.Named("db.partner"))
	if err != nil {
		return Partner{}, err
	}
	return Partner{DB: conn}, nil
}

func open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	log.Info("database connected")
	return conn, nil
}
