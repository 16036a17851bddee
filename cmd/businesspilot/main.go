package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgasynq "businesspilot/pkg/asynq"
	"businesspilot/pkg/config"
	"businesspilot/pkg/db"
	"businesspilot/pkg/gen"
	"businesspilot/pkg/hashistack/secretmanager"
	"businesspilot/pkg/health"
	"businesspilot/pkg/logger"
	"businesspilot/pkg/redis"
	"businesspilot/pkg/sequence"
	"businesspilot/pkg/server"
	"businesspilot/pkg/task"
	"businesspilot/services/apikey"
	"businesspilot/services/business"
	"businesspilot/services/campaign"
	"businesspilot/services/connector"
	"businesspilot/services/vault"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		gen.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		pkgasynq.Client,
		pkgasynq.Server,
		fx.Provide(task.NewEnqueuer),
		server.Module,
		health.Module,
		vault.Module,
		apikey.Module,
		business.Module,
		connector.Module,
		campaign.Module,
		fx.Invoke(migrate, db.Otel, db.Metric),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&business.Business{},
		&apikey.APIKey{},
		&vault.GovernmentCredential{},
		&campaign.Campaign{},
	)
}
