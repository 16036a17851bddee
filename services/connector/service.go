package connector

import (
	"context"

	"businesspilot/pkg/task"
	"businesspilot/services/vault"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service bridges the credentials vault and the government portals. It owns
// the bundled setup flow and the out-of-band verification probes.
type Service struct {
	db       *gorm.DB
	vault    *vault.Service
	portal   PortalClient
	enqueuer task.Enqueuer
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Vault    *vault.Service
	Portal   PortalClient
	Enqueuer task.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		vault:    p.Vault,
		portal:   p.Portal,
		enqueuer: p.Enqueuer,
	}
}

type Credential struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SetupRequest bundles the credentials of all three portals.
type SetupRequest struct {
	Ergani Credential `json:"ergani" binding:"required"`
	Aade   Credential `json:"aade" binding:"required"`
	Efka   Credential `json:"efka" binding:"required"`
}

// Setup stores all three portal credentials in a single transaction. If any
// store fails none of them survive. Each stored credential gets a
// verification probe enqueued.
func (s *Service) Setup(ctx context.Context, businessID int64, req SetupRequest) error {
	bundle := []struct {
		service    vault.ServiceName
		credential Credential
	}{
		{vault.Ergani, req.Ergani},
		{vault.Aade, req.Aade},
		{vault.Efka, req.Efka},
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v := s.vault.WithTx(tx)
		for _, item := range bundle {
			if _, err := v.Store(ctx, businessID, item.service, item.credential.Username, item.credential.Password); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	for _, item := range bundle {
		s.EnqueueVerification(ctx, businessID, item.service)
	}

	return nil
}

// EnqueueVerification schedules an asynchronous login probe. Enqueue failures
// are logged, not surfaced: the credentials are stored either way and a
// manual re-verify remains available.
func (s *Service) EnqueueVerification(ctx context.Context, businessID int64, service vault.ServiceName) {
	if s.enqueuer == nil {
		return
	}

	t, err := NewVerifyTask(businessID, service)
	if err != nil {
		zap.L().Error("failed to build verification task",
			zap.Int64("business_id", businessID),
			zap.String("service_name", string(service)),
			zap.Error(err))
		return
	}

	if _, err := s.enqueuer.Enqueue(ctx, t, asynq.Queue("critical")); err != nil {
		zap.L().Error("failed to enqueue verification task",
			zap.Int64("business_id", businessID),
			zap.String("service_name", string(service)),
			zap.Error(err))
	}
}

var Module = fx.Module("connector.module",
	fx.Provide(
		NewPortalClient,
		NewService,
	),
	fx.Invoke(
		RegisterRoutes,
		RegisterTaskHandlers,
	),
)
