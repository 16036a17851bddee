package business

import (
	"context"
	"fmt"
	"time"

	"businesspilot/pkg/db/option"
	"businesspilot/pkg/db/pagination"
	"businesspilot/pkg/errutil"
	"businesspilot/pkg/repository"
	"businesspilot/pkg/sequence"
	"businesspilot/services/apikey"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator
	keys *apikey.Service
	repo repository.Repository[Business]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator
	Keys *apikey.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		seq:  p.Seq,
		keys: p.Keys,
		repo: repository.ProvideStore[Business](p.DB),
	}
}

// Create registers a business and mints its first server API key in the same
// transaction. The plaintext secret is returned once and never stored.
func (s *Service) Create(ctx context.Context, req CreateBusinessRequest) (*CreateBusinessResponse, error) {
	if req.Name == "" {
		return nil, errutil.ValidationFailed("business name must not be empty")
	}

	slugName := req.Slug
	if slugName == "" {
		slugName = slug.Make(req.Name)
	}

	exist, err := s.repo.FindOne(ctx, &Business{Slug: slugName})
	if err != nil {
		zap.L().Error("failed query get business by slug", zap.Error(err))
		return nil, errutil.Internal("failed to check existing business", errutil.WithErr(err))
	}
	if exist != nil {
		zap.L().Warn("business already exists", zap.String("slug", slugName))
		return nil, errutil.Conflict("business already exists")
	}

	businessID := s.node.Generate().Int64()
	code, err := s.seq.NextBusinessCode(ctx)
	if err != nil {
		return nil, errutil.Internal("failed to create business", errutil.WithErr(err))
	}

	var key *apikey.APIKey
	var secret string
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		record := &Business{
			ID:          businessID,
			Code:        code,
			Name:        req.Name,
			Slug:        slugName,
			CountryCode: req.CountryCode,
			Timezone:    req.Timezone,
			Status:      Active,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create business: %w", err)
		}

		key, secret, err = s.keys.Mint(ctx, tx, businessID, []string{"*"})
		return err
	}); err != nil {
		zap.L().Error("failed to create business transaction", zap.Error(err))
		return nil, errutil.Internal("failed to create business", errutil.WithErr(err))
	}

	record, err := s.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}

	return &CreateBusinessResponse{
		Business: record,
		KeyID:    key.KeyID,
		Secret:   secret,
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Business, error) {
	record, err := s.repo.FindOne(ctx, &Business{ID: id})
	if err != nil {
		zap.L().Error("failed query get business by id", zap.Error(err))
		return nil, errutil.Internal("failed to get business", errutil.WithErr(err))
	}
	if record == nil {
		return nil, errutil.NotFound("business not found")
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, page pagination.Pagination) ([]*Business, error) {
	records, err := s.repo.Find(ctx, &Business{}, option.ApplyPagination(page))
	if err != nil {
		zap.L().Error("failed to list businesses", zap.Error(err))
		return nil, errutil.Internal("failed to list businesses", errutil.WithErr(err))
	}
	return records, nil
}

var Module = fx.Module("business.module",
	fx.Provide(
		NewService,
	),
	fx.Invoke(RegisterRoutes),
)
