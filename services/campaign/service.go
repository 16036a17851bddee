package campaign

import (
	"context"
	"strconv"
	"time"

	"businesspilot/pkg/db/option"
	"businesspilot/pkg/db/pagination"
	"businesspilot/pkg/errutil"
	"businesspilot/pkg/repository"
	"businesspilot/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	node *snowflake.Node
	seq  sequence.Generator
	repo repository.Repository[Campaign]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node: p.Node,
		seq:  p.Seq,
		repo: repository.ProvideStore[Campaign](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, businessID int64, req CreateCampaignRequest) (*Campaign, error) {
	if req.Name == "" {
		return nil, errutil.ValidationFailed("campaign name must not be empty")
	}
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		return nil, errutil.ValidationFailed("campaign ends before it starts")
	}

	code, err := s.seq.NextCampaignCode(ctx, strconv.FormatInt(businessID, 10))
	if err != nil {
		return nil, errutil.Internal("failed to create campaign", errutil.WithErr(err))
	}

	now := time.Now().UTC()
	record := &Campaign{
		ID:          s.node.Generate().Int64(),
		BusinessID:  businessID,
		Code:        code,
		Name:        req.Name,
		Description: req.Description,
		Status:      Draft,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		zap.L().Error("failed to create campaign", zap.Error(err))
		return nil, errutil.Internal("failed to create campaign", errutil.WithErr(err))
	}

	return record, nil
}

func (s *Service) Get(ctx context.Context, businessID, id int64) (*Campaign, error) {
	record, err := s.repo.FindOne(ctx, &Campaign{ID: id, BusinessID: businessID})
	if err != nil {
		zap.L().Error("failed query get campaign by id", zap.Error(err))
		return nil, errutil.Internal("failed to get campaign", errutil.WithErr(err))
	}
	if record == nil {
		return nil, errutil.NotFound("campaign not found")
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, businessID int64, page pagination.Pagination) ([]*Campaign, error) {
	records, err := s.repo.Find(ctx, &Campaign{BusinessID: businessID}, option.ApplyPagination(page))
	if err != nil {
		zap.L().Error("failed to list campaigns", zap.Error(err))
		return nil, errutil.Internal("failed to list campaigns", errutil.WithErr(err))
	}
	return records, nil
}

var Module = fx.Module("campaign.module",
	fx.Provide(
		NewService,
	),
	fx.Invoke(RegisterRoutes),
)
