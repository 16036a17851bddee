package apikey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"businesspilot/pkg/errutil"
	"businesspilot/pkg/security"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
	}
}

// Mint creates a server key for a business and returns the one-time plaintext
// secret. Only the argon2id digest is persisted.
func (s *Service) Mint(ctx context.Context, tx *gorm.DB, businessID int64, scopes []string) (*APIKey, string, error) {
	if tx == nil {
		tx = s.db
	}

	secret, err := security.GenerateBase64Secret(32)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate api key secret: %w", err)
	}

	hash, err := security.HashArgon2(secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash api key secret: %w", err)
	}

	id := s.node.Generate().Int64()
	key := &APIKey{
		ID:         id,
		BusinessID: businessID,
		KeyID:      fmt.Sprintf("bzpk_live_%d", id),
		SecretHash: hash,
		Scopes:     scopes,
		Status:     APIKeyStatusActive,
		CreatedAt:  time.Now().UTC(),
	}

	if err := tx.WithContext(ctx).Create(key).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create api key: %w", err)
	}

	zap.L().Info("api key minted",
		zap.Int64("business_id", businessID),
		zap.String("key_id", key.KeyID))

	return key, secret, nil
}

// Authenticate resolves a (key_id, secret) pair to the owning business.
// Implements the middleware.Authenticator contract.
func (s *Service) Authenticate(ctx context.Context, keyID, secret string) (int64, error) {
	var key APIKey
	err := s.db.WithContext(ctx).
		Where("key_id = ? AND status = ?", keyID, APIKeyStatusActive).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errutil.Unauthorized("unknown api key")
		}
		return 0, errutil.Internal("failed to look up api key", errutil.WithErr(err))
	}

	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now().UTC()) {
		return 0, errutil.Unauthorized("api key expired")
	}

	ok, err := security.VerifyArgon2(secret, key.SecretHash)
	if err != nil {
		return 0, errutil.Internal("failed to verify api key", errutil.WithErr(err))
	}
	if !ok {
		return 0, errutil.Unauthorized("invalid api key secret")
	}

	return key.BusinessID, nil
}

// Revoke deactivates a key without deleting it.
func (s *Service) Revoke(ctx context.Context, businessID int64, keyID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&APIKey{}).
		Where("business_id = ? AND key_id = ? AND status = ?", businessID, keyID, APIKeyStatusActive).
		Update("status", APIKeyStatusRevoked)
	if res.Error != nil {
		return false, errutil.Internal("failed to revoke api key", errutil.WithErr(res.Error))
	}
	return res.RowsAffected > 0, nil
}

var Module = fx.Module("apikey.module",
	fx.Provide(
		NewService,
	),
)
