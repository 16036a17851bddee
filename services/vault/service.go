package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"businesspilot/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the single entry point other subsystems use to store, rotate and
// read government portal credentials. Plaintext exists in memory only inside
// Store (pre-encrypt) and Retrieve (post-decrypt) and never reaches a log line.
type Service struct {
	db     *gorm.DB
	cipher *Cipher
	node   *snowflake.Node
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Cipher *Cipher
	Node   *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		cipher: p.Cipher,
		node:   p.Node,
	}
}

// WithTx returns a copy of the service bound to the caller's transaction, so
// multi-credential writes can be made all-or-nothing.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	return &Service{db: tx, cipher: s.cipher, node: s.node}
}

// Store creates or rotates the credential for (businessID, service). Rotation
// overwrites the existing row, resets verification to pending, clears the
// verification timestamp and reactivates soft-deleted rows. The returned
// record carries ciphertext only.
func (s *Service) Store(ctx context.Context, businessID int64, service ServiceName, username, password string) (*GovernmentCredential, error) {
	if err := validateStore(businessID, service, username, password); err != nil {
		return nil, err
	}

	var record *GovernmentCredential
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		record, err = s.storeOnce(ctx, businessID, service, username, password)
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		// Lost an insert race; the next attempt finds the row and updates it.
	}
	if err != nil {
		zap.L().Error("failed to store credential",
			zap.Int64("business_id", businessID),
			zap.String("service_name", string(service)),
			zap.Error(err))
		return nil, errutil.Internal("failed to store credential", errutil.WithErr(err))
	}

	zap.L().Info("credential stored",
		zap.Int64("business_id", businessID),
		zap.String("service_name", string(service)))

	return record, nil
}

func (s *Service) storeOnce(ctx context.Context, businessID int64, service ServiceName, username, password string) (*GovernmentCredential, error) {
	armored, err := s.cipher.Encrypt(password)
	if err != nil {
		return nil, fmt.Errorf("encrypt credential: %w", err)
	}

	var record GovernmentCredential
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		// Includes soft-deleted rows: a store on an inactive pair resurrects it.
		err := lockForUpdate(tx).
			Where("business_id = ? AND service_name = ?", businessID, service).
			First(&record).Error
		switch {
		case err == nil:
			updates := map[string]any{
				"username":            username,
				"encrypted_password":  armored,
				"verification_status": Pending,
				"last_verified":       nil,
				"is_active":           true,
				"updated_at":          now,
			}
			if err := tx.Model(&record).Updates(updates).Error; err != nil {
				return err
			}
			record.Username = username
			record.EncryptedPassword = armored
			record.VerificationStatus = Pending
			record.LastVerified = nil
			record.IsActive = true
			record.UpdatedAt = now
			return nil

		case errors.Is(err, gorm.ErrRecordNotFound):
			record = GovernmentCredential{
				ID:                 s.node.Generate().Int64(),
				BusinessID:         businessID,
				ServiceName:        service,
				Username:           username,
				EncryptedPassword:  armored,
				IsActive:           true,
				VerificationStatus: Pending,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			return tx.Create(&record).Error

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Retrieve returns the plaintext credentials for just-in-time use, or nil if
// no active record exists or the ciphertext cannot be decrypted. Callers
// cannot distinguish "no record" from "bad ciphertext" from "wrong key".
func (s *Service) Retrieve(ctx context.Context, businessID int64, service ServiceName) (*PlainCredential, error) {
	var record GovernmentCredential
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND service_name = ? AND is_active = ?", businessID, service, true).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errutil.Internal("failed to read credential", errutil.WithErr(err))
	}

	password, err := s.cipher.Decrypt(record.EncryptedPassword)
	if err != nil {
		zap.L().Error("failed to decrypt credential",
			zap.Int64("business_id", businessID),
			zap.String("service_name", string(service)))
		return nil, nil
	}

	return &PlainCredential{
		Username:           record.Username,
		Password:           password,
		VerificationStatus: record.VerificationStatus,
		LastVerified:       record.LastVerified,
	}, nil
}

// MarkVerification records the outcome of an out-of-band login probe. It
// updates soft-deleted rows too, preserving the audit trail, and reports
// whether a row was touched.
func (s *Service) MarkVerification(ctx context.Context, businessID int64, service ServiceName, valid bool) (bool, error) {
	status := Failed
	if valid {
		status = Verified
	}
	now := time.Now().UTC()

	res := s.db.WithContext(ctx).Model(&GovernmentCredential{}).
		Where("business_id = ? AND service_name = ?", businessID, service).
		Updates(map[string]any{
			"verification_status": status,
			"last_verified":       now,
			"updated_at":          now,
		})
	if res.Error != nil {
		return false, errutil.Internal("failed to mark verification", errutil.WithErr(res.Error))
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	zap.L().Info("credential verification recorded",
		zap.Int64("business_id", businessID),
		zap.String("service_name", string(service)),
		zap.String("verification_status", string(status)))

	return true, nil
}

// Delete soft-deletes the active credential. The row is preserved for audit
// and resurrected by a later Store.
func (s *Service) Delete(ctx context.Context, businessID int64, service ServiceName) (bool, error) {
	res := s.db.WithContext(ctx).Model(&GovernmentCredential{}).
		Where("business_id = ? AND service_name = ? AND is_active = ?", businessID, service, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, errutil.Internal("failed to delete credential", errutil.WithErr(res.Error))
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	zap.L().Info("credential deactivated",
		zap.Int64("business_id", businessID),
		zap.String("service_name", string(service)))

	return true, nil
}

// List enumerates the active credentials of a business, keyed by service.
// Neither plaintext nor ciphertext leaves the vault here.
func (s *Service) List(ctx context.Context, businessID int64) (map[ServiceName]CredentialInfo, error) {
	var records []GovernmentCredential
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Find(&records).Error
	if err != nil {
		return nil, errutil.Internal("failed to list credentials", errutil.WithErr(err))
	}

	out := make(map[ServiceName]CredentialInfo, len(records))
	for _, r := range records {
		out[r.ServiceName] = CredentialInfo{
			Username:           r.Username,
			VerificationStatus: r.VerificationStatus,
			LastVerified:       r.LastVerified,
			CreatedAt:          r.CreatedAt,
		}
	}

	return out, nil
}

// lockForUpdate acquires a row lock on dialects that support it. SQLite is
// single-writer and rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func validateStore(businessID int64, service ServiceName, username, password string) error {
	var details []errutil.Detail
	if businessID <= 0 {
		details = append(details, errutil.Detail{Field: "business_id", Message: "must be a positive integer"})
	}
	if service == "" {
		details = append(details, errutil.Detail{Field: "service_name", Message: "must not be empty"})
	}
	if username == "" || len(username) > 255 {
		details = append(details, errutil.Detail{Field: "username", Message: "must be between 1 and 255 characters"})
	}
	if password == "" {
		details = append(details, errutil.Detail{Field: "password", Message: "must not be empty"})
	}
	if len(details) > 0 {
		return errutil.ValidationFailed("invalid credential input", errutil.WithDetails(details...))
	}
	return nil
}
