package vault

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"businesspilot/pkg/errutil"
	"businesspilot/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &GovernmentCredential{})

	cipher, err := NewCipher(testKey(t))
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Cipher: cipher, Node: node}), db
}

func activeRowCount(t *testing.T, db *gorm.DB, businessID int64, service ServiceName) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&GovernmentCredential{}).
		Where("business_id = ? AND service_name = ? AND is_active = ?", businessID, service, true).
		Count(&count).Error)
	return count
}

func TestStoreAndRetrieve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	record, err := svc.Store(ctx, 1, Aade, "alice", "hunter2")
	require.NoError(t, err)
	require.Equal(t, Pending, record.VerificationStatus)
	require.Nil(t, record.LastVerified)
	require.True(t, record.IsActive)
	require.NotEqual(t, "hunter2", record.EncryptedPassword)

	plain, err := svc.Retrieve(ctx, 1, Aade)
	require.NoError(t, err)
	require.NotNil(t, plain)
	require.Equal(t, "alice", plain.Username)
	require.Equal(t, "hunter2", plain.Password)
	require.Equal(t, Pending, plain.VerificationStatus)
	require.Nil(t, plain.LastVerified)
}

func TestStoreValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	longUsername := make([]byte, 256)
	for i := range longUsername {
		longUsername[i] = 'a'
	}

	cases := []struct {
		name       string
		businessID int64
		service    ServiceName
		username   string
		password   string
	}{
		{"zero business", 0, Aade, "alice", "x"},
		{"negative business", -4, Aade, "alice", "x"},
		{"empty service", 1, "", "alice", "x"},
		{"empty username", 1, Aade, "", "x"},
		{"oversized username", 1, Aade, string(longUsername), "x"},
		{"empty password", 1, Aade, "alice", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Store(ctx, tc.businessID, tc.service, tc.username, tc.password)
			require.Error(t, err)

			var base errutil.BaseError
			require.True(t, errors.As(err, &base))
			require.Equal(t, errutil.StatusValidationFailed, base.Code)
		})
	}
}

func TestStoreUnknownServiceTagIsKeptVerbatim(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, 9, "myDATA", "carol", "secret")
	require.NoError(t, err)

	listing, err := svc.List(ctx, 9)
	require.NoError(t, err)
	require.Contains(t, listing, ServiceName("myDATA"))
}

func TestRotationResetsTrust(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, 1, Aade, "alice", "p1")
	require.NoError(t, err)

	updated, err := svc.MarkVerification(ctx, 1, Aade, true)
	require.NoError(t, err)
	require.True(t, updated)

	_, err = svc.Store(ctx, 1, Aade, "alice", "p2")
	require.NoError(t, err)

	plain, err := svc.Retrieve(ctx, 1, Aade)
	require.NoError(t, err)
	require.NotNil(t, plain)
	require.Equal(t, "p2", plain.Password)
	require.Equal(t, Pending, plain.VerificationStatus)
	require.Nil(t, plain.LastVerified)

	require.EqualValues(t, 1, activeRowCount(t, db, 1, Aade))
}

func TestFailedVerificationPersistsTimestamp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, 2, Ergani, "bob", "x")
	require.NoError(t, err)

	before := time.Now().UTC()
	updated, err := svc.MarkVerification(ctx, 2, Ergani, false)
	require.NoError(t, err)
	require.True(t, updated)

	plain, err := svc.Retrieve(ctx, 2, Ergani)
	require.NoError(t, err)
	require.NotNil(t, plain)
	require.Equal(t, "x", plain.Password)
	require.Equal(t, Failed, plain.VerificationStatus)
	require.NotNil(t, plain.LastVerified)
	require.WithinDuration(t, before, *plain.LastVerified, 5*time.Second)
}

func TestSoftDeleteHidesButPreserves(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, 3, Efka, "c", "y")
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, 3, Efka)
	require.NoError(t, err)
	require.True(t, deleted)

	plain, err := svc.Retrieve(ctx, 3, Efka)
	require.NoError(t, err)
	require.Nil(t, plain)

	// Idempotence: the active row is already gone.
	deleted, err = svc.Delete(ctx, 3, Efka)
	require.NoError(t, err)
	require.False(t, deleted)

	_, err = svc.Store(ctx, 3, Efka, "c", "z")
	require.NoError(t, err)

	plain, err = svc.Retrieve(ctx, 3, Efka)
	require.NoError(t, err)
	require.NotNil(t, plain)
	require.Equal(t, "z", plain.Password)
	require.Equal(t, Pending, plain.VerificationStatus)

	listing, err := svc.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	require.Contains(t, listing, Efka)

	// Resurrection updated the original row rather than appending.
	var total int64
	require.NoError(t, db.Model(&GovernmentCredential{}).
		Where("business_id = ? AND service_name = ?", 3, Efka).
		Count(&total).Error)
	require.EqualValues(t, 1, total)
}

func TestListExcludesInactive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, 7, Aade, "a", "1")
	require.NoError(t, err)
	_, err = svc.Store(ctx, 7, Ergani, "b", "2")
	require.NoError(t, err)

	_, err = svc.Delete(ctx, 7, Ergani)
	require.NoError(t, err)

	listing, err := svc.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, listing, 1)
	require.Contains(t, listing, Aade)
	require.NotContains(t, listing, Ergani)

	info := listing[Aade]
	require.Equal(t, "a", info.Username)
	require.Equal(t, Pending, info.VerificationStatus)
	require.False(t, info.CreatedAt.IsZero())
}

func TestRetrieveMissing(t *testing.T) {
	svc, _ := newTestService(t)

	plain, err := svc.Retrieve(context.Background(), 42, Aade)
	require.NoError(t, err)
	require.Nil(t, plain)
}

func TestMarkVerificationMissing(t *testing.T) {
	svc, _ := newTestService(t)

	updated, err := svc.MarkVerification(context.Background(), 42, Aade, true)
	require.NoError(t, err)
	require.False(t, updated)
}

func TestMarkVerificationReachesInactiveRows(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, 6, Efka, "d", "s")
	require.NoError(t, err)

	_, err = svc.Delete(ctx, 6, Efka)
	require.NoError(t, err)

	// A verification landing after soft-delete still updates the audit trail.
	updated, err := svc.MarkVerification(ctx, 6, Efka, true)
	require.NoError(t, err)
	require.True(t, updated)

	var record GovernmentCredential
	require.NoError(t, db.Where("business_id = ? AND service_name = ?", 6, Efka).First(&record).Error)
	require.Equal(t, Verified, record.VerificationStatus)
	require.NotNil(t, record.LastVerified)
	require.False(t, record.IsActive)
}

func TestCorruptCiphertextIsOpaque(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.Store(ctx, 4, Aade, "d", "s")
	require.NoError(t, err)

	var record GovernmentCredential
	require.NoError(t, db.Where("business_id = ? AND service_name = ?", 4, Aade).First(&record).Error)

	corrupted := []byte(record.EncryptedPassword)
	if corrupted[0] == 'A' {
		corrupted[0] = 'B'
	} else {
		corrupted[0] = 'A'
	}
	require.NoError(t, db.Model(&record).Update("encrypted_password", string(corrupted)).Error)

	core, logs := observer.New(zap.ErrorLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	plain, err := svc.Retrieve(ctx, 4, Aade)
	require.NoError(t, err)
	require.Nil(t, plain)

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "failed to decrypt credential", entries[0].Message)

	fields := entries[0].ContextMap()
	require.EqualValues(t, 4, fields["business_id"])
	require.EqualValues(t, "aade", fields["service_name"])
	for _, v := range fields {
		if s, ok := v.(string); ok {
			require.NotContains(t, s, string(corrupted))
		}
	}
}

func TestConcurrentStoresKeepOneActiveRow(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, password := range []string{"A", "B"} {
		wg.Add(1)
		go func(i int, password string) {
			defer wg.Done()
			_, errs[i] = svc.Store(ctx, 5, Aade, "e", password)
		}(i, password)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.EqualValues(t, 1, activeRowCount(t, db, 5, Aade))

	plain, err := svc.Retrieve(ctx, 5, Aade)
	require.NoError(t, err)
	require.NotNil(t, plain)
	require.Contains(t, []string{"A", "B"}, plain.Password)
}
