package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"businesspilot/services/testutil"
	"businesspilot/services/vault"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubPortal struct {
	valid map[vault.ServiceName]bool
	err   error
	calls []vault.ServiceName
}

func (p *stubPortal) VerifyLogin(ctx context.Context, service vault.ServiceName, username, password string) (bool, error) {
	p.calls = append(p.calls, service)
	if p.err != nil {
		return false, p.err
	}
	return p.valid[service], nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func testKey(t *testing.T) vault.Key {
	t.Helper()
	key := make(vault.Key, vault.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func newTestService(t *testing.T, portal PortalClient) (*Service, *fakeEnqueuer, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &vault.GovernmentCredential{})

	cipher, err := vault.NewCipher(testKey(t))
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	vaultSvc := vault.NewService(vault.ServiceParams{DB: db, Cipher: cipher, Node: node})

	enq := &fakeEnqueuer{}
	svc := NewService(ServiceParams{
		DB:       db,
		Vault:    vaultSvc,
		Portal:   portal,
		Enqueuer: enq,
	})

	return svc, enq, db
}

func validSetup() SetupRequest {
	return SetupRequest{
		Ergani: Credential{Username: "ergani-user", Password: "ergani-pass"},
		Aade:   Credential{Username: "aade-user", Password: "aade-pass"},
		Efka:   Credential{Username: "efka-user", Password: "efka-pass"},
	}
}

func TestSetupStoresAllThree(t *testing.T) {
	svc, enq, db := newTestService(t, &stubPortal{})
	ctx := context.Background()

	require.NoError(t, svc.Setup(ctx, 1, validSetup()))

	var count int64
	require.NoError(t, db.Model(&vault.GovernmentCredential{}).
		Where("business_id = ? AND is_active = ?", int64(1), true).
		Count(&count).Error)
	require.EqualValues(t, 3, count)

	require.Len(t, enq.tasks, 3)
	for _, task := range enq.tasks {
		require.Equal(t, TypeVerifyCredentials, task.Type())
	}
}

func TestSetupIsAllOrNothing(t *testing.T) {
	svc, enq, db := newTestService(t, &stubPortal{})
	ctx := context.Background()

	req := validSetup()
	req.Efka.Password = ""

	require.Error(t, svc.Setup(ctx, 2, req))

	var count int64
	require.NoError(t, db.Model(&vault.GovernmentCredential{}).
		Where("business_id = ?", int64(2)).
		Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, enq.tasks)
}

func TestHandleVerifyCredentialsMarksVerified(t *testing.T) {
	portal := &stubPortal{valid: map[vault.ServiceName]bool{vault.Aade: true}}
	svc, _, db := newTestService(t, portal)
	ctx := context.Background()

	require.NoError(t, svc.Setup(ctx, 3, validSetup()))

	task, err := NewVerifyTask(3, vault.Aade)
	require.NoError(t, err)
	require.NoError(t, svc.HandleVerifyCredentials(ctx, task))

	var row vault.GovernmentCredential
	require.NoError(t, db.
		Where("business_id = ? AND service_name = ?", int64(3), vault.Aade).
		First(&row).Error)
	require.Equal(t, vault.Verified, row.VerificationStatus)
	require.NotNil(t, row.LastVerified)
	require.WithinDuration(t, time.Now().UTC(), *row.LastVerified, 5*time.Second)
}

func TestHandleVerifyCredentialsMarksFailed(t *testing.T) {
	portal := &stubPortal{valid: map[vault.ServiceName]bool{}}
	svc, _, db := newTestService(t, portal)
	ctx := context.Background()

	require.NoError(t, svc.Setup(ctx, 4, validSetup()))

	task, err := NewVerifyTask(4, vault.Ergani)
	require.NoError(t, err)
	require.NoError(t, svc.HandleVerifyCredentials(ctx, task))

	var row vault.GovernmentCredential
	require.NoError(t, db.
		Where("business_id = ? AND service_name = ?", int64(4), vault.Ergani).
		First(&row).Error)
	require.Equal(t, vault.Failed, row.VerificationStatus)
	require.NotNil(t, row.LastVerified)
}

func TestHandleVerifyCredentialsSkipsMissingCredential(t *testing.T) {
	portal := &stubPortal{}
	svc, _, _ := newTestService(t, portal)
	ctx := context.Background()

	task, err := NewVerifyTask(99, vault.Efka)
	require.NoError(t, err)

	require.NoError(t, svc.HandleVerifyCredentials(ctx, task))
	require.Empty(t, portal.calls)
}

func TestHandleVerifyCredentialsPropagatesPortalError(t *testing.T) {
	portal := &stubPortal{err: errors.New("connection refused")}
	svc, _, db := newTestService(t, portal)
	ctx := context.Background()

	require.NoError(t, svc.Setup(ctx, 5, validSetup()))

	task, err := NewVerifyTask(5, vault.Aade)
	require.NoError(t, err)
	require.Error(t, svc.HandleVerifyCredentials(ctx, task))

	// Verification outcome stays untouched until the portal answers.
	var row vault.GovernmentCredential
	require.NoError(t, db.
		Where("business_id = ? AND service_name = ?", int64(5), vault.Aade).
		First(&row).Error)
	require.Equal(t, vault.Pending, row.VerificationStatus)
	require.Nil(t, row.LastVerified)
}
