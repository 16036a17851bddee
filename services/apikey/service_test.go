package apikey

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"businesspilot/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &APIKey{})
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestMintAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	key, secret, err := svc.Mint(ctx, nil, 77, []string{"*"})
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.NotContains(t, key.SecretHash, secret)

	businessID, err := svc.Authenticate(ctx, key.KeyID, secret)
	require.NoError(t, err)
	require.EqualValues(t, 77, businessID)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	key, _, err := svc.Mint(ctx, nil, 77, []string{"*"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, key.KeyID, "not-the-secret")
	require.Error(t, err)
}

func TestAuthenticateUnknownKey(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "bzpk_live_0", "whatever")
	require.Error(t, err)
}

func TestAuthenticateRevokedKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	key, secret, err := svc.Mint(ctx, nil, 77, []string{"*"})
	require.NoError(t, err)

	revoked, err := svc.Revoke(ctx, 77, key.KeyID)
	require.NoError(t, err)
	require.True(t, revoked)

	_, err = svc.Authenticate(ctx, key.KeyID, secret)
	require.Error(t, err)
}

func TestAuthenticateExpiredKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	key, secret, err := svc.Mint(ctx, nil, 77, []string{"*"})
	require.NoError(t, err)

	expired := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, svc.db.Model(key).Update("expires_at", expired).Error)

	_, err = svc.Authenticate(ctx, key.KeyID, secret)
	require.Error(t, err)
}
