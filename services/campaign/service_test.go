package campaign

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"businesspilot/pkg/db/pagination"
	"businesspilot/pkg/errutil"
	"businesspilot/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeGenerator struct {
	n int
}

func (f *fakeGenerator) NextBusinessCode(ctx context.Context) (string, error) {
	f.n++
	return fmt.Sprintf("B%03d", f.n), nil
}

func (f *fakeGenerator) NextCampaignCode(ctx context.Context, businessID string) (string, error) {
	f.n++
	return fmt.Sprintf("CMP-%s-%03d", businessID, f.n), nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Campaign{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node, Seq: &fakeGenerator{}})
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	record, err := svc.Create(ctx, 1, CreateCampaignRequest{Name: "Summer Sale"})
	require.NoError(t, err)
	require.Equal(t, Draft, record.Status)
	require.NotEmpty(t, record.Code)

	got, err := svc.Get(ctx, 1, record.ID)
	require.NoError(t, err)
	require.Equal(t, "Summer Sale", got.Name)
}

func TestGetIsScopedToBusiness(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	record, err := svc.Create(ctx, 1, CreateCampaignRequest{Name: "Summer Sale"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, record.ID)
	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusNotFound, base.Code)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateCampaignRequest{})
	require.Error(t, err)

	start := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(-24 * time.Hour)
	_, err = svc.Create(ctx, 1, CreateCampaignRequest{Name: "Backwards", StartsAt: &start, EndsAt: &end})
	require.Error(t, err)
}

func TestListIsScopedToBusiness(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, 1, CreateCampaignRequest{Name: fmt.Sprintf("Campaign %d", i)})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, 2, CreateCampaignRequest{Name: "Other tenant"})
	require.NoError(t, err)

	records, err := svc.List(ctx, 1, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 3)
}
