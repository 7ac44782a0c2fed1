package advocate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestEdgeLifecycle(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	svc := NewService(ServiceParams{DB: db})
	ctx := context.Background()

	e, err := svc.Edge(ctx, nil, "kol.io")
	require.NoError(t, err)
	require.Nil(t, e)

	_, err = svc.GetEdge(ctx, "kol.io")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	require.NoError(t, svc.CreateEdge(ctx, nil, &Edge{Domain: "kol.io", TenantID: "t1", Owner: "kol", Sponsor: "boss"}))
	require.Error(t, svc.CreateEdge(ctx, nil, &Edge{Domain: "kol.io", TenantID: "t2", Owner: "other"}))

	e, err = svc.GetEdge(ctx, "kol.io")
	require.NoError(t, err)
	require.Equal(t, "boss", e.Sponsor)

	require.NoError(t, svc.CreateEdge(ctx, nil, &Edge{Domain: "alt.io", TenantID: "t1", Owner: "kol"}))
	require.NoError(t, svc.CreateEdge(ctx, nil, &Edge{Domain: "far.io", TenantID: "t2", Owner: "kol"}))
	owned, err := svc.EdgesOwnedBy(ctx, nil, "t1", "kol")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, "alt.io", owned[0].Domain)
	require.Equal(t, "kol.io", owned[1].Domain)
}

func TestCountersIncrementInsideTransaction(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	svc := NewService(ServiceParams{DB: db})
	ctx := context.Background()

	c, err := svc.Counter(ctx, nil, "t1", "kol", "kol.io")
	require.NoError(t, err)
	require.Zero(t, c.InvitationCount)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < 3; i++ {
			if err := svc.IncrementInvitation(ctx, tx, "t1", "kol", "kol.io"); err != nil {
				return err
			}
		}
		if err := svc.IncrementTierTwo(ctx, tx, "t1", "boss", "kol.io"); err != nil {
			return err
		}
		return svc.IncrementApplyCount(ctx, tx, "t1", "kol")
	}))

	c, err = svc.Counter(ctx, nil, "t1", "kol", "kol.io")
	require.NoError(t, err)
	require.EqualValues(t, 3, c.InvitationCount)
	require.Zero(t, c.TierTwoCount)

	c, err = svc.Counter(ctx, nil, "t1", "boss", "kol.io")
	require.NoError(t, err)
	require.EqualValues(t, 1, c.TierTwoCount)

	c, err = svc.Counter(ctx, nil, "t1", "kol", "other.io")
	require.NoError(t, err)
	require.Zero(t, c.InvitationCount)

	n, err := svc.ApplyCount(ctx, nil, "t1", "kol")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = svc.ApplyCount(ctx, nil, "t2", "kol")
	require.NoError(t, err)
	require.Zero(t, n)
}
