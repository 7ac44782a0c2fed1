package referral

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/services/testutil"
)

func TestLinkFlattensChains(t *testing.T) {
	svc := NewService(ServiceParams{DB: testutil.NewTestDB(t, Models()...)})
	ctx := context.Background()

	ab, err := svc.Link(ctx, nil, "t1", "A", "B")
	require.NoError(t, err)
	require.Empty(t, ab.Upline)

	bc, err := svc.Link(ctx, nil, "t1", "B", "C")
	require.NoError(t, err)
	require.Equal(t, "A", bc.Upline)

	cd, err := svc.Link(ctx, nil, "t1", "C", "D")
	require.NoError(t, err)
	require.Equal(t, "C", cd.Referrer)
	require.Equal(t, "B", cd.Upline)

	_, err = svc.GetEdge(ctx, "t1", "A")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestFollowerCounters(t *testing.T) {
	svc := NewService(ServiceParams{DB: testutil.NewTestDB(t, Models()...)})
	ctx := context.Background()

	require.NoError(t, svc.IncrementFollowers(ctx, nil, "t1", "A"))
	require.NoError(t, svc.IncrementFollowers(ctx, nil, "t1", "A"))
	require.NoError(t, svc.IncrementSubFollowers(ctx, nil, "t1", "A"))

	c, err := svc.Counter(ctx, nil, "t1", "A")
	require.NoError(t, err)
	require.EqualValues(t, 2, c.FollowerCount)
	require.EqualValues(t, 1, c.SubFollowerCount)

	c, err = svc.Counter(ctx, nil, "t2", "A")
	require.NoError(t, err)
	require.Zero(t, c.FollowerCount)
}
