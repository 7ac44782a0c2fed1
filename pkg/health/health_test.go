package health

import (
	"context"
	"testing"

	"smallbiznis-points/services/testutil"

	"github.com/stretchr/testify/require"
)

func TestCheckWithDatabase(t *testing.T) {
	db := testutil.NewTestDB(t)
	h := ProvideHealth(HealthParams{DB: db})

	res := h.Check(context.Background())
	require.Equal(t, statusHealthy, res.Status)
	require.Len(t, res.Deps, 1)
}

func TestCheckWithoutDependencies(t *testing.T) {
	res := ProvideHealth(HealthParams{}).Check(context.Background())
	require.Equal(t, statusHealthy, res.Status)
	require.Empty(t, res.Deps)
}
