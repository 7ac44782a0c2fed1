package tenant

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/security"
	"smallbiznis-points/services/admin"
	"smallbiznis-points/services/event"
	"smallbiznis-points/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSequence struct {
	n   int
	err error
}

func (f *fakeSequence) NextTenantCode(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.n++
	return fmt.Sprintf("T%03d", f.n), nil
}

func (f *fakeSequence) NextBatchCode(context.Context, string) (string, error) {
	return "BST-000000-0001", nil
}

func newTestService(t *testing.T, seq *fakeSequence) (*Service, *gorm.DB) {
	t.Helper()

	models := append(Models(), admin.Models()...)
	models = append(models, event.Models()...)
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	authz, err := security.NewAuthorizer()
	require.NoError(t, err)

	adminSvc := admin.NewService(admin.ServiceParams{DB: db, Node: node, Authz: authz})
	require.NoError(t, adminSvc.Initialize(context.Background(), "root", 2, 20))

	return NewService(ServiceParams{
		DB:     db,
		Node:   node,
		Seq:    seq,
		Authz:  authz,
		Admin:  adminSvc,
		Events: event.NewService(event.ServiceParams{DB: db, Node: node}),
	}), db
}

func asCaller(caller string) context.Context {
	return security.WithCaller(context.Background(), caller)
}

var acme = AddTenantInput{
	Name:           "Acme Quest",
	Admin:          "acme-admin",
	OfficialDomain: "acme.io",
	Operator:       "acme-operator",
}

func countEvents(t *testing.T, db *gorm.DB, typ event.Type) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&event.Outbox{}).Where("type = ?", typ).Count(&n).Error)
	return n
}

func TestAddTenant(t *testing.T) {
	svc, db := newTestService(t, &fakeSequence{})

	created, err := svc.AddTenant(asCaller("root"), acme)
	require.NoError(t, err)
	require.Equal(t, "acme-quest", created.Slug)
	require.Equal(t, "T001", created.Code)
	require.True(t, created.IsOfficial("acme.io"))
	require.EqualValues(t, 1, countEvents(t, db, event.TypeTenantAdded))

	got, err := svc.GetTenant(context.Background(), nil, created.ID)
	require.NoError(t, err)
	require.Equal(t, "acme-operator", got.Operator)

	_, err = svc.AddTenant(asCaller("root"), acme)
	require.True(t, errutil.Is(err, errutil.StatusConflict))
}

func TestAddTenantRejects(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		input  func(in AddTenantInput) AddTenantInput
		status errutil.CoreStatus
	}{
		{"not admin", "mallory", func(in AddTenantInput) AddTenantInput { return in }, errutil.StatusUnauthorized},
		{"anonymous", "", func(in AddTenantInput) AddTenantInput { return in }, errutil.StatusUnauthorized},
		{"missing operator", "root", func(in AddTenantInput) AddTenantInput { in.Operator = ""; return in }, errutil.StatusBadRequest},
		{"missing domain", "root", func(in AddTenantInput) AddTenantInput { in.OfficialDomain = ""; return in }, errutil.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newTestService(t, &fakeSequence{})
			_, err := svc.AddTenant(asCaller(tt.caller), tt.input(acme))
			require.True(t, errutil.Is(err, tt.status), "got %v", err)
			require.Zero(t, countEvents(t, db, event.TypeTenantAdded))
		})
	}
}

func TestAddTenantSequenceFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeSequence{err: errors.New("redis down")})
	_, err := svc.AddTenant(asCaller("root"), acme)
	require.True(t, errutil.Is(err, errutil.StatusInternal))
}

func TestGetTenantUnknown(t *testing.T) {
	svc, _ := newTestService(t, &fakeSequence{})
	_, err := svc.GetTenant(context.Background(), nil, "missing")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestCreatePoint(t *testing.T) {
	svc, db := newTestService(t, &fakeSequence{})
	created, err := svc.AddTenant(asCaller("root"), acme)
	require.NoError(t, err)

	_, err = svc.CreatePoint(asCaller("acme-operator"), created.ID, CreatePointInput{Name: "XP", Decimals: 8})
	require.True(t, errutil.Is(err, errutil.StatusUnauthorized))

	p, err := svc.CreatePoint(asCaller("acme-admin"), created.ID, CreatePointInput{Name: "XP", Decimals: 8})
	require.NoError(t, err)
	require.Equal(t, 8, p.Decimals)

	_, err = svc.CreatePoint(asCaller("acme-admin"), created.ID, CreatePointInput{Name: "XP", Decimals: 2})
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	ok, err := svc.HasPoint(context.Background(), nil, created.ID, "XP")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasPoint(context.Background(), nil, created.ID, "")
	require.NoError(t, err)
	require.False(t, ok)

	require.EqualValues(t, 1, countEvents(t, db, event.TypePointCreated))
}

func TestCreatePointValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, &fakeSequence{})
	created, err := svc.AddTenant(asCaller("root"), acme)
	require.NoError(t, err)

	longName := make([]byte, TokenNameLength+1)
	for i := range longName {
		longName[i] = 'a'
	}

	for _, in := range []CreatePointInput{
		{Name: "", Decimals: 0},
		{Name: string(longName), Decimals: 0},
		{Name: "XP", Decimals: -1},
		{Name: "XP", Decimals: MaxDecimals + 1},
	} {
		_, err := svc.CreatePoint(asCaller("acme-admin"), created.ID, in)
		require.True(t, errutil.Is(err, errutil.StatusBadRequest), "input %+v", in)
	}

	p, err := svc.CreatePoint(asCaller("acme-admin"), created.ID, CreatePointInput{Name: string(longName[:TokenNameLength]), Decimals: MaxDecimals})
	require.NoError(t, err)
	require.Len(t, p.Name, TokenNameLength)
}

func TestCreatePointListIsAtomic(t *testing.T) {
	svc, _ := newTestService(t, &fakeSequence{})
	created, err := svc.AddTenant(asCaller("root"), acme)
	require.NoError(t, err)

	_, err = svc.CreatePointList(asCaller("acme-admin"), created.ID, nil)
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = svc.CreatePointList(asCaller("acme-admin"), created.ID, []CreatePointInput{
		{Name: "XP", Decimals: 0},
		{Name: "XP", Decimals: 0},
	})
	require.True(t, errutil.Is(err, errutil.StatusConflict))

	points, err := svc.ListPoints(context.Background(), created.ID)
	require.NoError(t, err)
	require.Empty(t, points)

	_, err = svc.CreatePointList(asCaller("acme-admin"), created.ID, []CreatePointInput{
		{Name: "XP", Decimals: 0},
		{Name: "GEM", Decimals: 2},
	})
	require.NoError(t, err)

	points, err = svc.ListPoints(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, "GEM", points[0].Name)
}

func TestAuthorizeRoles(t *testing.T) {
	svc, _ := newTestService(t, &fakeSequence{})
	created, err := svc.AddTenant(asCaller("root"), acme)
	require.NoError(t, err)

	_, err = svc.Authorize(asCaller("acme-operator"), nil, created.ID, security.OpSettle)
	require.NoError(t, err)

	_, err = svc.Authorize(asCaller("acme-admin"), nil, created.ID, security.OpSettle)
	require.True(t, errutil.Is(err, errutil.StatusUnauthorized))

	_, err = svc.Authorize(asCaller("acme-operator"), nil, "missing", security.OpSettle)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}
