package rule

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smallbiznis-points/pkg/config"
	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/security"
	"smallbiznis-points/services/admin"
	"smallbiznis-points/services/event"
	"smallbiznis-points/services/tenant"
	"smallbiznis-points/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSequence struct{}

func (fakeSequence) NextTenantCode(context.Context) (string, error)        { return "T001", nil }
func (fakeSequence) NextBatchCode(context.Context, string) (string, error) { return "BST", nil }

type fixture struct {
	svc      *Service
	db       *gorm.DB
	tenantID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	models := append(Models(), tenant.Models()...)
	models = append(models, admin.Models()...)
	models = append(models, event.Models()...)
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	authz, err := security.NewAuthorizer()
	require.NoError(t, err)

	ctx := context.Background()
	adminSvc := admin.NewService(admin.ServiceParams{DB: db, Node: node, Authz: authz})
	require.NoError(t, adminSvc.Initialize(ctx, "root", 2, 20))

	events := event.NewService(event.ServiceParams{DB: db, Node: node})
	tenants := tenant.NewService(tenant.ServiceParams{DB: db, Node: node, Seq: fakeSequence{}, Authz: authz, Admin: adminSvc, Events: events})

	created, err := tenants.AddTenant(security.WithCaller(ctx, "root"), tenant.AddTenantInput{
		Name: "Acme", Admin: "acme-admin", OfficialDomain: "acme.io", Operator: "acme-operator",
	})
	require.NoError(t, err)
	_, err = tenants.CreatePoint(security.WithCaller(ctx, "acme-admin"), created.ID, tenant.CreatePointInput{Name: "XP", Decimals: 8})
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Node: node, Config: &config.Config{}, Tenants: tenants, Events: events})
	return &fixture{svc: svc, db: db, tenantID: created.ID}
}

var tenantAdmin = security.WithCaller(context.Background(), "acme-admin")

func TestSetActionRulesReplacesList(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SetActionRules(tenantAdmin, f.tenantID, []ActionRuleInput{
		{ActionName: ActionJoin, PointName: "XP", UserAmount: 100, KolFraction: 10, InviterFraction: 5},
		{ActionName: "quest", PointName: "XP", UserAmount: 0, KolFraction: 1000, InviterFraction: 100, Proportional: true},
	})
	require.NoError(t, err)

	r, err := f.svc.ActionRule(context.Background(), nil, f.tenantID, "quest")
	require.NoError(t, err)
	require.True(t, r.Proportional)

	_, err = f.svc.SetActionRules(tenantAdmin, f.tenantID, []ActionRuleInput{
		{ActionName: ActionApply, PointName: "XP", UserAmount: 1, KolFraction: 2, InviterFraction: 3},
	})
	require.NoError(t, err)

	_, err = f.svc.ActionRule(context.Background(), nil, f.tenantID, "quest")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	rules, err := f.svc.GetActionRules(context.Background(), f.tenantID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, ActionApply, rules[0].ActionName)

	var n int64
	require.NoError(t, f.db.Model(&event.Outbox{}).Where("type = ?", event.TypeActionRulesChanged).Count(&n).Error)
	require.EqualValues(t, 2, n)
}

func TestSetActionRulesValidation(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		rules   []ActionRuleInput
		status  errutil.CoreStatus
		message string
	}{
		{
			name:    "not tenant admin",
			ctx:     security.WithCaller(context.Background(), "acme-operator"),
			rules:   []ActionRuleInput{{ActionName: "a", PointName: "XP", KolFraction: 1, InviterFraction: 1}},
			status:  errutil.StatusUnauthorized,
			message: "No permission.",
		},
		{
			name:    "unknown point",
			ctx:     tenantAdmin,
			rules:   []ActionRuleInput{{ActionName: "a", PointName: "GEM", KolFraction: 1, InviterFraction: 1}},
			status:  errutil.StatusBadRequest,
			message: "Wrong points name input.",
		},
		{
			name:    "empty action",
			ctx:     tenantAdmin,
			rules:   []ActionRuleInput{{PointName: "XP", KolFraction: 1, InviterFraction: 1}},
			status:  errutil.StatusBadRequest,
			message: "ActionName cannot be empty.",
		},
		{
			name:    "zero kol",
			ctx:     tenantAdmin,
			rules:   []ActionRuleInput{{ActionName: "a", PointName: "XP", KolFraction: 0, InviterFraction: 1}},
			status:  errutil.StatusBadRequest,
			message: "Points must be greater than 0.",
		},
		{
			name:    "negative user",
			ctx:     tenantAdmin,
			rules:   []ActionRuleInput{{ActionName: "a", PointName: "XP", UserAmount: -1, KolFraction: 1, InviterFraction: 1}},
			status:  errutil.StatusBadRequest,
			message: "Points must be greater than 0.",
		},
		{
			name: "duplicate action",
			ctx:  tenantAdmin,
			rules: []ActionRuleInput{
				{ActionName: "a", PointName: "XP", KolFraction: 1, InviterFraction: 1},
				{ActionName: "a", PointName: "XP", KolFraction: 2, InviterFraction: 2},
			},
			status:  errutil.StatusBadRequest,
			message: "Duplicate action name.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.SetActionRules(tt.ctx, f.tenantID, tt.rules)
			require.True(t, errutil.Is(err, tt.status), "got %v", err)

			var be errutil.BaseError
			require.ErrorAs(t, err, &be)
			require.Equal(t, tt.message, be.Message)
		})
	}
}

func TestSelfIncreasingRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetSelfIncreasingRule(ctx, f.tenantID)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	_, err = f.svc.SetSelfIncreasingRule(tenantAdmin, f.tenantID, SelfIncreasingRuleInput{PointName: "XP", UserRate: 0, KolFraction: 1, InviterFraction: 1})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = f.svc.SetSelfIncreasingRule(tenantAdmin, f.tenantID, SelfIncreasingRuleInput{PointName: "GEM", UserRate: 1, KolFraction: 1, InviterFraction: 1})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = f.svc.SetSelfIncreasingRule(tenantAdmin, f.tenantID, SelfIncreasingRuleInput{PointName: "XP", UserRate: 10, KolFraction: 1000, InviterFraction: 100, Proportional: true})
	require.NoError(t, err)

	r, err := f.svc.GetSelfIncreasingRule(ctx, f.tenantID)
	require.NoError(t, err)
	require.EqualValues(t, 10, r.UserRate)

	_, err = f.svc.SetSelfIncreasingRule(tenantAdmin, f.tenantID, SelfIncreasingRuleInput{PointName: "XP", UserRate: 20, KolFraction: 1000, InviterFraction: 100})
	require.NoError(t, err)

	r, err = f.svc.SelfIncreasingRule(ctx, nil, f.tenantID)
	require.NoError(t, err)
	require.EqualValues(t, 20, r.UserRate)
	require.False(t, r.Proportional)
}

func TestUnknownTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetActionRules(context.Background(), "missing")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

func TestRuleCacheSingleLoad(t *testing.T) {
	c := NewRuleCache(2, 0)
	loads := 0
	load := func() (*RuleSet, error) {
		loads++
		return &RuleSet{Actions: map[string]*ActionRule{}}, nil
	}

	for i := 0; i < 3; i++ {
		_, err := c.Get("t1", load)
		require.NoError(t, err)
	}
	require.Equal(t, 1, loads)

	c.Invalidate("t1")
	_, err := c.Get("t1", load)
	require.NoError(t, err)
	require.Equal(t, 2, loads)
}
