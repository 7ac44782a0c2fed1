package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smallbiznis-points/pkg/clock"
	"smallbiznis-points/pkg/config"
	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/security"
	"smallbiznis-points/services/admin"
	"smallbiznis-points/services/advocate"
	"smallbiznis-points/services/event"
	"smallbiznis-points/services/ledger"
	"smallbiznis-points/services/referral"
	"smallbiznis-points/services/registration"
	"smallbiznis-points/services/rule"
	"smallbiznis-points/services/tenant"
	"smallbiznis-points/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const (
	official = "acme.io"
	operator = "acme-operator"
	point    = "XP"
)

type fakeSequence struct{ batches int }

func (f *fakeSequence) NextTenantCode(context.Context) (string, error) { return "T001", nil }

func (f *fakeSequence) NextBatchCode(context.Context, string) (string, error) {
	f.batches++
	return "BST-251015-001AA", nil
}

type fixture struct {
	t        *testing.T
	db       *gorm.DB
	clock    *clock.Manual
	svc      *Service
	admin    *admin.Service
	ledger   *ledger.Service
	referral *referral.Service
	advocate *advocate.Service
	regs     *registration.Service
	tenantID string
}

func asCaller(caller string) context.Context {
	return security.WithCaller(context.Background(), caller)
}

func newFixture(t *testing.T, withSelfRule bool) *fixture {
	t.Helper()

	var models []any
	for _, m := range [][]any{
		admin.Models(), tenant.Models(), rule.Models(), advocate.Models(),
		registration.Models(), referral.Models(), ledger.Models(), event.Models(),
	} {
		models = append(models, m...)
	}
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	authz, err := security.NewAuthorizer()
	require.NoError(t, err)
	seq := &fakeSequence{}
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))

	adminSvc := admin.NewService(admin.ServiceParams{DB: db, Node: node, Authz: authz})
	events := event.NewService(event.ServiceParams{DB: db, Node: node})
	tenants := tenant.NewService(tenant.ServiceParams{DB: db, Node: node, Seq: seq, Authz: authz, Admin: adminSvc, Events: events})
	rules := rule.NewService(rule.ServiceParams{DB: db, Node: node, Config: &config.Config{}, Tenants: tenants, Events: events})

	f := &fixture{
		t:        t,
		db:       db,
		clock:    clk,
		admin:    adminSvc,
		ledger:   ledger.NewService(ledger.ServiceParams{DB: db, Node: node}),
		referral: referral.NewService(referral.ServiceParams{DB: db}),
		advocate: advocate.NewService(advocate.ServiceParams{DB: db}),
		regs:     registration.NewService(registration.ServiceParams{DB: db}),
	}
	f.svc = NewService(ServiceParams{
		DB:            db,
		Clock:         clk,
		Seq:           seq,
		Admin:         adminSvc,
		Tenants:       tenants,
		Rules:         rules,
		Advocates:     f.advocate,
		Registrations: f.regs,
		Referrals:     f.referral,
		Ledger:        f.ledger,
		Events:        events,
	})

	ctx := context.Background()
	require.NoError(t, adminSvc.Initialize(ctx, "root", 2, 20))

	created, err := tenants.AddTenant(asCaller("root"), tenant.AddTenantInput{
		Name: "Acme", Admin: "acme-admin", OfficialDomain: official, Operator: operator,
	})
	require.NoError(t, err)
	f.tenantID = created.ID

	tenantAdmin := asCaller("acme-admin")
	_, err = tenants.CreatePoint(tenantAdmin, f.tenantID, tenant.CreatePointInput{Name: point, Decimals: 8})
	require.NoError(t, err)

	_, err = rules.SetActionRules(tenantAdmin, f.tenantID, []rule.ActionRuleInput{
		{ActionName: rule.ActionApply, PointName: point, UserAmount: 0, KolFraction: 50, InviterFraction: 20},
		{ActionName: rule.ActionJoin, PointName: point, UserAmount: 0, KolFraction: 1, InviterFraction: 1},
		{ActionName: rule.ActionAcceptReferral, PointName: point, UserAmount: 0, KolFraction: 1, InviterFraction: 1},
		{ActionName: "ping", PointName: point, UserAmount: 0, KolFraction: 1, InviterFraction: 1},
		{ActionName: "trade", PointName: point, UserAmount: 10_000_000, KolFraction: 1000, InviterFraction: 100, Proportional: true},
	})
	require.NoError(t, err)

	if withSelfRule {
		_, err = rules.SetSelfIncreasingRule(tenantAdmin, f.tenantID, rule.SelfIncreasingRuleInput{
			PointName: point, UserRate: 10_000_000, KolFraction: 1000, InviterFraction: 100, Proportional: true,
		})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) apply(caller, domain, invitee string) {
	f.t.Helper()
	_, _, err := f.svc.ApplyForAdvocate(asCaller(caller), f.tenantID, ApplyInput{Domain: domain, Invitee: invitee})
	require.NoError(f.t, err)
}

func (f *fixture) join(registrant, domain string) {
	f.t.Helper()
	_, err := f.svc.Join(asCaller(operator), f.tenantID, JoinInput{Domain: domain, Registrant: registrant})
	require.NoError(f.t, err)
}

func (f *fixture) refer(referrer, invitee string) *referral.Edge {
	f.t.Helper()
	edge, _, err := f.svc.AcceptReferral(asCaller(operator), f.tenantID, AcceptReferralInput{Referrer: referrer, Invitee: invitee})
	require.NoError(f.t, err)
	return edge
}

func (f *fixture) settle(user, action string) *Result {
	f.t.Helper()
	res, err := f.svc.Settle(asCaller(operator), f.tenantID, SettleInput{Action: action, SettleEntry: SettleEntry{User: user}})
	require.NoError(f.t, err)
	return res
}

func (f *fixture) balance(address, domain string, role ledger.Role) string {
	f.t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), nil, ledger.BalanceKey{Address: address, Domain: domain, Role: role, PointName: point})
	require.NoError(f.t, err)
	return b.String()
}

func (f *fixture) projected(address, domain string, role ledger.Role) *BalanceView {
	f.t.Helper()
	v, err := f.svc.GetBalance(context.Background(), f.tenantID, ledger.BalanceKey{Address: address, Domain: domain, Role: role, PointName: point})
	require.NoError(f.t, err)
	return v
}

func findDetail(details []event.PointsChangedDetail, receiver string, role ledger.Role, amount string) bool {
	for _, d := range details {
		if d.Receiver == receiver && d.Role == role && d.IncreaseAmount.String() == amount {
			return true
		}
	}
	return false
}

func requireStatus(t *testing.T, err error, status errutil.CoreStatus, message string) {
	t.Helper()
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, status, be.Code)
	if message != "" {
		require.Equal(t, message, be.Message)
	}
}

func TestProportionalSplit(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "kol.io", "kol")
	f.join("alice", "kol.io")

	res := f.settle("alice", "trade")
	require.Len(t, res.Details, 3)
	require.True(t, findDetail(res.Details, "alice", ledger.RoleUser, "10000000"))
	require.True(t, findDetail(res.Details, "kol", ledger.RoleKOL, "1000000"))
	require.True(t, findDetail(res.Details, "boss", ledger.RoleInviter, "100000"))
}

func TestSourcePointsOverrideProportionalAmount(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "kol.io", "kol")
	f.join("alice", "kol.io")

	source := ledger.NewAmount(20_000)
	res, err := f.svc.Settle(asCaller(operator), f.tenantID, SettleInput{
		Action:      "trade",
		SettleEntry: SettleEntry{User: "alice", SourcePoints: &source},
	})
	require.NoError(t, err)
	require.True(t, findDetail(res.Details, "alice", ledger.RoleUser, "20000"))
	require.True(t, findDetail(res.Details, "kol", ledger.RoleKOL, "2000"))
	require.True(t, findDetail(res.Details, "boss", ledger.RoleInviter, "200"))

	negative := ledger.NewAmount(-1)
	_, err = f.svc.Settle(asCaller(operator), f.tenantID, SettleInput{
		Action:      "trade",
		SettleEntry: SettleEntry{User: "alice", SourcePoints: &negative},
	})
	requireStatus(t, err, errutil.StatusBadRequest, "Invalid input.")
}

func TestAbsoluteSplitOnAdvocateDomain(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "kol.io", "kol")
	require.Equal(t, "50", f.balance("kol", "kol.io", ledger.RoleKOL))
	require.Equal(t, "20", f.balance("boss", "kol.io", ledger.RoleInviter))

	f.join("alice", "kol.io")
	require.Equal(t, "51", f.balance("kol", "kol.io", ledger.RoleKOL))
	require.Equal(t, "21", f.balance("boss", "kol.io", ledger.RoleInviter))
}

func TestSelfIncreasingRate(t *testing.T) {
	f := newFixture(t, true)
	f.join("alice", official)
	require.Equal(t, "0", f.balance("alice", official, ledger.RoleUser))

	f.clock.Advance(5 * time.Second)
	require.Equal(t, "50000000", f.projected("alice", official, ledger.RoleUser).Balance.String())

	res := f.settle("alice", "ping")
	require.True(t, findDetail(res.Details, "alice", ledger.RoleUser, "50000000"))
	require.Equal(t, "50000000", f.balance("alice", official, ledger.RoleUser))
}

func TestAccrualIsLinearInElapsedTime(t *testing.T) {
	f := newFixture(t, true)
	f.join("alice", official)
	f.join("bob", official)

	f.clock.Advance(3 * time.Second)
	f.settle("alice", "ping")
	f.clock.Advance(4 * time.Second)
	f.settle("alice", "ping")
	f.settle("bob", "ping")

	require.Equal(t, "70000000", f.balance("alice", official, ledger.RoleUser))
	require.Equal(t, f.balance("alice", official, ledger.RoleUser), f.balance("bob", official, ledger.RoleUser))
}

func TestRepeatedSettleAtSameInstantCreditsNothing(t *testing.T) {
	f := newFixture(t, true)
	f.join("alice", official)
	f.clock.Advance(2 * time.Second)

	f.settle("alice", "ping")
	res := f.settle("alice", "ping")
	require.Empty(t, res.Details)
	require.Equal(t, "20000000", f.balance("alice", official, ledger.RoleUser))
}

func TestGetBalanceIsIdempotentAndReadOnly(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "kol.io", "kol")
	f.join("alice", "kol.io")
	f.clock.Advance(5 * time.Second)

	ckey := ledger.CheckpointKey{TenantID: f.tenantID, Address: "kol", Domain: "kol.io", Role: ledger.RoleKOL}
	p1, r1, err := f.ledger.Checkpoints(context.Background(), nil, ckey)
	require.NoError(t, err)

	first := f.projected("kol", "kol.io", ledger.RoleKOL)
	second := f.projected("kol", "kol.io", ledger.RoleKOL)
	require.Equal(t, first.Balance.String(), second.Balance.String())
	require.Equal(t, first.LastUpdatedAt, second.LastUpdatedAt)
	require.Equal(t, "5000051", first.Balance.String())
	require.Equal(t, "51", first.Settled.String())
	require.Equal(t, int64(1_700_000_000), first.LastUpdatedAt)

	p2, r2, err := f.ledger.Checkpoints(context.Background(), nil, ckey)
	require.NoError(t, err)
	require.Equal(t, *p1, *p2)
	require.Equal(t, *r1, *r2)

	require.Equal(t, "500021", f.projected("boss", "kol.io", ledger.RoleInviter).Balance.String())
	require.Equal(t, "51", f.balance("kol", "kol.io", ledger.RoleKOL))
}

func TestProjectionMatchesSettlement(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "kol.io", "kol")
	f.join("alice", "kol.io")
	f.refer("alice", "bob")
	f.clock.Advance(9 * time.Second)

	keys := []struct {
		address, domain string
		role            ledger.Role
	}{
		{"alice", "kol.io", ledger.RoleUser},
		{"kol", "kol.io", ledger.RoleKOL},
		{"boss", "kol.io", ledger.RoleInviter},
	}

	projected := make([]string, len(keys))
	for i, k := range keys {
		projected[i] = f.projected(k.address, k.domain, k.role).Balance.String()
	}

	f.settle("alice", "ping")
	for i, k := range keys {
		v := f.projected(k.address, k.domain, k.role)
		require.Equal(t, v.Settled.String(), v.Balance.String(), k.address)
		// ping pays 1 to the KOL and the Inviter of a non-official domain.
		want := ledger.Zero()
		if k.role != ledger.RoleUser {
			want = ledger.NewAmount(1)
		}
		got, err := ledger.ParseAmount(projected[i])
		require.NoError(t, err)
		require.Equal(t, got.Add(want).String(), v.Balance.String(), k.address)
	}
}

func TestGetBalanceForOtherPointIgnoresAccrual(t *testing.T) {
	f := newFixture(t, true)
	f.join("alice", official)
	f.clock.Advance(5 * time.Second)

	v, err := f.svc.GetBalance(context.Background(), f.tenantID, ledger.BalanceKey{Address: "alice", Domain: official, Role: ledger.RoleUser, PointName: "GEM"})
	require.NoError(t, err)
	require.Equal(t, "0", v.Balance.String())

	_, err = f.svc.GetBalance(context.Background(), f.tenantID, ledger.BalanceKey{Address: "alice", Domain: official, Role: "admin", PointName: point})
	requireStatus(t, err, errutil.StatusBadRequest, "Invalid input.")
}

func TestGetBalanceReportsCheckpointWithoutSelfIncreasingRule(t *testing.T) {
	f := newFixture(t, false)
	key := ledger.CheckpointKey{TenantID: f.tenantID, Address: "alice", Domain: official, Role: ledger.RoleUser}
	require.NoError(t, f.ledger.MoveCheckpoints(context.Background(), nil, key, 1_700_000_042))

	v := f.projected("alice", official, ledger.RoleUser)
	require.Equal(t, "0", v.Balance.String())
	require.EqualValues(t, 1_700_000_042, v.LastUpdatedAt)
}

func TestJoinIsWriteOnce(t *testing.T) {
	f := newFixture(t, true)
	f.join("alice", official)

	_, err := f.svc.Join(asCaller(operator), f.tenantID, JoinInput{Domain: official, Registrant: "alice"})
	requireStatus(t, err, errutil.StatusConflict, "A dapp can only be registered once.")

	_, _, err = f.svc.AcceptReferral(asCaller(operator), f.tenantID, AcceptReferralInput{Referrer: "alice", Invitee: "alice"})
	requireStatus(t, err, errutil.StatusBadRequest, "Invalid invitee.")

	f.join("bob", official)
	_, _, err = f.svc.AcceptReferral(asCaller(operator), f.tenantID, AcceptReferralInput{Referrer: "alice", Invitee: "bob"})
	requireStatus(t, err, errutil.StatusConflict, "")
}

func TestJoinFailures(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.Join(asCaller("mallory"), f.tenantID, JoinInput{Domain: official, Registrant: "alice"})
	requireStatus(t, err, errutil.StatusUnauthorized, "No permission.")

	_, err = f.svc.Join(asCaller(operator), f.tenantID, JoinInput{Domain: official})
	requireStatus(t, err, errutil.StatusBadRequest, "")

	_, err = f.svc.Join(asCaller(operator), f.tenantID, JoinInput{Domain: "nowhere.io", Registrant: "alice"})
	requireStatus(t, err, errutil.StatusNotFound, "Not exist domain.")

	_, err = f.svc.Join(asCaller(operator), "missing", JoinInput{Domain: official, Registrant: "alice"})
	requireStatus(t, err, errutil.StatusNotFound, "Invalid dapp id.")

	reg, err := f.regs.Lookup(context.Background(), nil, f.tenantID, "alice")
	require.NoError(t, err)
	require.Nil(t, reg)
}

func TestJoinWithoutSelfIncreasingRuleRollsBack(t *testing.T) {
	f := newFixture(t, false)
	f.apply("boss", "kol.io", "kol")

	_, err := f.svc.Join(asCaller(operator), f.tenantID, JoinInput{Domain: "kol.io", Registrant: "alice"})
	requireStatus(t, err, errutil.StatusNotFound, "This Dapp has not yet set the rules for self-increasing points")

	reg, err := f.regs.Lookup(context.Background(), nil, f.tenantID, "alice")
	require.NoError(t, err)
	require.Nil(t, reg)
	require.Equal(t, "50", f.balance("kol", "kol.io", ledger.RoleKOL))

	c, err := f.advocate.Counter(context.Background(), nil, f.tenantID, "kol", "kol.io")
	require.NoError(t, err)
	require.Zero(t, c.InvitationCount)
}

func TestJoinIncrementsInvitationCounters(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "kol.io", "kol")
	f.join("alice", "kol.io")
	f.join("bob", "kol.io")
	f.join("carol", official)

	kol, err := f.advocate.Counter(context.Background(), nil, f.tenantID, "kol", "kol.io")
	require.NoError(t, err)
	require.EqualValues(t, 2, kol.InvitationCount)

	boss, err := f.advocate.Counter(context.Background(), nil, f.tenantID, "boss", "kol.io")
	require.NoError(t, err)
	require.EqualValues(t, 2, boss.TierTwoCount)
}

func TestApplyForAdvocateQuota(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "a.io", "kol-a")
	f.apply("boss", "b.io", "kol-b")

	_, _, err := f.svc.ApplyForAdvocate(asCaller("boss"), f.tenantID, ApplyInput{Domain: "c.io", Invitee: "kol-c"})
	requireStatus(t, err, errutil.StatusLimitExceeded, "Apply count exceed the limit.")

	f.apply("other", "c.io", "kol-c")
}

func TestApplyForAdvocateFailures(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.admin.SetReservedDomains(asCaller("root"), []string{"reserved.io"}))
	f.apply("boss", "kol.io", "kol")
	empty := ""

	tests := []struct {
		name    string
		caller  string
		tenant  string
		input   ApplyInput
		status  errutil.CoreStatus
		message string
	}{
		{"anonymous", "", f.tenantID, ApplyInput{Domain: "x.io", Invitee: "kol"}, errutil.StatusUnauthorized, "No permission."},
		{"missing invitee", "boss", f.tenantID, ApplyInput{Domain: "x.io"}, errutil.StatusBadRequest, "Invalid invitee."},
		{"empty inviter", "boss", f.tenantID, ApplyInput{Domain: "x.io", Invitee: "kol", Inviter: &empty}, errutil.StatusBadRequest, "Invalid inviter."},
		{"unknown tenant", "boss", "missing", ApplyInput{Domain: "x.io", Invitee: "kol"}, errutil.StatusNotFound, "Invalid dapp id."},
		{"empty domain", "boss", f.tenantID, ApplyInput{Invitee: "kol"}, errutil.StatusBadRequest, "Invalid domain."},
		{"taken domain", "boss", f.tenantID, ApplyInput{Domain: "kol.io", Invitee: "kol"}, errutil.StatusConflict, "Domain has Exist."},
		{"reserved domain", "boss", f.tenantID, ApplyInput{Domain: "reserved.io", Invitee: "kol"}, errutil.StatusBadRequest, "This domain name is an officially reserved domain name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.ApplyForAdvocate(asCaller(tt.caller), tt.tenant, tt.input)
			requireStatus(t, err, tt.status, tt.message)
		})
	}

	n, err := f.advocate.ApplyCount(context.Background(), nil, f.tenantID, "boss")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestApplyForSelfHasNoSponsor(t *testing.T) {
	f := newFixture(t, true)

	edge, res, err := f.svc.ApplyForAdvocate(asCaller("kol"), f.tenantID, ApplyInput{Domain: "kol.io", Invitee: "kol"})
	require.NoError(t, err)
	require.Empty(t, edge.Sponsor)
	require.Len(t, res.Details, 1)
	require.True(t, findDetail(res.Details, "kol", ledger.RoleKOL, "50"))

	sponsored := "boss"
	edge, res, err = f.svc.ApplyForAdvocate(asCaller("kol"), f.tenantID, ApplyInput{Domain: "kol2.io", Invitee: "kol2", Inviter: &sponsored})
	require.NoError(t, err)
	require.Equal(t, "boss", edge.Sponsor)
	require.True(t, findDetail(res.Details, "boss", ledger.RoleInviter, "20"))

	n, err := f.advocate.ApplyCount(context.Background(), nil, f.tenantID, "kol")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestApplyWithoutRule(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.rules.SetActionRules(asCaller("acme-admin"), f.tenantID, []rule.ActionRuleInput{
		{ActionName: rule.ActionJoin, PointName: point, KolFraction: 1, InviterFraction: 1},
	})
	require.NoError(t, err)

	_, _, err = f.svc.ApplyForAdvocate(asCaller("boss"), f.tenantID, ApplyInput{Domain: "kol.io", Invitee: "kol"})
	requireStatus(t, err, errutil.StatusNotFound, "")

	_, err = f.advocate.GetEdge(context.Background(), "kol.io")
	requireStatus(t, err, errutil.StatusNotFound, "")
}

func TestReferralFlattening(t *testing.T) {
	f := newFixture(t, true)
	f.join("Z", official)
	f.refer("Z", "A")
	f.refer("A", "B")
	edge := f.refer("B", "C")
	require.Equal(t, "B", edge.Referrer)
	require.Equal(t, "A", edge.Upline)

	zBefore := f.balance("Z", official, ledger.RoleUser)
	f.clock.Advance(10 * time.Second)
	res := f.settle("C", "ping")

	// A: followers=1 (B), subFollowers=1 (C).
	require.True(t, findDetail(res.Details, "A", ledger.RoleUser, "11000000"))
	require.True(t, findDetail(res.Details, "A", ledger.RoleUser, "100000000"))
	for _, d := range res.Details {
		require.NotEqual(t, "Z", d.Receiver)
	}
	require.Equal(t, zBefore, f.balance("Z", official, ledger.RoleUser))

	counters, err := f.referral.Counter(context.Background(), nil, f.tenantID, "A")
	require.NoError(t, err)
	require.EqualValues(t, 1, counters.FollowerCount)
	require.EqualValues(t, 1, counters.SubFollowerCount)
}

func TestAcceptReferralPaysChain(t *testing.T) {
	f := newFixture(t, true)
	f.join("A", official)
	f.refer("A", "B")

	_, res, err := f.svc.AcceptReferral(asCaller(operator), f.tenantID, AcceptReferralInput{Referrer: "B", Invitee: "C"})
	require.NoError(t, err)
	require.True(t, findDetail(res.Details, "B", ledger.RoleUser, "1"))
	require.True(t, findDetail(res.Details, "A", ledger.RoleUser, "1"))

	reg, err := f.regs.Lookup(context.Background(), nil, f.tenantID, "C")
	require.NoError(t, err)
	require.Equal(t, official, reg.Domain)
}

func TestAcceptReferralFailures(t *testing.T) {
	f := newFixture(t, true)
	f.join("A", official)

	_, _, err := f.svc.AcceptReferral(asCaller("mallory"), f.tenantID, AcceptReferralInput{Referrer: "A", Invitee: "B"})
	requireStatus(t, err, errutil.StatusUnauthorized, "No permission.")

	_, _, err = f.svc.AcceptReferral(asCaller(operator), f.tenantID, AcceptReferralInput{Referrer: "nobody", Invitee: "B"})
	requireStatus(t, err, errutil.StatusNotFound, "Referrer not joined.")

	_, _, err = f.svc.AcceptReferral(asCaller(operator), f.tenantID, AcceptReferralInput{Referrer: "A"})
	requireStatus(t, err, errutil.StatusBadRequest, "Invalid invitee.")

	f.refer("A", "B")
	_, _, err = f.svc.AcceptReferral(asCaller(operator), f.tenantID, AcceptReferralInput{Referrer: "A", Invitee: "B"})
	requireStatus(t, err, errutil.StatusConflict, "")
}

func TestSecondOrderKOLShare(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "kol.io", "kol")
	f.join("alice", "kol.io")
	f.refer("alice", "bob")

	kolSubs, err := f.referral.Counter(context.Background(), nil, f.tenantID, "kol")
	require.NoError(t, err)
	require.EqualValues(t, 1, kolSubs.SubFollowerCount)

	res := f.settle("bob", "trade")
	require.Len(t, res.Details, 3)
	require.True(t, findDetail(res.Details, "bob", ledger.RoleUser, "10000000"))
	require.True(t, findDetail(res.Details, "alice", ledger.RoleUser, "1000000"))
	require.True(t, findDetail(res.Details, "kol", ledger.RoleKOL, "100000"))
}

func TestSubFollowerChangeSettlesOwnedKOLFirst(t *testing.T) {
	f := newFixture(t, true)
	f.apply("U", "u.io", "U")
	f.join("x", "u.io")
	f.join("U", official)
	f.refer("U", "B")

	f.clock.Advance(100 * time.Second)
	before := f.projected("U", "u.io", ledger.RoleKOL).Balance.String()
	require.Equal(t, "100000051", before)

	// U becomes C's upline: its KOL tuple on u.io is paid up to now first.
	f.refer("B", "C")
	require.Equal(t, before, f.projected("U", "u.io", ledger.RoleKOL).Balance.String())
	require.Equal(t, before, f.balance("U", "u.io", ledger.RoleKOL))

	// From here on the new sub follower feeds the referral stream.
	f.clock.Advance(10 * time.Second)
	require.Equal(t, "111000051", f.projected("U", "u.io", ledger.RoleKOL).Balance.String())
}

func TestSettleFailures(t *testing.T) {
	f := newFixture(t, true)
	f.join("alice", official)

	_, err := f.svc.Settle(asCaller("acme-admin"), f.tenantID, SettleInput{Action: "ping", SettleEntry: SettleEntry{User: "alice"}})
	requireStatus(t, err, errutil.StatusUnauthorized, "No permission.")

	_, err = f.svc.Settle(asCaller(operator), f.tenantID, SettleInput{Action: "ping", SettleEntry: SettleEntry{User: "nobody"}})
	requireStatus(t, err, errutil.StatusNotFound, "User not joined.")

	_, err = f.svc.Settle(asCaller(operator), f.tenantID, SettleInput{Action: "unknown", SettleEntry: SettleEntry{User: "alice"}})
	requireStatus(t, err, errutil.StatusNotFound, "There is no corresponding points rule set for this action.")
}

func TestBatchSettle(t *testing.T) {
	f := newFixture(t, true)
	f.join("alice", official)
	f.join("bob", official)

	_, err := f.svc.BatchSettle(asCaller(operator), f.tenantID, BatchSettleInput{Action: "trade"})
	requireStatus(t, err, errutil.StatusBadRequest, "Invalid input.")

	tooMany := make([]SettleEntry, 21)
	for i := range tooMany {
		tooMany[i] = SettleEntry{User: "alice"}
	}
	_, err = f.svc.BatchSettle(asCaller(operator), f.tenantID, BatchSettleInput{Action: "trade", Entries: tooMany})
	requireStatus(t, err, errutil.StatusLimitExceeded, "Batch size exceeds the limit.")

	_, err = f.svc.BatchSettle(asCaller(operator), f.tenantID, BatchSettleInput{Action: "trade", Entries: []SettleEntry{
		{User: "alice"}, {User: "nobody"},
	}})
	requireStatus(t, err, errutil.StatusNotFound, "User not joined.")
	require.Equal(t, "0", f.balance("alice", official, ledger.RoleUser))

	res, err := f.svc.BatchSettle(asCaller(operator), f.tenantID, BatchSettleInput{Action: "trade", Entries: []SettleEntry{
		{User: "alice"}, {User: "bob"},
	}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Reference)
	require.Len(t, res.Details, 2)
	require.Equal(t, "10000000", f.balance("alice", official, ledger.RoleUser))
	require.Equal(t, "10000000", f.balance("bob", official, ledger.RoleUser))
}

func TestBatchSettleFollowsMaxRecordListCount(t *testing.T) {
	f := newFixture(t, true)
	f.join("alice", official)
	f.join("bob", official)
	entries := []SettleEntry{{User: "alice"}, {User: "bob"}}

	require.NoError(t, f.admin.SetMaxRecordListCount(asCaller("root"), 1))
	_, err := f.svc.BatchSettle(asCaller(operator), f.tenantID, BatchSettleInput{Action: "trade", Entries: entries})
	requireStatus(t, err, errutil.StatusLimitExceeded, "Batch size exceeds the limit.")
	require.Equal(t, "0", f.balance("alice", official, ledger.RoleUser))

	// Single settlement is not bounded by the batch cap.
	f.settle("alice", "trade")

	require.NoError(t, f.admin.SetMaxRecordListCount(asCaller("root"), 2))
	_, err = f.svc.BatchSettle(asCaller(operator), f.tenantID, BatchSettleInput{Action: "trade", Entries: entries})
	require.NoError(t, err)
	require.Equal(t, "20000000", f.balance("alice", official, ledger.RoleUser))
	require.Equal(t, "10000000", f.balance("bob", official, ledger.RoleUser))
}

func TestBalancesNeverDecrease(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "kol.io", "kol")
	f.join("alice", "kol.io")
	f.refer("alice", "bob")
	f.refer("bob", "carol")
	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Duration(i+1) * time.Second)
		f.settle("carol", "trade")
		f.settle("alice", "ping")
	}

	var entries []ledger.LedgerEntry
	require.NoError(t, f.db.Order("sequence asc").Find(&entries).Error)
	require.NotEmpty(t, entries)

	last := map[ledger.BalanceKey]ledger.Amount{}
	for _, e := range entries {
		require.Equal(t, 1, e.Amount.Sign())
		key := ledger.BalanceKey{Address: e.Address, Domain: e.Domain, Role: e.Role, PointName: e.PointName}
		if prev, ok := last[key]; ok {
			require.Equal(t, 1, e.BalanceAfter.Cmp(prev))
		}
		last[key] = e.BalanceAfter

		n, err := f.ledger.VerifyChain(context.Background(), key)
		require.NoError(t, err)
		require.Positive(t, n)
	}
}

func TestEventsAreRecorded(t *testing.T) {
	f := newFixture(t, true)
	f.apply("boss", "kol.io", "kol")
	f.join("alice", "kol.io")
	f.refer("alice", "bob")

	count := func(typ event.Type) int64 {
		var n int64
		require.NoError(t, f.db.Model(&event.Outbox{}).Where("type = ?", typ).Count(&n).Error)
		return n
	}
	require.EqualValues(t, 1, count(event.TypeInviterApplied))
	require.EqualValues(t, 2, count(event.TypeJoined))
	require.EqualValues(t, 1, count(event.TypeReferralAccepted))
	require.EqualValues(t, 3, count(event.TypePointsChanged))
}
