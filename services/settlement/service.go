package settlement

import (
	"context"

	"smallbiznis-points/pkg/clock"
	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/security"
	"smallbiznis-points/pkg/sequence"
	"smallbiznis-points/services/admin"
	"smallbiznis-points/services/advocate"
	"smallbiznis-points/services/event"
	"smallbiznis-points/services/ledger"
	"smallbiznis-points/services/referral"
	"smallbiznis-points/services/registration"
	"smallbiznis-points/services/rule"
	"smallbiznis-points/services/tenant"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	primaryStream  = datatypes.JSON(`{"stream":"primary"}`)
	referralStream = datatypes.JSON(`{"stream":"referral"}`)
)

type Service struct {
	db    *gorm.DB
	clock clock.Clock
	seq   sequence.Generator

	admin         *admin.Service
	tenants       *tenant.Service
	rules         *rule.Service
	advocates     *advocate.Service
	registrations *registration.Service
	referrals     *referral.Service
	ledger        *ledger.Service
	events        *event.Service
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Clock clock.Clock
	Seq   sequence.Generator `optional:"true"`

	Admin         *admin.Service
	Tenants       *tenant.Service
	Rules         *rule.Service
	Advocates     *advocate.Service
	Registrations *registration.Service
	Referrals     *referral.Service
	Ledger        *ledger.Service
	Events        *event.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:            p.DB,
		clock:         p.Clock,
		seq:           p.Seq,
		admin:         p.Admin,
		tenants:       p.Tenants,
		rules:         p.Rules,
		advocates:     p.Advocates,
		registrations: p.Registrations,
		referrals:     p.Referrals,
		ledger:        p.Ledger,
		events:        p.Events,
	}
}

func logger(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

// run carries the state of one settlement transaction.
type run struct {
	ctx       context.Context
	tx        *gorm.DB
	tenant    *tenant.Tenant
	now       int64
	action    string
	reference string
	self      *rule.SelfIncreasingRule
	details   []event.PointsChangedDetail
}

func (s *Service) begin(ctx context.Context, tx *gorm.DB, t *tenant.Tenant, action string) *run {
	return &run{ctx: ctx, tx: tx, tenant: t, now: s.clock.Now().Unix(), action: action}
}

// flush records the PointsChanged event of the run when anything was credited.
func (s *Service) flush(r *run) error {
	if len(r.details) == 0 {
		return nil
	}
	return s.events.Record(r.ctx, r.tx, r.tenant.ID, event.PointsChanged{Details: r.details})
}

func (s *Service) credit(r *run, key ledger.BalanceKey, role ledger.Role, amount ledger.Amount, metadata datatypes.JSON) error {
	key.Role = role
	entry, err := s.ledger.Credit(r.ctx, r.tx, ledger.Credit{
		TenantID:   r.tenant.ID,
		Key:        key,
		ActionName: r.action,
		Amount:     amount,
		Reference:  r.reference,
		OccurredAt: r.now,
		Metadata:   metadata,
	})
	if err != nil || entry == nil {
		return err
	}

	r.details = append(r.details, event.PointsChangedDetail{
		TenantID:       r.tenant.ID,
		Receiver:       key.Address,
		Domain:         key.Domain,
		Role:           role,
		ActionName:     r.action,
		PointName:      key.PointName,
		IncreaseAmount: amount,
		Balance:        entry.BalanceAfter,
	})
	return nil
}

// ApplyForAdvocate attributes domain to invitee, sponsored by inviter (the
// caller unless given), and pays the tenant's apply rule.
func (s *Service) ApplyForAdvocate(ctx context.Context, tenantID string, in ApplyInput) (*advocate.Edge, *Result, error) {
	zapLog := logger(ctx).With(zap.String("tenant_id", tenantID), zap.String("domain", in.Domain))

	caller := security.CallerFromContext(ctx)
	inviter := caller
	if in.Inviter != nil {
		inviter = *in.Inviter
	}

	var (
		edge   *advocate.Edge
		result *Result
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		settings, err := s.admin.Require(ctx, tx)
		if err != nil {
			return err
		}
		if caller == "" {
			return errutil.Unauthorized("No permission.", nil)
		}
		if in.Invitee == "" {
			return errutil.BadRequest("Invalid invitee.", nil)
		}
		if inviter == "" {
			return errutil.BadRequest("Invalid inviter.", nil)
		}

		t, err := s.tenants.GetTenant(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		applied, err := s.advocates.ApplyCount(ctx, tx, tenantID, caller)
		if err != nil {
			return err
		}
		if applied >= int64(settings.MaxApplyCount) {
			return errutil.LimitExceeded("Apply count exceed the limit.", nil)
		}

		if err := tenant.ValidateDomain(in.Domain); err != nil {
			return err
		}
		exist, err := s.advocates.Edge(ctx, tx, in.Domain)
		if err != nil {
			return err
		}
		if exist != nil {
			return errutil.Conflict("Domain has Exist.", nil)
		}
		reserved, err := s.admin.IsReserved(ctx, tx, in.Domain)
		if err != nil {
			return err
		}
		if reserved {
			return errutil.BadRequest("This domain name is an officially reserved domain name", nil)
		}

		ar, err := s.rules.ActionRule(ctx, tx, tenantID, rule.ActionApply)
		if err != nil {
			return err
		}

		edge = &advocate.Edge{Domain: in.Domain, TenantID: tenantID, Owner: in.Invitee}
		if inviter != in.Invitee {
			edge.Sponsor = inviter
		}
		if err := s.advocates.CreateEdge(ctx, tx, edge); err != nil {
			zapLog.Error("failed to create advocate edge", zap.Error(err))
			return err
		}

		r := s.begin(ctx, tx, t, rule.ActionApply)
		_, kolAmount, inviterAmount := split(ar, nil)
		key := ledger.BalanceKey{Address: in.Invitee, Domain: in.Domain, PointName: ar.PointName}
		if err := s.credit(r, key, ledger.RoleKOL, kolAmount, nil); err != nil {
			return err
		}
		if edge.Sponsor != "" {
			key.Address = edge.Sponsor
			if err := s.credit(r, key, ledger.RoleInviter, inviterAmount, nil); err != nil {
				return err
			}
		}

		if err := s.advocates.IncrementApplyCount(ctx, tx, tenantID, caller); err != nil {
			return err
		}

		if err := s.events.Record(ctx, tx, tenantID, event.InviterApplied{
			TenantID: tenantID,
			Domain:   in.Domain,
			Invitee:  in.Invitee,
			Inviter:  inviter,
		}); err != nil {
			return err
		}
		result = &Result{Details: r.details}
		return s.flush(r)
	})
	if err != nil {
		return nil, nil, err
	}

	zapLog.Info("advocate applied", zap.String("invitee", in.Invitee), zap.String("inviter", inviter))
	return edge, result, nil
}

// Join registers registrant under domain and settles the join action.
func (s *Service) Join(ctx context.Context, tenantID string, in JoinInput) (*Result, error) {
	var result *Result
	err := s.db.Transaction(func(tx *gorm.DB) error {
		t, err := s.tenants.Authorize(ctx, tx, tenantID, security.OpJoin)
		if err != nil {
			return err
		}

		r := s.begin(ctx, tx, t, rule.ActionJoin)
		if err := s.join(r, in.Registrant, in.Domain); err != nil {
			return err
		}
		result = &Result{Details: r.details}
		return s.flush(r)
	})
	if err != nil {
		return nil, err
	}

	logger(ctx).Info("user joined",
		zap.String("tenant_id", tenantID),
		zap.String("registrant", in.Registrant),
		zap.String("domain", in.Domain),
	)
	return result, nil
}

func (s *Service) join(r *run, registrant, domain string) error {
	ctx, tx, t := r.ctx, r.tx, r.tenant

	if registrant == "" {
		return errutil.BadRequest("Invalid registrant address.", nil)
	}
	if err := tenant.ValidateDomain(domain); err != nil {
		return err
	}
	if _, err := s.registrations.Bind(ctx, tx, t.ID, registrant, domain); err != nil {
		return err
	}

	var edge *advocate.Edge
	if !t.IsOfficial(domain) {
		var err error
		if edge, err = s.advocates.Edge(ctx, tx, domain); err != nil {
			return err
		}
		if edge == nil {
			return errutil.NotFound("Not exist domain.", nil)
		}
	}

	if err := s.settle(r, registrant, nil); err != nil {
		return err
	}

	if edge != nil {
		if err := s.advocates.IncrementInvitation(ctx, tx, t.ID, edge.Owner, domain); err != nil {
			return err
		}
		if edge.Sponsor != "" {
			if err := s.advocates.IncrementTierTwo(ctx, tx, t.ID, edge.Sponsor, domain); err != nil {
				return err
			}
		}
	}

	return s.events.Record(ctx, tx, t.ID, event.Joined{TenantID: t.ID, Domain: domain, Registrant: registrant})
}

// AcceptReferral links invitee under referrer and registers it on the
// official domain, settling the accept_referral action.
func (s *Service) AcceptReferral(ctx context.Context, tenantID string, in AcceptReferralInput) (*referral.Edge, *Result, error) {
	var (
		edge   *referral.Edge
		result *Result
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		t, err := s.tenants.Authorize(ctx, tx, tenantID, security.OpAcceptReferral)
		if err != nil {
			return err
		}

		referrerReg, err := s.registrations.Lookup(ctx, tx, tenantID, in.Referrer)
		if err != nil {
			return err
		}
		if referrerReg == nil {
			return errutil.NotFound("Referrer not joined.", nil)
		}
		if in.Invitee == "" || in.Invitee == in.Referrer {
			return errutil.BadRequest("Invalid invitee.", nil)
		}

		joined, err := s.registrations.Lookup(ctx, tx, tenantID, in.Invitee)
		if err != nil {
			return err
		}
		if joined != nil {
			return errutil.Conflict("A dapp can only be registered once.", nil)
		}
		referred, err := s.referrals.Edge(ctx, tx, tenantID, in.Invitee)
		if err != nil {
			return err
		}
		if referred != nil {
			return errutil.Conflict("Invitee has already been referred.", nil)
		}

		if edge, err = s.referrals.Link(ctx, tx, tenantID, in.Referrer, in.Invitee); err != nil {
			return err
		}

		r := s.begin(ctx, tx, t, rule.ActionAcceptReferral)
		if err := s.join(r, in.Invitee, t.OfficialDomain); err != nil {
			return err
		}

		if err := s.settleCounterHolder(r, edge.Referrer); err != nil {
			return err
		}
		if err := s.referrals.IncrementFollowers(ctx, tx, tenantID, edge.Referrer); err != nil {
			return err
		}
		if edge.Upline != "" {
			if err := s.settleCounterHolder(r, edge.Upline); err != nil {
				return err
			}
			if err := s.referrals.IncrementSubFollowers(ctx, tx, tenantID, edge.Upline); err != nil {
				return err
			}
		}
		if !t.IsOfficial(referrerReg.Domain) {
			kol, err := s.advocates.Edge(ctx, tx, referrerReg.Domain)
			if err != nil {
				return err
			}
			if kol != nil {
				if err := s.settleCounterHolder(r, kol.Owner); err != nil {
					return err
				}
				if err := s.referrals.IncrementSubFollowers(ctx, tx, tenantID, kol.Owner); err != nil {
					return err
				}
			}
		}

		if err := s.events.Record(ctx, tx, tenantID, event.ReferralAccepted{
			TenantID: tenantID,
			Referrer: edge.Referrer,
			Invitee:  edge.Invitee,
			Upline:   edge.Upline,
		}); err != nil {
			return err
		}
		result = &Result{Details: r.details}
		return s.flush(r)
	})
	if err != nil {
		return nil, nil, err
	}

	logger(ctx).Info("referral accepted",
		zap.String("tenant_id", tenantID),
		zap.String("referrer", in.Referrer),
		zap.String("invitee", in.Invitee),
	)
	return edge, result, nil
}

// Settle pays action for one registered user.
func (s *Service) Settle(ctx context.Context, tenantID string, in SettleInput) (*Result, error) {
	return s.settleBatch(ctx, tenantID, in.Action, []SettleEntry{in.SettleEntry}, false)
}

// BatchSettle pays action for up to the configured MaxRecordListCount users
// atomically.
func (s *Service) BatchSettle(ctx context.Context, tenantID string, in BatchSettleInput) (*Result, error) {
	if len(in.Entries) == 0 {
		return nil, errutil.BadRequest("Invalid input.", nil)
	}
	return s.settleBatch(ctx, tenantID, in.Action, in.Entries, true)
}

func (s *Service) settleBatch(ctx context.Context, tenantID, action string, entries []SettleEntry, batch bool) (*Result, error) {
	zapLog := logger(ctx).With(zap.String("tenant_id", tenantID), zap.String("action", action))

	var result *Result
	err := s.db.Transaction(func(tx *gorm.DB) error {
		t, err := s.tenants.Authorize(ctx, tx, tenantID, security.OpSettle)
		if err != nil {
			return err
		}
		if action == "" {
			return errutil.BadRequest("Invalid input.", nil)
		}
		if batch {
			settings, err := s.admin.Require(ctx, tx)
			if err != nil {
				return err
			}
			if len(entries) > settings.MaxRecordListCount {
				return errutil.LimitExceeded("Batch size exceeds the limit.", nil)
			}
		}

		r := s.begin(ctx, tx, t, action)
		if batch && s.seq != nil {
			if r.reference, err = s.seq.NextBatchCode(ctx, tenantID); err != nil {
				zapLog.Error("failed to generate batch reference", zap.Error(err))
				return errutil.Internal("failed to settle batch", err)
			}
		}

		for _, e := range entries {
			if e.SourcePoints != nil && e.SourcePoints.Sign() < 0 {
				return errutil.BadRequest("Invalid input.", nil)
			}
			if err := s.settle(r, e.User, e.SourcePoints); err != nil {
				return err
			}
		}

		result = &Result{Reference: r.reference, Details: r.details}
		return s.flush(r)
	})
	if err != nil {
		return nil, err
	}

	zapLog.Info("action settled", zap.Int("entries", len(entries)), zap.Int("credits", len(result.Details)))
	return result, nil
}

// settle runs the instantaneous split of r.action for user, then the
// self-increasing settlement rippling from user.
func (s *Service) settle(r *run, user string, source *ledger.Amount) error {
	ctx, tx, t := r.ctx, r.tx, r.tenant

	reg, err := s.registrations.Lookup(ctx, tx, t.ID, user)
	if err != nil {
		return err
	}
	if reg == nil {
		return errutil.NotFound("User not joined.", nil)
	}

	ar, err := s.rules.ActionRule(ctx, tx, t.ID, r.action)
	if err != nil {
		return err
	}

	userAmount, kolAmount, inviterAmount := split(ar, source)
	key := ledger.BalanceKey{Address: user, Domain: reg.Domain, PointName: ar.PointName}
	if err := s.credit(r, key, ledger.RoleUser, userAmount, nil); err != nil {
		return err
	}

	if !t.IsOfficial(reg.Domain) {
		edge, err := s.advocates.Edge(ctx, tx, reg.Domain)
		if err != nil {
			return err
		}
		if edge != nil {
			key.Address = edge.Owner
			if err := s.credit(r, key, ledger.RoleKOL, kolAmount, nil); err != nil {
				return err
			}
			if edge.Sponsor != "" {
				key.Address = edge.Sponsor
				if err := s.credit(r, key, ledger.RoleInviter, inviterAmount, nil); err != nil {
					return err
				}
			}
		}
	} else if err := s.payReferralChain(r, user, ar, kolAmount, inviterAmount); err != nil {
		return err
	}

	return s.settleSelfIncreasing(r, user)
}

func (s *Service) payReferralChain(r *run, user string, ar *rule.ActionRule, kolAmount, inviterAmount ledger.Amount) error {
	ctx, tx, t := r.ctx, r.tx, r.tenant

	edge, err := s.referrals.Edge(ctx, tx, t.ID, user)
	if err != nil || edge == nil {
		return err
	}

	referrerReg, err := s.registrations.Lookup(ctx, tx, t.ID, edge.Referrer)
	if err != nil {
		return err
	}
	if referrerReg != nil {
		key := ledger.BalanceKey{Address: edge.Referrer, Domain: referrerReg.Domain, PointName: ar.PointName}
		if err := s.credit(r, key, ledger.RoleUser, kolAmount, nil); err != nil {
			return err
		}
	}

	if edge.Upline != "" {
		uplineReg, err := s.registrations.Lookup(ctx, tx, t.ID, edge.Upline)
		if err != nil {
			return err
		}
		if uplineReg != nil {
			key := ledger.BalanceKey{Address: edge.Upline, Domain: uplineReg.Domain, PointName: ar.PointName}
			if err := s.credit(r, key, ledger.RoleUser, inviterAmount, nil); err != nil {
				return err
			}
		}
	}

	if referrerReg == nil || t.IsOfficial(referrerReg.Domain) {
		return nil
	}
	kol, err := s.advocates.Edge(ctx, tx, referrerReg.Domain)
	if err != nil || kol == nil {
		return err
	}
	key := ledger.BalanceKey{Address: kol.Owner, Domain: referrerReg.Domain, PointName: ar.PointName}
	return s.credit(r, key, ledger.RoleKOL, secondOrderKOL(kolAmount, ar), nil)
}
