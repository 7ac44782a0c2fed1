package settlement

import (
	"context"

	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/validation"
	"smallbiznis-points/services/ledger"
	"smallbiznis-points/services/rule"

	"gorm.io/gorm"
)

func (s *Service) selfRule(r *run) (*rule.SelfIncreasingRule, error) {
	if r.self != nil {
		return r.self, nil
	}
	sr, err := s.rules.SelfIncreasingRule(r.ctx, r.tx, r.tenant.ID)
	if err != nil {
		return nil, err
	}
	r.self = sr
	return sr, nil
}

// settleSelfIncreasing settles user, then its referrer, the referrer's
// upline and the registered KOL of the referrer's domain.
func (s *Service) settleSelfIncreasing(r *run, user string) error {
	ctx, tx, t := r.ctx, r.tx, r.tenant

	sr, err := s.selfRule(r)
	if err != nil {
		return err
	}
	if err := s.settleMember(r, sr, user); err != nil {
		return err
	}

	edge, err := s.referrals.Edge(ctx, tx, t.ID, user)
	if err != nil || edge == nil {
		return err
	}
	if err := s.settleMember(r, sr, edge.Referrer); err != nil {
		return err
	}
	if edge.Upline != "" {
		if err := s.settleMember(r, sr, edge.Upline); err != nil {
			return err
		}
	}

	referrerReg, err := s.registrations.Lookup(ctx, tx, t.ID, edge.Referrer)
	if err != nil || referrerReg == nil || t.IsOfficial(referrerReg.Domain) {
		return err
	}
	kol, err := s.advocates.Edge(ctx, tx, referrerReg.Domain)
	if err != nil || kol == nil {
		return err
	}
	kolReg, err := s.registrations.Lookup(ctx, tx, t.ID, kol.Owner)
	if err != nil || kolReg == nil {
		return err
	}
	return s.settleMember(r, sr, kol.Owner)
}

// settleMember settles a registered address as User on its bound domain and,
// for a non-official domain, the domain's KOL and Inviter.
func (s *Service) settleMember(r *run, sr *rule.SelfIncreasingRule, address string) error {
	ctx, tx, t := r.ctx, r.tx, r.tenant

	reg, err := s.registrations.Lookup(ctx, tx, t.ID, address)
	if err != nil || reg == nil {
		return err
	}
	if err := s.settleTuple(r, sr, address, reg.Domain, ledger.RoleUser); err != nil {
		return err
	}
	if t.IsOfficial(reg.Domain) {
		return nil
	}

	edge, err := s.advocates.Edge(ctx, tx, reg.Domain)
	if err != nil || edge == nil {
		return err
	}
	if err := s.settleTuple(r, sr, edge.Owner, reg.Domain, ledger.RoleKOL); err != nil {
		return err
	}
	if edge.Sponsor == "" {
		return nil
	}
	return s.settleTuple(r, sr, edge.Sponsor, reg.Domain, ledger.RoleInviter)
}

// settleCounterHolder settles every tuple of address whose accrual reads its
// follower counters: its User tuple and each KOL tuple it owns in the tenant.
// It runs before those counters change. Tuples that never accrued stay untouched.
func (s *Service) settleCounterHolder(r *run, address string) error {
	ctx, tx, t := r.ctx, r.tx, r.tenant

	sr, err := s.selfRule(r)
	if err != nil {
		return err
	}

	reg, err := s.registrations.Lookup(ctx, tx, t.ID, address)
	if err != nil {
		return err
	}
	if reg != nil {
		if err := s.settleStarted(r, sr, address, reg.Domain, ledger.RoleUser); err != nil {
			return err
		}
	}

	owned, err := s.advocates.EdgesOwnedBy(ctx, tx, t.ID, address)
	if err != nil {
		return err
	}
	for _, e := range owned {
		if err := s.settleStarted(r, sr, address, e.Domain, ledger.RoleKOL); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) settleStarted(r *run, sr *rule.SelfIncreasingRule, address, domain string, role ledger.Role) error {
	key := ledger.CheckpointKey{TenantID: r.tenant.ID, Address: address, Domain: domain, Role: role}
	primary, referral, err := s.ledger.Checkpoints(r.ctx, r.tx, key)
	if err != nil {
		return err
	}
	if primary == nil && referral == nil {
		return nil
	}
	return s.settleTuple(r, sr, address, domain, role)
}

func (s *Service) settleTuple(r *run, sr *rule.SelfIncreasingRule, address, domain string, role ledger.Role) error {
	key := ledger.CheckpointKey{TenantID: r.tenant.ID, Address: address, Domain: domain, Role: role}

	primary, referral, err := s.ledger.Checkpoints(r.ctx, r.tx, key)
	if err != nil {
		return err
	}
	p, ref, err := s.accrued(r.ctx, r.tx, sr, key, primary, referral, r.now)
	if err != nil {
		return err
	}

	balance := ledger.BalanceKey{Address: address, Domain: domain, PointName: sr.PointName}
	if err := s.credit(r, balance, role, p, primaryStream); err != nil {
		return err
	}
	if err := s.credit(r, balance, role, ref, referralStream); err != nil {
		return err
	}
	return s.ledger.MoveCheckpoints(r.ctx, r.tx, key, r.now)
}

// accrued computes both stream deltas of key up to now. It reads only and is
// shared by settlement and the balance projection.
func (s *Service) accrued(ctx context.Context, tx *gorm.DB, sr *rule.SelfIncreasingRule, key ledger.CheckpointKey, primary, referral *int64, now int64) (ledger.Amount, ledger.Amount, error) {
	if primary == nil && referral == nil {
		return ledger.Zero(), ledger.Zero(), nil
	}

	var m multipliers
	counter, err := s.advocates.Counter(ctx, tx, key.TenantID, key.Address, key.Domain)
	if err != nil {
		return ledger.Amount{}, ledger.Amount{}, err
	}
	m.invitations, m.tierTwo = counter.InvitationCount, counter.TierTwoCount

	followers, err := s.referrals.Counter(ctx, tx, key.TenantID, key.Address)
	if err != nil {
		return ledger.Amount{}, ledger.Amount{}, err
	}
	m.followers, m.subFollowers = followers.FollowerCount, followers.SubFollowerCount

	referralFrom := referral
	if referralFrom == nil {
		referralFrom = primary
	}

	return primaryDelta(sr, key.Role, m, elapsedSince(primary, now)),
		referralDelta(sr, key.Role, m, elapsedSince(referralFrom, now)),
		nil
}

// GetBalance returns the persisted balance of key plus whatever the
// self-increasing rule has accrued since the last settlement. It never writes.
func (s *Service) GetBalance(ctx context.Context, tenantID string, key ledger.BalanceKey) (*BalanceView, error) {
	if err := validation.Struct(key, "Invalid input."); err != nil {
		return nil, err
	}
	if _, err := s.tenants.GetTenant(ctx, nil, tenantID); err != nil {
		return nil, err
	}

	settled, err := s.ledger.GetBalance(ctx, nil, key)
	if err != nil {
		return nil, err
	}
	view := &BalanceView{BalanceKey: key, TenantID: tenantID, Balance: settled, Settled: settled}

	ckey := ledger.CheckpointKey{TenantID: tenantID, Address: key.Address, Domain: key.Domain, Role: key.Role}
	primary, referral, err := s.ledger.Checkpoints(ctx, nil, ckey)
	if err != nil {
		return nil, err
	}
	for _, cp := range []*int64{primary, referral} {
		if cp != nil && *cp > view.LastUpdatedAt {
			view.LastUpdatedAt = *cp
		}
	}

	sr, err := s.rules.SelfIncreasingRule(ctx, nil, tenantID)
	if errutil.Is(err, errutil.StatusNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	if sr.PointName != key.PointName {
		return view, nil
	}

	p, ref, err := s.accrued(ctx, nil, sr, ckey, primary, referral, s.clock.Now().Unix())
	if err != nil {
		return nil, err
	}
	view.Balance = settled.Add(p).Add(ref)
	return view, nil
}
