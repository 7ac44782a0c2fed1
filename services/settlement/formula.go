package settlement

import (
	"smallbiznis-points/services/ledger"
	"smallbiznis-points/services/rule"
)

// split computes the instantaneous award of an action rule. In proportional
// mode the fractions are basis points of the user amount, which is taken
// from source when given. Otherwise they are absolute amounts.
func split(r *rule.ActionRule, source *ledger.Amount) (user, kol, inviter ledger.Amount) {
	if !r.Proportional {
		return ledger.NewAmount(r.UserAmount), ledger.NewAmount(r.KolFraction), ledger.NewAmount(r.InviterFraction)
	}

	user = ledger.NewAmount(r.UserAmount)
	if source != nil {
		user = *source
	}
	kol = user.MulInt64(r.KolFraction).QuoInt64(rule.Denominator)
	inviter = user.MulInt64(r.InviterFraction).QuoInt64(rule.Denominator)
	return user, kol, inviter
}

// secondOrderKOL is the share of the KOL whose domain a paid referrer joined through.
func secondOrderKOL(kol ledger.Amount, r *rule.ActionRule) ledger.Amount {
	return kol.MulInt64(r.KolFraction).QuoInt64(rule.Denominator)
}

func primaryRate(r *rule.SelfIncreasingRule, role ledger.Role) ledger.Amount {
	rate := ledger.NewAmount(r.UserRate)
	switch role {
	case ledger.RoleKOL:
		if r.Proportional {
			return rate.MulInt64(r.KolFraction).QuoInt64(rule.Denominator)
		}
		return ledger.NewAmount(r.KolFraction)
	case ledger.RoleInviter:
		if r.Proportional {
			return rate.MulInt64(r.InviterFraction).QuoInt64(rule.Denominator)
		}
		return ledger.NewAmount(r.InviterFraction)
	default:
		return rate
	}
}

// multipliers feeding both accrual streams of one tuple.
type multipliers struct {
	invitations  int64
	tierTwo      int64
	followers    int64
	subFollowers int64
}

func primaryDelta(r *rule.SelfIncreasingRule, role ledger.Role, m multipliers, elapsed int64) ledger.Amount {
	rate := primaryRate(r, role)
	switch role {
	case ledger.RoleKOL:
		return rate.MulInt64(m.invitations).MulInt64(elapsed)
	case ledger.RoleInviter:
		return rate.MulInt64(m.tierTwo).MulInt64(elapsed)
	default:
		return rate.MulInt64(elapsed)
	}
}

func referralDelta(r *rule.SelfIncreasingRule, role ledger.Role, m multipliers, elapsed int64) ledger.Amount {
	rate := ledger.NewAmount(r.UserRate)
	kolRate := rate.MulInt64(r.KolFraction).QuoInt64(rule.Denominator)

	switch role {
	case ledger.RoleKOL:
		return kolRate.MulInt64(m.subFollowers).MulInt64(r.KolFraction).QuoInt64(rule.Denominator).MulInt64(elapsed)
	case ledger.RoleUser:
		inviterRate := rate.MulInt64(r.InviterFraction).QuoInt64(rule.Denominator)
		return kolRate.MulInt64(m.followers).MulInt64(elapsed).
			Add(inviterRate.MulInt64(m.subFollowers).MulInt64(elapsed))
	default:
		return ledger.Zero()
	}
}

// elapsedSince returns now-from, or zero for an absent or future checkpoint.
func elapsedSince(from *int64, now int64) int64 {
	if from == nil || now <= *from {
		return 0
	}
	return now - *from
}
