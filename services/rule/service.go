package rule

import (
	"context"

	"smallbiznis-points/pkg/config"
	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/repository"
	"smallbiznis-points/pkg/security"
	"smallbiznis-points/services/event"
	"smallbiznis-points/services/tenant"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	tenants *tenant.Service
	events  *event.Service
	cache   *RuleCache

	actions repository.Repository[ActionRule]
	self    repository.Repository[SelfIncreasingRule]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Config  *config.Config
	Tenants *tenant.Service
	Events  *event.Service
}

func NewService(p ServiceParams) *Service {
	var (
		size int
		ttl  = defaultCacheTTL
	)
	if p.Config != nil {
		size = p.Config.Points.RuleCacheSize
		ttl = p.Config.Points.RuleCacheTTL
	}

	return &Service{
		db:      p.DB,
		node:    p.Node,
		tenants: p.Tenants,
		events:  p.Events,
		cache:   NewRuleCache(size, ttl),
		actions: repository.ProvideStore[ActionRule](p.DB),
		self:    repository.ProvideStore[SelfIncreasingRule](p.DB),
	}
}

func logger(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

// SetActionRules replaces the tenant's whole action rule list.
func (s *Service) SetActionRules(ctx context.Context, tenantID string, in []ActionRuleInput) ([]*ActionRule, error) {
	zapLog := logger(ctx).With(zap.String("tenant_id", tenantID))

	var rules []*ActionRule
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.tenants.Authorize(ctx, tx, tenantID, security.OpSetActionRules); err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(in))
		snapshot := make([]event.ActionRule, 0, len(in))
		for _, r := range in {
			ok, err := s.tenants.HasPoint(ctx, tx, tenantID, r.PointName)
			if err != nil {
				return err
			}
			if !ok {
				return errutil.BadRequest("Wrong points name input.", nil)
			}
			if r.ActionName == "" {
				return errutil.BadRequest("ActionName cannot be empty.", nil)
			}
			if r.UserAmount < 0 || r.KolFraction <= 0 || r.InviterFraction <= 0 {
				return errutil.BadRequest("Points must be greater than 0.", nil)
			}
			if _, dup := seen[r.ActionName]; dup {
				return errutil.BadRequest("Duplicate action name.", nil)
			}
			seen[r.ActionName] = struct{}{}

			rules = append(rules, &ActionRule{
				ID:              s.node.Generate().String(),
				TenantID:        tenantID,
				ActionName:      r.ActionName,
				PointName:       r.PointName,
				UserAmount:      r.UserAmount,
				KolFraction:     r.KolFraction,
				InviterFraction: r.InviterFraction,
				Proportional:    r.Proportional,
			})
			snapshot = append(snapshot, event.ActionRule(r))
		}

		if err := tx.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&ActionRule{}).Error; err != nil {
			zapLog.Error("failed to clear action rules", zap.Error(err))
			return err
		}
		if err := s.actions.WithTrx(tx).BatchCreate(ctx, rules); err != nil {
			zapLog.Error("failed to store action rules", zap.Error(err))
			return err
		}

		return s.events.Record(ctx, tx, tenantID, event.ActionRulesChanged{TenantID: tenantID, Rules: snapshot})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(tenantID)
	zapLog.Info("action rules replaced", zap.Int("count", len(rules)))
	return rules, nil
}

func (s *Service) SetSelfIncreasingRule(ctx context.Context, tenantID string, in SelfIncreasingRuleInput) (*SelfIncreasingRule, error) {
	zapLog := logger(ctx).With(zap.String("tenant_id", tenantID))

	rule := &SelfIncreasingRule{
		TenantID:        tenantID,
		PointName:       in.PointName,
		UserRate:        in.UserRate,
		KolFraction:     in.KolFraction,
		InviterFraction: in.InviterFraction,
		Proportional:    in.Proportional,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.tenants.Authorize(ctx, tx, tenantID, security.OpSetSelfIncreasingRule); err != nil {
			return err
		}

		ok, err := s.tenants.HasPoint(ctx, tx, tenantID, in.PointName)
		if err != nil {
			return err
		}
		if !ok {
			return errutil.BadRequest("Wrong points name input.", nil)
		}
		if in.UserRate <= 0 || in.KolFraction <= 0 || in.InviterFraction <= 0 {
			return errutil.BadRequest("Points must be greater than 0.", nil)
		}

		if err := tx.WithContext(ctx).Save(rule).Error; err != nil {
			zapLog.Error("failed to store self-increasing rule", zap.Error(err))
			return err
		}

		return s.events.Record(ctx, tx, tenantID, event.SelfIncreasingRuleChanged{
			TenantID:        tenantID,
			PointName:       rule.PointName,
			UserRate:        rule.UserRate,
			KolFraction:     rule.KolFraction,
			InviterFraction: rule.InviterFraction,
			Proportional:    rule.Proportional,
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(tenantID)
	zapLog.Info("self-increasing rule set", zap.String("point_name", rule.PointName))
	return rule, nil
}

// Rules returns the tenant's rule set, reading through tx on a cache miss.
func (s *Service) Rules(ctx context.Context, tx *gorm.DB, tenantID string) (*RuleSet, error) {
	return s.cache.Get(tenantID, func() (*RuleSet, error) {
		actions, err := s.actions.WithTrx(tx).Find(ctx, &ActionRule{TenantID: tenantID})
		if err != nil {
			logger(ctx).Error("failed to load action rules", zap.String("tenant_id", tenantID), zap.Error(err))
			return nil, err
		}
		self, err := s.self.WithTrx(tx).FindOne(ctx, &SelfIncreasingRule{TenantID: tenantID})
		if err != nil {
			logger(ctx).Error("failed to load self-increasing rule", zap.String("tenant_id", tenantID), zap.Error(err))
			return nil, err
		}

		set := &RuleSet{Actions: make(map[string]*ActionRule, len(actions)), Self: self}
		for _, a := range actions {
			set.Actions[a.ActionName] = a
		}
		return set, nil
	})
}

// ActionRule returns the rule for action or NotFound.
func (s *Service) ActionRule(ctx context.Context, tx *gorm.DB, tenantID, action string) (*ActionRule, error) {
	set, err := s.Rules(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}
	r, ok := set.Actions[action]
	if !ok {
		return nil, errutil.NotFound("There is no corresponding points rule set for this action.", nil)
	}
	return r, nil
}

// SelfIncreasingRule returns the tenant's accrual rule or NotFound.
func (s *Service) SelfIncreasingRule(ctx context.Context, tx *gorm.DB, tenantID string) (*SelfIncreasingRule, error) {
	set, err := s.Rules(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}
	if set.Self == nil {
		return nil, errutil.NotFound("This Dapp has not yet set the rules for self-increasing points", nil)
	}
	return set.Self, nil
}

func (s *Service) GetActionRules(ctx context.Context, tenantID string) ([]*ActionRule, error) {
	if _, err := s.tenants.GetTenant(ctx, nil, tenantID); err != nil {
		return nil, err
	}
	return s.actions.Find(ctx, &ActionRule{TenantID: tenantID})
}

func (s *Service) GetSelfIncreasingRule(ctx context.Context, tenantID string) (*SelfIncreasingRule, error) {
	if _, err := s.tenants.GetTenant(ctx, nil, tenantID); err != nil {
		return nil, err
	}
	return s.SelfIncreasingRule(ctx, nil, tenantID)
}
