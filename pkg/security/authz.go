package security

import (
	"smallbiznis-points/pkg/config"
	"smallbiznis-points/pkg/errutil"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Roles a caller can hold relative to the system and a tenant.
const (
	RoleAdmin       = "admin"
	RoleTenantAdmin = "tenant_admin"
	RoleOperator    = "operator"
)

// Operations gated by a capability.
const (
	OpSetAdmin              = "admin:set_admin"
	OpSetMaxApplyCount      = "admin:set_max_apply_count"
	OpSetMaxRecordListCount = "admin:set_max_record_list_count"
	OpSetReservedDomains    = "admin:set_reserved_domains"
	OpAddTenant             = "tenant:add"
	OpCreatePoint           = "tenant:create_point"
	OpSetActionRules        = "rule:set_action_rules"
	OpSetSelfIncreasingRule = "rule:set_self_increasing_rule"
	OpJoin                  = "points:join"
	OpAcceptReferral        = "points:accept_referral"
	OpSettle                = "points:settle"
)

const defaultModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.act == p.act
`

var defaultPolicy = [][]string{
	{RoleAdmin, OpSetAdmin},
	{RoleAdmin, OpSetMaxApplyCount},
	{RoleAdmin, OpSetMaxRecordListCount},
	{RoleAdmin, OpSetReservedDomains},
	{RoleAdmin, OpAddTenant},
	{RoleTenantAdmin, OpCreatePoint},
	{RoleTenantAdmin, OpSetActionRules},
	{RoleTenantAdmin, OpSetSelfIncreasingRule},
	{RoleOperator, OpJoin},
	{RoleOperator, OpAcceptReferral},
	{RoleOperator, OpSettle},
}

var Module = fx.Module("security",
	fx.Provide(
		ProvideAuthorizer,
		ProvideTokenVerifier,
	),
)

// Authorizer centralizes the capability check of every gated operation.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

func NewAuthorizer() (*Authorizer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	for _, rule := range defaultPolicy {
		if _, err := e.AddPolicy(rule[0], rule[1]); err != nil {
			return nil, err
		}
	}

	return &Authorizer{enforcer: e}, nil
}

// ProvideAuthorizer loads ACCESS_CONTROL.MODEL/POLICY files when configured and
// falls back to the built-in policy otherwise.
func ProvideAuthorizer(cfg *config.Config) (*Authorizer, error) {
	ac := cfg.AccessControl
	if ac.Model == "" || ac.Policy == "" {
		return NewAuthorizer()
	}

	e, err := casbin.NewEnforcer(ac.Model, ac.Policy)
	if err != nil {
		zap.L().Error("failed to load access control policy", zap.Error(err))
		return nil, err
	}
	return &Authorizer{enforcer: e}, nil
}

func ProvideTokenVerifier(cfg *config.Config) *TokenVerifier {
	return NewTokenVerifier(TokenConfig{
		SigningSecret: []byte(cfg.Auth.SigningSecret),
		Issuer:        cfg.Auth.Issuer,
		Audience:      cfg.Auth.Audience,
	})
}

// Authorize fails with Unauthorized unless one of roles may perform op.
func (a *Authorizer) Authorize(op string, roles ...string) error {
	for _, role := range roles {
		ok, err := a.enforcer.Enforce(role, op)
		if err != nil {
			return errutil.Internal("failed to evaluate access policy", err)
		}
		if ok {
			return nil
		}
	}
	return errutil.Unauthorized("No permission.", nil)
}

// Roles derives the roles held by caller. Empty identities never match.
type Roles struct {
	Admin    string
	Tenant   string
	Operator string
}

func (r Roles) Of(caller string) []string {
	if caller == "" {
		return nil
	}
	var roles []string
	if caller == r.Admin {
		roles = append(roles, RoleAdmin)
	}
	if caller == r.Tenant {
		roles = append(roles, RoleTenantAdmin)
	}
	if caller == r.Operator {
		roles = append(roles, RoleOperator)
	}
	return roles
}
