package advocate

import (
	"context"

	"smallbiznis-points/pkg/db/option"
	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var counterKeys = []string{"tenant_id", "address", "domain"}

type Service struct {
	db *gorm.DB

	edges       repository.Repository[Edge]
	applies     repository.Repository[ApplyCounter]
	invitations repository.Repository[InvitationCounter]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		edges:       repository.ProvideStore[Edge](p.DB),
		applies:     repository.ProvideStore[ApplyCounter](p.DB),
		invitations: repository.ProvideStore[InvitationCounter](p.DB),
	}
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Edge returns the edge of domain, or nil when nobody applied for it.
func (s *Service) Edge(ctx context.Context, tx *gorm.DB, domain string) (*Edge, error) {
	if domain == "" {
		return nil, nil
	}
	return s.edges.WithTrx(tx).FindOne(ctx, &Edge{Domain: domain})
}

func (s *Service) GetEdge(ctx context.Context, domain string) (*Edge, error) {
	e, err := s.Edge(ctx, nil, domain)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errutil.NotFound("Not exist domain.", nil)
	}
	return e, nil
}

// EdgesOwnedBy lists the domains owner holds as KOL in tenantID.
func (s *Service) EdgesOwnedBy(ctx context.Context, tx *gorm.DB, tenantID, owner string) ([]*Edge, error) {
	if owner == "" {
		return nil, nil
	}
	return s.edges.WithTrx(tx).Find(ctx, &Edge{TenantID: tenantID, Owner: owner},
		option.WithSortBy(option.QuerySortBy{SortBy: "domain", OrderBy: "asc"}))
}

func (s *Service) CreateEdge(ctx context.Context, tx *gorm.DB, e *Edge) error {
	return s.edges.WithTrx(tx).Create(ctx, e)
}

func (s *Service) ApplyCount(ctx context.Context, tx *gorm.DB, tenantID, address string) (int64, error) {
	c, err := s.applies.WithTrx(tx).FindOne(ctx, &ApplyCounter{TenantID: tenantID, Address: address})
	if err != nil || c == nil {
		return 0, err
	}
	return c.Count, nil
}

func (s *Service) IncrementApplyCount(ctx context.Context, tx *gorm.DB, tenantID, address string) error {
	return repository.Increment(ctx, s.conn(tx),
		&ApplyCounter{TenantID: tenantID, Address: address, Count: 1},
		[]string{"tenant_id", "address"}, "count", 1)
}

// Counter returns the counters of address on domain; absent rows read as zero.
func (s *Service) Counter(ctx context.Context, tx *gorm.DB, tenantID, address, domain string) (InvitationCounter, error) {
	out := InvitationCounter{TenantID: tenantID, Address: address, Domain: domain}
	if address == "" {
		return out, nil
	}
	c, err := s.invitations.WithTrx(tx).FindOne(ctx, &InvitationCounter{TenantID: tenantID, Address: address, Domain: domain})
	if err != nil || c == nil {
		return out, err
	}
	return *c, nil
}

func (s *Service) IncrementInvitation(ctx context.Context, tx *gorm.DB, tenantID, owner, domain string) error {
	return repository.Increment(ctx, s.conn(tx),
		&InvitationCounter{TenantID: tenantID, Address: owner, Domain: domain, InvitationCount: 1},
		counterKeys, "invitation_count", 1)
}

func (s *Service) IncrementTierTwo(ctx context.Context, tx *gorm.DB, tenantID, sponsor, domain string) error {
	return repository.Increment(ctx, s.conn(tx),
		&InvitationCounter{TenantID: tenantID, Address: sponsor, Domain: domain, TierTwoCount: 1},
		counterKeys, "tier_two_count", 1)
}
