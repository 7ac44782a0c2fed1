package referral

import (
	"context"

	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var counterKeys = []string{"tenant_id", "address"}

type Service struct {
	db       *gorm.DB
	edges    repository.Repository[Edge]
	counters repository.Repository[FollowerCounter]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		edges:    repository.ProvideStore[Edge](p.DB),
		counters: repository.ProvideStore[FollowerCounter](p.DB),
	}
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Edge returns the edge whose invitee is address, or nil.
func (s *Service) Edge(ctx context.Context, tx *gorm.DB, tenantID, address string) (*Edge, error) {
	if address == "" {
		return nil, nil
	}
	return s.edges.WithTrx(tx).FindOne(ctx, &Edge{TenantID: tenantID, Invitee: address})
}

func (s *Service) GetEdge(ctx context.Context, tenantID, address string) (*Edge, error) {
	e, err := s.Edge(ctx, nil, tenantID, address)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errutil.NotFound("Referral relation not found.", nil)
	}
	return e, nil
}

// Link records invitee under referrer, copying the referrer's own referrer as upline.
func (s *Service) Link(ctx context.Context, tx *gorm.DB, tenantID, referrer, invitee string) (*Edge, error) {
	parent, err := s.Edge(ctx, tx, tenantID, referrer)
	if err != nil {
		return nil, err
	}

	e := &Edge{TenantID: tenantID, Invitee: invitee, Referrer: referrer}
	if parent != nil {
		e.Upline = parent.Referrer
	}
	if err := s.edges.WithTrx(tx).Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Counter returns the follower counters of address; absent rows read as zero.
func (s *Service) Counter(ctx context.Context, tx *gorm.DB, tenantID, address string) (FollowerCounter, error) {
	out := FollowerCounter{TenantID: tenantID, Address: address}
	if address == "" {
		return out, nil
	}
	c, err := s.counters.WithTrx(tx).FindOne(ctx, &FollowerCounter{TenantID: tenantID, Address: address})
	if err != nil || c == nil {
		return out, err
	}
	return *c, nil
}

func (s *Service) IncrementFollowers(ctx context.Context, tx *gorm.DB, tenantID, address string) error {
	return repository.Increment(ctx, s.conn(tx),
		&FollowerCounter{TenantID: tenantID, Address: address, FollowerCount: 1},
		counterKeys, "follower_count", 1)
}

func (s *Service) IncrementSubFollowers(ctx context.Context, tx *gorm.DB, tenantID, address string) error {
	return repository.Increment(ctx, s.conn(tx),
		&FollowerCounter{TenantID: tenantID, Address: address, SubFollowerCount: 1},
		counterKeys, "sub_follower_count", 1)
}
