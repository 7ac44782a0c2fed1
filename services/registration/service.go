package registration

import (
	"context"

	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/repository"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Service struct {
	repo repository.Repository[Registration]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{repo: repository.ProvideStore[Registration](p.DB)}
}

// Lookup returns the registration of address, or nil.
func (s *Service) Lookup(ctx context.Context, tx *gorm.DB, tenantID, address string) (*Registration, error) {
	if address == "" {
		return nil, nil
	}
	return s.repo.WithTrx(tx).FindOne(ctx, &Registration{TenantID: tenantID, Address: address})
}

func (s *Service) Get(ctx context.Context, tenantID, address string) (*Registration, error) {
	r, err := s.Lookup(ctx, nil, tenantID, address)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errutil.NotFound("User not joined.", nil)
	}
	return r, nil
}

// Bind registers address under domain; an existing binding is never replaced.
func (s *Service) Bind(ctx context.Context, tx *gorm.DB, tenantID, address, domain string) (*Registration, error) {
	exist, err := s.Lookup(ctx, tx, tenantID, address)
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, errutil.Conflict("A dapp can only be registered once.", nil)
	}

	r := &Registration{TenantID: tenantID, Address: address, Domain: domain}
	if err := s.repo.WithTrx(tx).Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
