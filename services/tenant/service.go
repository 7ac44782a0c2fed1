package tenant

import (
	"context"
	"strings"

	"smallbiznis-points/pkg/db/option"
	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/repository"
	"smallbiznis-points/pkg/security"
	"smallbiznis-points/pkg/sequence"
	"smallbiznis-points/pkg/validation"
	"smallbiznis-points/services/admin"
	"smallbiznis-points/services/event"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	seq    sequence.Generator
	authz  *security.Authorizer
	admin  *admin.Service
	events *event.Service

	repo   repository.Repository[Tenant]
	points repository.Repository[PointToken]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Seq    sequence.Generator
	Authz  *security.Authorizer
	Admin  *admin.Service
	Events *event.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		seq:    p.Seq,
		authz:  p.Authz,
		admin:  p.Admin,
		events: p.Events,
		repo:   repository.ProvideStore[Tenant](p.DB),
		points: repository.ProvideStore[PointToken](p.DB),
	}
}

func logger(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

// ValidateDomain checks the shape shared by official and advocate domains.
func ValidateDomain(domain string) error {
	if domain == "" || len(domain) > DomainNameLength {
		return errutil.BadRequest("Invalid domain.", nil)
	}
	return nil
}

func (s *Service) AddTenant(ctx context.Context, in AddTenantInput) (*Tenant, error) {
	zapLog := logger(ctx)

	if err := validation.Struct(in, "Invalid input."); err != nil {
		return nil, err
	}
	if err := ValidateDomain(in.OfficialDomain); err != nil {
		return nil, err
	}

	slugName := in.Slug
	if slugName == "" {
		slugName = slug.Make(in.Name)
	}

	var created *Tenant
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.admin.AuthorizeAdmin(ctx, tx, security.OpAddTenant); err != nil {
			return err
		}

		exist, err := s.repo.WithTrx(tx).FindOne(ctx, &Tenant{Slug: slugName})
		if err != nil {
			zapLog.Error("failed query get tenant by slug", zap.Error(err))
			return err
		}
		if exist != nil {
			zapLog.Warn("tenant already exists", zap.String("slug", slugName))
			return errutil.Conflict("Tenant already exists.", nil)
		}

		code, err := s.seq.NextTenantCode(ctx)
		if err != nil {
			zapLog.Error("failed to generate tenant code", zap.Error(err))
			return errutil.Internal("failed to create tenant", err)
		}

		created = &Tenant{
			ID:             s.node.Generate().String(),
			Code:           code,
			Slug:           slugName,
			Name:           in.Name,
			Admin:          in.Admin,
			OfficialDomain: in.OfficialDomain,
			Operator:       in.Operator,
		}
		if err := s.repo.WithTrx(tx).Create(ctx, created); err != nil {
			zapLog.Error("failed to create tenant", zap.Error(err))
			return err
		}

		return s.events.Record(ctx, tx, created.ID, event.TenantAdded{
			TenantID:       created.ID,
			Code:           created.Code,
			Slug:           created.Slug,
			Name:           created.Name,
			Admin:          created.Admin,
			OfficialDomain: created.OfficialDomain,
			Operator:       created.Operator,
		})
	})
	if err != nil {
		return nil, err
	}

	zapLog.Info("tenant added", zap.String("tenant_id", created.ID), zap.String("slug", created.Slug))
	return created, nil
}

// GetTenant loads a tenant; unknown ids are NotFound "Invalid dapp id.".
func (s *Service) GetTenant(ctx context.Context, tx *gorm.DB, tenantID string) (*Tenant, error) {
	if tenantID == "" {
		return nil, errutil.NotFound("Invalid dapp id.", nil)
	}

	t, err := s.repo.WithTrx(tx).FindOne(ctx, &Tenant{ID: tenantID})
	if err != nil {
		logger(ctx).Error("failed query get tenant by id", zap.Error(err))
		return nil, err
	}
	if t == nil {
		return nil, errutil.NotFound("Invalid dapp id.", nil)
	}
	return t, nil
}

// Authorize requires initialization, resolves the tenant and checks the
// caller holds op on it as tenant admin or operator.
func (s *Service) Authorize(ctx context.Context, tx *gorm.DB, tenantID, op string) (*Tenant, error) {
	if _, err := s.admin.Require(ctx, tx); err != nil {
		return nil, err
	}

	t, err := s.GetTenant(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}

	caller := security.CallerFromContext(ctx)
	roles := security.Roles{Tenant: t.Admin, Operator: t.Operator}.Of(caller)
	if err := s.authz.Authorize(op, roles...); err != nil {
		logger(ctx).Warn("tenant operation denied",
			zap.String("tenant_id", tenantID),
			zap.String("operation", op),
			zap.String("caller", caller),
		)
		return nil, err
	}
	return t, nil
}

func (s *Service) CreatePoint(ctx context.Context, tenantID string, in CreatePointInput) (*PointToken, error) {
	created, err := s.createPoints(ctx, tenantID, []CreatePointInput{in})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *Service) CreatePointList(ctx context.Context, tenantID string, in []CreatePointInput) ([]*PointToken, error) {
	if len(in) == 0 {
		return nil, errutil.BadRequest("Invalid input.", nil)
	}
	return s.createPoints(ctx, tenantID, in)
}

func (s *Service) createPoints(ctx context.Context, tenantID string, in []CreatePointInput) ([]*PointToken, error) {
	var created []*PointToken
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.Authorize(ctx, tx, tenantID, security.OpCreatePoint); err != nil {
			return err
		}

		for _, p := range in {
			if len(p.Name) == 0 || len(p.Name) > TokenNameLength || p.Decimals < 0 || p.Decimals > MaxDecimals {
				return errutil.BadRequest("Invalid input.", nil)
			}

			exist, err := s.points.WithTrx(tx).FindOne(ctx, &PointToken{TenantID: tenantID, Name: p.Name})
			if err != nil {
				return err
			}
			if exist != nil {
				return errutil.Conflict("Point token already exists.", nil)
			}

			token := &PointToken{
				ID:       s.node.Generate().String(),
				TenantID: tenantID,
				Name:     p.Name,
				Decimals: p.Decimals,
			}
			if err := s.points.WithTrx(tx).Create(ctx, token); err != nil {
				logger(ctx).Error("failed to create point token", zap.Error(err))
				return err
			}

			if err := s.events.Record(ctx, tx, tenantID, event.PointCreated{
				TenantID:  tenantID,
				PointName: token.Name,
				Decimals:  token.Decimals,
			}); err != nil {
				return err
			}
			created = append(created, token)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) ListPoints(ctx context.Context, tenantID string) ([]*PointToken, error) {
	if _, err := s.GetTenant(ctx, nil, tenantID); err != nil {
		return nil, err
	}
	return s.points.Find(ctx, &PointToken{TenantID: tenantID},
		option.WithSortBy(option.QuerySortBy{SortBy: "name", OrderBy: "asc"}),
	)
}

// HasPoint reports whether name is a registered point token of the tenant.
func (s *Service) HasPoint(ctx context.Context, tx *gorm.DB, tenantID, name string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, nil
	}
	p, err := s.points.WithTrx(tx).FindOne(ctx, &PointToken{TenantID: tenantID, Name: name})
	if err != nil {
		return false, err
	}
	return p != nil, nil
}
