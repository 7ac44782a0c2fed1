package admin

import (
	"context"
	"strings"

	"smallbiznis-points/pkg/db/option"
	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/repository"
	"smallbiznis-points/pkg/security"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	authz *security.Authorizer

	settings repository.Repository[Settings]
	reserved repository.Repository[ReservedDomain]
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Authz *security.Authorizer
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		authz: p.Authz,

		settings: repository.ProvideStore[Settings](p.DB),
		reserved: repository.ProvideStore[ReservedDomain](p.DB),
	}
}

func logger(ctx context.Context) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	return zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
}

// Initialize records the admin identity, the apply quota and the batch
// settlement cap. It succeeds once.
func (s *Service) Initialize(ctx context.Context, adminAddr string, maxApplyCount, maxRecordListCount int) error {
	if strings.TrimSpace(adminAddr) == "" {
		return errutil.BadRequest("Invalid input admin.", nil)
	}
	if maxRecordListCount <= 0 {
		return errutil.BadRequest("Invalid MaxRecordListCount.", nil)
	}
	if maxApplyCount <= 0 {
		return errutil.BadRequest("Invalid MaxApplyCount.", nil)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.settings.WithTrx(tx).FindOne(ctx, &Settings{ID: SettingsID})
		if err != nil {
			return err
		}
		if current != nil && current.Initialized {
			return errutil.Conflict("Already initialized.", nil)
		}

		settings := &Settings{
			ID:                 SettingsID,
			Admin:              adminAddr,
			MaxApplyCount:      maxApplyCount,
			MaxRecordListCount: maxRecordListCount,
			Initialized:        true,
		}
		if current != nil {
			return s.settings.WithTrx(tx).Update(ctx, SettingsID, settings)
		}

		if err := s.settings.WithTrx(tx).Create(ctx, settings); err != nil {
			logger(ctx).Error("failed to initialize settings", zap.Error(err))
			return err
		}
		logger(ctx).Info("points ledger initialized",
			zap.String("admin", adminAddr),
			zap.Int("max_apply_count", maxApplyCount),
			zap.Int("max_record_list_count", maxRecordListCount),
		)
		return nil
	})
}

// Require returns the settings or NotInitialized.
func (s *Service) Require(ctx context.Context, tx *gorm.DB) (*Settings, error) {
	settings, err := s.settings.WithTrx(tx).FindOne(ctx, &Settings{ID: SettingsID})
	if err != nil {
		return nil, err
	}
	if settings == nil || !settings.Initialized {
		return nil, errutil.NotInitialized("Not initialized.", nil)
	}
	return settings, nil
}

func (s *Service) authorize(ctx context.Context, tx *gorm.DB, op string) (*Settings, error) {
	settings, err := s.Require(ctx, tx)
	if err != nil {
		return nil, err
	}
	caller := security.CallerFromContext(ctx)
	if err := s.authz.Authorize(op, security.Roles{Admin: settings.Admin}.Of(caller)...); err != nil {
		logger(ctx).Warn("admin operation denied", zap.String("operation", op), zap.String("caller", caller))
		return nil, err
	}
	return settings, nil
}

// AuthorizeAdmin checks that the caller holds op as the system admin.
func (s *Service) AuthorizeAdmin(ctx context.Context, tx *gorm.DB, op string) error {
	_, err := s.authorize(ctx, tx, op)
	return err
}

func (s *Service) SetAdmin(ctx context.Context, newAdmin string) error {
	if strings.TrimSpace(newAdmin) == "" {
		return errutil.BadRequest("Invalid input.", nil)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.authorize(ctx, tx, security.OpSetAdmin); err != nil {
			return err
		}
		return s.settings.WithTrx(tx).Update(ctx, SettingsID, map[string]any{"admin": newAdmin})
	})
}

func (s *Service) SetMaxApplyCount(ctx context.Context, n int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.authorize(ctx, tx, security.OpSetMaxApplyCount); err != nil {
			return err
		}
		if n <= 0 {
			return errutil.BadRequest("Invalid input.", nil)
		}
		return s.settings.WithTrx(tx).Update(ctx, SettingsID, map[string]any{"max_apply_count": n})
	})
}

func (s *Service) SetMaxRecordListCount(ctx context.Context, n int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.authorize(ctx, tx, security.OpSetMaxRecordListCount); err != nil {
			return err
		}
		if n <= 0 {
			return errutil.BadRequest("Invalid input.", nil)
		}
		return s.settings.WithTrx(tx).Update(ctx, SettingsID, map[string]any{"max_record_list_count": n})
	})
}

// SetReservedDomains replaces the reserved list wholesale.
func (s *Service) SetReservedDomains(ctx context.Context, domains []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.authorize(ctx, tx, security.OpSetReservedDomains); err != nil {
			return err
		}
		if len(domains) == 0 {
			return errutil.BadRequest("Invalid reserved domain list count.", nil)
		}

		if err := tx.WithContext(ctx).Where("1 = 1").Delete(&ReservedDomain{}).Error; err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(domains))
		rows := make([]*ReservedDomain, 0, len(domains))
		for _, d := range domains {
			if d == "" {
				return errutil.BadRequest("Invalid input.", nil)
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			rows = append(rows, &ReservedDomain{ID: s.node.Generate().String(), Domain: d})
		}
		return s.reserved.WithTrx(tx).BatchCreate(ctx, rows)
	})
}

func (s *Service) GetSettings(ctx context.Context) (*Settings, error) {
	return s.Require(ctx, nil)
}

func (s *Service) GetReservedDomains(ctx context.Context) ([]string, error) {
	rows, err := s.reserved.Find(ctx, nil, option.WithSortBy(option.QuerySortBy{SortBy: "domain"}))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Domain)
	}
	return out, nil
}

func (s *Service) IsReserved(ctx context.Context, tx *gorm.DB, domain string) (bool, error) {
	n, err := s.reserved.WithTrx(tx).Count(ctx, &ReservedDomain{Domain: domain})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
