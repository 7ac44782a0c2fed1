package bootstrap

import (
	"context"

	"smallbiznis-points/pkg/config"
	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/services/admin"
	"smallbiznis-points/services/advocate"
	"smallbiznis-points/services/event"
	"smallbiznis-points/services/ledger"
	"smallbiznis-points/services/referral"
	"smallbiznis-points/services/registration"
	"smallbiznis-points/services/rule"
	"smallbiznis-points/services/tenant"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	config *config.Config
	admin  *admin.Service
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
	Admin  *admin.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		config: p.Config,
		admin:  p.Admin,
	}
}

// Models lists every table of the points ledger.
func Models() []any {
	var models []any
	for _, m := range [][]any{
		admin.Models(),
		tenant.Models(),
		rule.Models(),
		advocate.Models(),
		registration.Models(),
		referral.Models(),
		ledger.Models(),
		event.Models(),
	} {
		models = append(models, m...)
	}
	return models
}

// Migrate creates or updates every table.
func (s *Service) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		zap.L().Error("[bootstrap] failed to migrate", zap.Error(err))
		return err
	}
	zap.L().Info("[bootstrap] schema migrated", zap.Int("tables", len(Models())))
	return nil
}

// Initialize seeds the admin settings from POINTS.ADMIN once. An already
// initialized ledger is left untouched.
func (s *Service) Initialize(ctx context.Context) error {
	points := s.config.Points
	if points.Admin == "" {
		zap.L().Warn("[bootstrap] POINTS.ADMIN not set, skipping initialization")
		return nil
	}

	err := s.admin.Initialize(ctx, points.Admin, points.MaxApplyCount, points.MaxRecordListCount)
	switch {
	case err == nil:
		zap.L().Info("[bootstrap] ledger initialized", zap.String("admin", points.Admin))
		return nil
	case errutil.Is(err, errutil.StatusConflict):
		zap.L().Info("[bootstrap] ledger already initialized")
		return nil
	default:
		zap.L().Error("[bootstrap] failed to initialize", zap.Error(err))
		return err
	}
}

// Run migrates and initializes.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	return s.Initialize(ctx)
}
