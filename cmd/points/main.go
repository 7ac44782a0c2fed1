package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"smallbiznis-points/pkg/clock"
	"smallbiznis-points/pkg/config"
	"smallbiznis-points/pkg/db"
	"smallbiznis-points/pkg/gen"
	"smallbiznis-points/pkg/hashistack/secretmanager"
	"smallbiznis-points/pkg/hashistack/servicediscover"
	"smallbiznis-points/pkg/health"
	"smallbiznis-points/pkg/httpapi"
	"smallbiznis-points/pkg/logger"
	"smallbiznis-points/pkg/otelcol"
	"smallbiznis-points/pkg/profiling"
	"smallbiznis-points/pkg/redis"
	"smallbiznis-points/pkg/security"
	"smallbiznis-points/pkg/sequence"
	"smallbiznis-points/pkg/server"
	"smallbiznis-points/pkg/task"
	"smallbiznis-points/services/admin"
	"smallbiznis-points/services/advocate"
	"smallbiznis-points/services/bootstrap"
	"smallbiznis-points/services/event"
	"smallbiznis-points/services/ledger"
	"smallbiznis-points/services/referral"
	"smallbiznis-points/services/registration"
	"smallbiznis-points/services/rule"
	"smallbiznis-points/services/settlement"
	"smallbiznis-points/services/tenant"
)

func main() {
	root := &cobra.Command{
		Use:   "points",
		Short: "Multi-tenant points ledger",
	}
	root.PersistentFlags().StringVar(&config.File, "config", "", "path to the config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP and gRPC APIs and relay events",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(serveOptions())
			},
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Consume relayed ledger events",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(workerOptions())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Migrate the schema and seed the admin settings",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context())
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func baseOptions() []fx.Option {
	return []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		fxLogger,
	}
}

func serviceOptions() []fx.Option {
	return []fx.Option{
		db.Module,
		redis.Module,
		gen.Module,
		sequence.Module,
		security.Module,
		clock.Module,
		admin.Module,
		tenant.Module,
		rule.Module,
		advocate.Module,
		registration.Module,
		referral.Module,
		ledger.Module,
		event.Module,
		settlement.Module,
	}
}

func serveOptions() []fx.Option {
	opts := append(baseOptions(), serviceOptions()...)
	return append(opts,
		otelcol.Module,
		profiling.Module,
		health.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		servicediscover.Module,
		task.Client,
		bootstrap.Module,

		admin.Server,
		tenant.Server,
		rule.Server,
		advocate.Server,
		registration.Server,
		referral.Server,
		ledger.Server,
		ledger.Health,
		settlement.Server,
		event.Dispatch,
	)
}

func workerOptions() []fx.Option {
	return append(baseOptions(),
		task.Server,
		event.Worker,
	)
}

func run(opts []fx.Option) error {
	if err := fx.ValidateApp(opts...); err != nil {
		log.Printf("fx validation failed: %v", err)
		return err
	}

	fx.New(opts...).Run()
	return nil
}

func migrate(ctx context.Context) error {
	var svc *bootstrap.Service
	opts := append(baseOptions(), serviceOptions()...)
	opts = append(opts,
		fx.Provide(bootstrap.NewService),
		fx.Populate(&svc),
	)

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		if err := app.Stop(context.Background()); err != nil {
			zap.L().Error("failed to stop", zap.Error(err))
		}
	}()

	return svc.Run(ctx)
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
