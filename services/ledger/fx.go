package ledger

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

var Module = fx.Module("ledger.service",
	fx.Provide(NewService),
)

// Server exposes the journal verification route.
var Server = fx.Module("ledger.server",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

// Health serves grpc.health.v1 on the gRPC server.
var Health = fx.Module("ledger.health",
	fx.Provide(NewHealthServer),
	fx.Invoke(registerHealthServer),
)

type routeParams struct {
	fx.In
	Group   *gin.RouterGroup `name:"v1"`
	Handler *Handler
}

func registerRoutes(p routeParams) {
	p.Handler.Register(p.Group)
}

func registerHealthServer(server *grpc.Server, hs *HealthServer) {
	grpc_health_v1.RegisterHealthServer(server, hs)
}
