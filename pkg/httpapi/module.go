package httpapi

import (
	"time"

	"smallbiznis-points/pkg/config"
	"smallbiznis-points/pkg/health"
	"smallbiznis-points/pkg/middleware"
	"smallbiznis-points/pkg/security"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		NewEngine,
		fx.Annotate(NewAPIGroup, fx.ResultTags(`name:"v1"`)),
	),
	fx.Invoke(registerHealthEndpoint),
)

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(uuid.NewString))
	r.Use(middleware.Error())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", middleware.HeaderRequestID)
	corsCfg.MaxAge = 12 * time.Hour
	if len(cfg.Server.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Server.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	return r
}

// NewAPIGroup is the authenticated /v1 group every service registers on.
func NewAPIGroup(r *gin.Engine, verifier *security.TokenVerifier) *gin.RouterGroup {
	return r.Group("/v1", security.Authenticate(verifier))
}

func registerHealthEndpoint(r *gin.Engine, h health.HealthService) {
	r.GET("/health/liveness", h.Liveness)
	r.GET("/health/readiness", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
