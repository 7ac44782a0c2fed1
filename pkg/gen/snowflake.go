package gen

import (
	"smallbiznis-points/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen", fx.Provide(ProvideSnowflakeNode))

// ProvideSnowflakeNode builds the id generator for POINTS.NODE_ID; each replica needs its own id.
func ProvideSnowflakeNode(cfg *config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.Points.NodeID)
}
