package event

import (
	"context"
	"encoding/json"
	"fmt"

	"smallbiznis-points/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	node   *snowflake.Node
	outbox repository.Repository[Outbox]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:   p.Node,
		outbox: repository.ProvideStore[Outbox](p.DB),
	}
}

// Record writes e to the outbox inside tx so it commits or rolls back with the caller's state.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, tenantID string, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.EventType(), err)
	}

	return s.outbox.WithTrx(tx).Create(ctx, &Outbox{
		ID:       s.node.Generate().String(),
		TenantID: tenantID,
		Type:     e.EventType(),
		Payload:  datatypes.JSON(payload),
	})
}
