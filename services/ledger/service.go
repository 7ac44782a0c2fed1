package ledger

import (
	"context"
	"fmt"

	"smallbiznis-points/pkg/db/option"
	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	ledger   repository.Repository[LedgerEntry]
	balance  repository.Repository[Balance]
	primary  repository.Repository[PrimaryCheckpoint]
	referral repository.Repository[ReferralCheckpoint]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		ledger:   repository.ProvideStore[LedgerEntry](p.DB),
		balance:  repository.ProvideStore[Balance](p.DB),
		primary:  repository.ProvideStore[PrimaryCheckpoint](p.DB),
		referral: repository.ProvideStore[ReferralCheckpoint](p.DB),
	}
}

// Credit describes one balance increase.
type Credit struct {
	TenantID   string
	Key        BalanceKey
	ActionName string
	Amount     Amount
	Reference  string
	OccurredAt int64
	Metadata   datatypes.JSON
}

// Credit appends an entry to the key's chain and raises its balance. Zero
// credits are skipped and return nil; negative credits are rejected.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, c Credit) (*LedgerEntry, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	switch c.Amount.Sign() {
	case 0:
		return nil, nil
	case -1:
		return nil, errutil.BadRequest("Invalid input.", fmt.Errorf("negative credit %s", c.Amount))
	}

	balanceRepo := s.balance.WithTrx(tx)
	current, err := balanceRepo.FindOne(ctx, &Balance{
		Address:   c.Key.Address,
		Domain:    c.Key.Domain,
		Role:      c.Key.Role,
		PointName: c.Key.PointName,
	}, option.WithLockingUpdate())
	if err != nil {
		zapLog.Error("failed to load balance", zap.Error(err))
		return nil, err
	}

	if current == nil {
		current = &Balance{
			ID:        s.node.Generate().String(),
			Address:   c.Key.Address,
			Domain:    c.Key.Domain,
			Role:      c.Key.Role,
			PointName: c.Key.PointName,
			Balance:   Zero(),
		}
		if err := balanceRepo.Create(ctx, current); err != nil {
			zapLog.Error("failed to create balance", zap.Error(err))
			return nil, err
		}
	}

	entry := &LedgerEntry{
		ID:           s.node.Generate().String(),
		TenantID:     c.TenantID,
		Address:      c.Key.Address,
		Domain:       c.Key.Domain,
		Role:         c.Key.Role,
		PointName:    c.Key.PointName,
		Sequence:     current.EntryCount + 1,
		ActionName:   c.ActionName,
		Amount:       c.Amount,
		BalanceAfter: current.Balance.Add(c.Amount),
		Reference:    c.Reference,
		OccurredAt:   c.OccurredAt,
		PreviousHash: current.LastHash,
		Metadata:     c.Metadata,
	}
	entry.Hash = entry.GenerateHash()

	if err := s.ledger.WithTrx(tx).Create(ctx, entry); err != nil {
		zapLog.Error("failed to append ledger entry", zap.Error(err))
		return nil, err
	}

	if err := balanceRepo.Update(ctx, current.ID, map[string]any{
		"balance":     entry.BalanceAfter,
		"entry_count": entry.Sequence,
		"last_hash":   entry.Hash,
	}); err != nil {
		zapLog.Error("failed to update balance", zap.Error(err))
		return nil, err
	}

	return entry, nil
}

// GetBalance returns the persisted balance, zero for an unknown key.
func (s *Service) GetBalance(ctx context.Context, tx *gorm.DB, key BalanceKey) (Amount, error) {
	b, err := s.balance.WithTrx(tx).FindOne(ctx, &Balance{
		Address:   key.Address,
		Domain:    key.Domain,
		Role:      key.Role,
		PointName: key.PointName,
	})
	if err != nil {
		return Amount{}, err
	}
	if b == nil {
		return Zero(), nil
	}
	return b.Balance, nil
}

// Checkpoints returns the primary and referral clocks of key; nil means never
// set. Rows are locked when read inside a transaction.
func (s *Service) Checkpoints(ctx context.Context, tx *gorm.DB, key CheckpointKey) (primary, referral *int64, err error) {
	var opts []option.QueryOption
	if tx != nil {
		opts = append(opts, option.WithLockingUpdate())
	}

	p, err := s.primary.WithTrx(tx).FindOne(ctx, &PrimaryCheckpoint{
		TenantID: key.TenantID, Address: key.Address, Domain: key.Domain, Role: key.Role,
	}, opts...)
	if err != nil {
		return nil, nil, err
	}
	if p != nil {
		primary = &p.SettledAt
	}

	r, err := s.referral.WithTrx(tx).FindOne(ctx, &ReferralCheckpoint{
		TenantID: key.TenantID, Address: key.Address, Domain: key.Domain, Role: key.Role,
	}, opts...)
	if err != nil {
		return nil, nil, err
	}
	if r != nil {
		referral = &r.SettledAt
	}

	return primary, referral, nil
}

// MoveCheckpoints sets both clocks of key to now.
func (s *Service) MoveCheckpoints(ctx context.Context, tx *gorm.DB, key CheckpointKey, now int64) error {
	primaryRepo := s.primary.WithTrx(tx)
	p, err := primaryRepo.FindOne(ctx, &PrimaryCheckpoint{
		TenantID: key.TenantID, Address: key.Address, Domain: key.Domain, Role: key.Role,
	})
	if err != nil {
		return err
	}
	if p == nil {
		err = primaryRepo.Create(ctx, &PrimaryCheckpoint{
			ID:       s.node.Generate().String(),
			TenantID: key.TenantID, Address: key.Address, Domain: key.Domain, Role: key.Role,
			SettledAt: now,
		})
	} else {
		err = primaryRepo.Update(ctx, p.ID, map[string]any{"settled_at": now})
	}
	if err != nil {
		return err
	}

	referralRepo := s.referral.WithTrx(tx)
	r, err := referralRepo.FindOne(ctx, &ReferralCheckpoint{
		TenantID: key.TenantID, Address: key.Address, Domain: key.Domain, Role: key.Role,
	})
	if err != nil {
		return err
	}
	if r == nil {
		return referralRepo.Create(ctx, &ReferralCheckpoint{
			ID:       s.node.Generate().String(),
			TenantID: key.TenantID, Address: key.Address, Domain: key.Domain, Role: key.Role,
			SettledAt: now,
		})
	}
	return referralRepo.Update(ctx, r.ID, map[string]any{"settled_at": now})
}

// VerifyChain replays the journal of key and checks every link and running
// balance. It returns the number of verified entries.
func (s *Service) VerifyChain(ctx context.Context, key BalanceKey) (int, error) {
	entries, err := s.ledger.Find(ctx, &LedgerEntry{
		Address:   key.Address,
		Domain:    key.Domain,
		Role:      key.Role,
		PointName: key.PointName,
	}, option.WithSortBy(option.QuerySortBy{SortBy: "sequence", OrderBy: "asc"}))
	if err != nil {
		return 0, err
	}

	prevHash := ""
	running := Zero()
	for i, e := range entries {
		if e.Sequence != int64(i+1) {
			return i, errutil.Conflict("ledger chain broken", fmt.Errorf("entry %s has sequence %d, want %d", e.ID, e.Sequence, i+1))
		}
		if e.PreviousHash != prevHash {
			return i, errutil.Conflict("ledger chain broken", fmt.Errorf("entry %s does not link to its predecessor", e.ID))
		}
		if e.GenerateHash() != e.Hash {
			return i, errutil.Conflict("ledger chain broken", fmt.Errorf("entry %s hash mismatch", e.ID))
		}
		running = running.Add(e.Amount)
		if running.Cmp(e.BalanceAfter) != 0 {
			return i, errutil.Conflict("ledger chain broken", fmt.Errorf("entry %s balance mismatch", e.ID))
		}
		prevHash = e.Hash
	}

	current, err := s.GetBalance(ctx, nil, key)
	if err != nil {
		return len(entries), err
	}
	if current.Cmp(running) != 0 {
		return len(entries), errutil.Conflict("ledger chain broken", fmt.Errorf("balance %s does not match journal total %s", current, running))
	}

	return len(entries), nil
}
