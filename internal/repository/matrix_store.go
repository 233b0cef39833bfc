package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
)

// MatrixStore runs engine operations inside one database transaction.
type MatrixStore struct {
	db            *sqlx.DB
	lockNamespace int
}

// NewMatrixStore constructs the store. lockNamespace keys the advisory locks of this service.
func NewMatrixStore(db *sqlx.DB, lockNamespace int) *MatrixStore {
	return &MatrixStore{db: db, lockNamespace: lockNamespace}
}

// MatrixTx exposes the slot, donation and participant repositories bound to one transaction.
type MatrixTx struct {
	*QueueSlotRepository
	*DonationRepository
	*ParticipantRepository

	tx            *sqlx.Tx
	lockNamespace int
	savepoints    int
}

// RunInTx begins a transaction, hands it to fn and commits when fn succeeds.
func (s *MatrixStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *MatrixTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin matrix transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	mtx := &MatrixTx{
		QueueSlotRepository:   NewQueueSlotRepository(tx),
		DonationRepository:    NewDonationRepository(tx),
		ParticipantRepository: NewParticipantRepository(tx),
		tx:                    tx,
		lockNamespace:         s.lockNamespace,
	}
	if err = fn(ctx, mtx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit matrix transaction: %w", err)
	}
	return nil
}

// LockLevels takes transaction-scoped advisory locks on the given levels in ascending order.
func (t *MatrixTx) LockLevels(ctx context.Context, levels ...int) error {
	ordered := uniqueSorted(levels)
	for _, level := range ordered {
		if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, t.lockNamespace, level); err != nil {
			return fmt.Errorf("lock level %d: %w", level, err)
		}
	}
	return nil
}

// Savepoint runs fn inside a nested savepoint. When fn fails only its writes are rolled back
// and the error is returned for the caller to decide on.
func (t *MatrixTx) Savepoint(ctx context.Context, fn func() error) error {
	t.savepoints++
	name := fmt.Sprintf("matrix_sp_%d", t.savepoints)

	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback savepoint after %v: %w", err, rbErr)
		}
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func uniqueSorted(levels []int) []int {
	seen := make(map[int]struct{}, len(levels))
	out := make([]int, 0, len(levels))
	for _, l := range levels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}
