package state

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PositionLedger is the authoritative map of position id to Position, plus a
// per-borrower index maintained incrementally on create — never rebuilt by
// scanning. Ids are assigned strictly increasingly starting at 1 and never
// reused; terminal positions stay in the map as permanent history.
type PositionLedger struct {
	mu         sync.RWMutex
	positions  map[uint64]*Position
	byBorrower map[common.Address][]uint64
	nextID     uint64
}

func NewPositionLedger() *PositionLedger {
	return &PositionLedger{
		positions:  make(map[uint64]*Position),
		byBorrower: make(map[common.Address][]uint64),
		nextID:     1,
	}
}

// Create allocates the next id, stores the position in PayoutPending and
// indexes it under the borrower.
func (pl *PositionLedger) Create(
	borrower common.Address,
	token common.Address,
	collateralAmount *big.Int,
	principalIDR *big.Int,
	aprBps uint32,
	payoutDeadline time.Time,
	offchainRefHash common.Hash,
) *Position {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	pos := &Position{
		ID:               pl.nextID,
		Borrower:         borrower,
		CollateralToken:  token,
		CollateralAmount: new(big.Int).Set(collateralAmount),
		PrincipalIDR:     new(big.Int).Set(principalIDR),
		AprBps:           aprBps,
		Status:           StatusPayoutPending,
		PayoutDeadline:   payoutDeadline,
		OffchainRefHash:  offchainRefHash,
	}

	pl.positions[pos.ID] = pos
	pl.byBorrower[borrower] = append(pl.byBorrower[borrower], pos.ID)
	pl.nextID++

	return pos
}

// Get returns the live position record. Mutations must go through the
// lifecycle controller, which serializes them; read-only callers should Clone.
func (pl *PositionLedger) Get(id uint64) (*Position, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	pos, ok := pl.positions[id]
	return pos, ok
}

// Snapshot returns a deep copy of the position for read paths.
func (pl *PositionLedger) Snapshot(id uint64) (*Position, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	pos, ok := pl.positions[id]
	if !ok {
		return nil, false
	}
	return pos.Clone(), true
}

// UserPositions returns every position id ever created by the borrower, in
// creation order.
func (pl *PositionLedger) UserPositions(borrower common.Address) []uint64 {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	ids := pl.byBorrower[borrower]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// ActivePositions returns copies of every non-terminal position.
func (pl *PositionLedger) ActivePositions() []*Position {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	out := make([]*Position, 0)
	for _, pos := range pl.positions {
		if !pos.Status.Terminal() {
			out = append(out, pos.Clone())
		}
	}
	return out
}

// NextID exposes the id counter (read surface parity with the ledger state).
func (pl *PositionLedger) NextID() uint64 {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.nextID
}

// Restore re-inserts a position during startup recovery. The id counter
// advances past the restored id so future assignments stay strictly
// increasing.
func (pl *PositionLedger) Restore(pos *Position) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	pl.positions[pos.ID] = pos
	pl.byBorrower[pos.Borrower] = append(pl.byBorrower[pos.Borrower], pos.ID)
	if pos.ID >= pl.nextID {
		pl.nextID = pos.ID + 1
	}
}

// Count returns the number of non-terminal positions (metrics).
func (pl *PositionLedger) Count() int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	n := 0
	for _, pos := range pl.positions {
		if !pos.Status.Terminal() {
			n++
		}
	}
	return n
}
