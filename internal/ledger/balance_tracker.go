package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceTracker maintains in-memory custody balances. The ledger is zero-sum:
// every transfer debits one account and credits another, so the global sum per
// token stays at zero.
type BalanceTracker struct {
	balances map[AccountKey]*big.Int
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]*big.Int),
	}
}

// ApplyJournal applies a single journal entry to balances.
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.add(j.DebitAccount, j.Amount)
	bt.sub(j.CreditAccount, j.Amount)
}

// ApplyBatch validates and applies all journals in a batch.
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns a copy of the current balance for an account.
func (bt *BalanceTracker) GetBalance(key AccountKey) *big.Int {
	if b, ok := bt.balances[key]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// VaultBalance returns the collateral escrowed for a position.
func (bt *BalanceTracker) VaultBalance(positionID uint64, token common.Address) *big.Int {
	return bt.GetBalance(NewVaultAccountKey(positionID, token))
}

// ValidateVaultNonNegative checks that a vault account never goes negative —
// a release or seizure can never exceed what was escrowed.
func (bt *BalanceTracker) ValidateVaultNonNegative(positionID uint64, token common.Address) error {
	bal := bt.VaultBalance(positionID, token)
	if bal.Sign() < 0 {
		return fmt.Errorf("vault for position %d has negative balance %s", positionID, bal)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances per token (should be zero).
func (bt *BalanceTracker) ComputeGlobalBalance() map[common.Address]*big.Int {
	totals := make(map[common.Address]*big.Int)

	for key, balance := range bt.balances {
		total, ok := totals[key.Token]
		if !ok {
			total = new(big.Int)
			totals[key.Token] = total
		}
		total.Add(total, balance)
	}

	return totals
}

func (bt *BalanceTracker) add(key AccountKey, amount *big.Int) {
	b, ok := bt.balances[key]
	if !ok {
		b = new(big.Int)
		bt.balances[key] = b
	}
	b.Add(b, amount)
}

func (bt *BalanceTracker) sub(key AccountKey, amount *big.Int) {
	b, ok := bt.balances[key]
	if !ok {
		b = new(big.Int)
		bt.balances[key] = b
	}
	b.Sub(b, amount)
}
