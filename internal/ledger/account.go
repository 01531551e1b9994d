package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AccountScope represents the top-level custody account namespace.
type AccountScope uint8

const (
	// AccountScopeVault holds collateral escrowed for a specific position.
	AccountScopeVault AccountScope = iota
	// AccountScopeBorrower holds collateral already returned to a borrower.
	AccountScopeBorrower
	// AccountScopeTreasury holds collateral seized by liquidation.
	AccountScopeTreasury
	// AccountScopeExternal is the boundary account funding deposits.
	AccountScopeExternal
)

// AccountKey identifies a custody balance: scope, owner, and the collateral
// token being held. PositionID is only meaningful for vault accounts.
type AccountKey struct {
	Scope      AccountScope
	Owner      common.Address
	PositionID uint64
	Token      common.Address
}

// NewVaultAccountKey escrows collateral for one position.
func NewVaultAccountKey(positionID uint64, token common.Address) AccountKey {
	return AccountKey{Scope: AccountScopeVault, PositionID: positionID, Token: token}
}

// NewBorrowerAccountKey tracks collateral returned to a borrower.
func NewBorrowerAccountKey(borrower common.Address, token common.Address) AccountKey {
	return AccountKey{Scope: AccountScopeBorrower, Owner: borrower, Token: token}
}

// NewTreasuryAccountKey tracks seized collateral.
func NewTreasuryAccountKey(token common.Address) AccountKey {
	return AccountKey{Scope: AccountScopeTreasury, Token: token}
}

// NewExternalAccountKey is the zero-sum counterpart of deposits.
func NewExternalAccountKey(token common.Address) AccountKey {
	return AccountKey{Scope: AccountScopeExternal, Token: token}
}

// AccountPath returns the string representation for storage/logging.
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeVault:
		return fmt.Sprintf("vault:%d:%s", k.PositionID, k.Token.Hex())
	case AccountScopeBorrower:
		return fmt.Sprintf("borrower:%s:%s", k.Owner.Hex(), k.Token.Hex())
	case AccountScopeTreasury:
		return fmt.Sprintf("treasury:%s", k.Token.Hex())
	case AccountScopeExternal:
		return fmt.Sprintf("external:deposits:%s", k.Token.Hex())
	}
	return "unknown"
}
