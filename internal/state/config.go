package state

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrZeroUSDCToken rejects deployment parameters whose USD-pegged token is
// the zero address, which is reserved for the native asset.
var ErrZeroUSDCToken = errors.New("usdc token must not be the zero address")

// NativeToken is the sentinel collateral identifier for the ledger's native
// asset (ETH).
var NativeToken = common.Address{}

// CollateralToken describes an accepted collateral asset.
type CollateralToken struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
	// USDPegged collateral is priced at a fixed 1:1 USD peg instead of going
	// through the external oracle.
	USDPegged bool
}

// ConfigStore holds the mutable risk/administrative parameters. Authorization
// (admin-only writes) is enforced by the lifecycle controller; the store only
// validates and records values. usdIdrUpdatedAt only increases.
type ConfigStore struct {
	mu sync.RWMutex

	administrator common.Address
	treasury      common.Address
	oracleAddress common.Address

	aprBpsDefault         uint32
	payoutDeadlineSeconds uint64

	usdIdrRate      *big.Int
	usdIdrUpdatedAt time.Time

	tokens map[common.Address]CollateralToken
}

// ConfigParams seeds a ConfigStore (deployment parameters).
type ConfigParams struct {
	Administrator         common.Address
	Treasury              common.Address
	OracleAddress         common.Address
	USDCToken             common.Address
	AprBpsDefault         uint32
	PayoutDeadlineSeconds uint64
	UsdIdrRate            *big.Int
	UsdIdrRateSetAt       time.Time
}

func NewConfigStore(p ConfigParams) (*ConfigStore, error) {
	if p.USDCToken == NativeToken {
		return nil, ErrZeroUSDCToken
	}

	rate := new(big.Int)
	if p.UsdIdrRate != nil {
		rate.Set(p.UsdIdrRate)
	}

	cs := &ConfigStore{
		administrator:         p.Administrator,
		treasury:              p.Treasury,
		oracleAddress:         p.OracleAddress,
		aprBpsDefault:         p.AprBpsDefault,
		payoutDeadlineSeconds: p.PayoutDeadlineSeconds,
		usdIdrRate:            rate,
		usdIdrUpdatedAt:       p.UsdIdrRateSetAt,
		tokens:                make(map[common.Address]CollateralToken),
	}

	cs.tokens[NativeToken] = CollateralToken{
		Address:  NativeToken,
		Symbol:   "ETH",
		Decimals: 18,
	}
	cs.tokens[p.USDCToken] = CollateralToken{
		Address:   p.USDCToken,
		Symbol:    "USDC",
		Decimals:  6,
		USDPegged: true,
	}

	return cs, nil
}

func (cs *ConfigStore) Administrator() common.Address {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.administrator
}

func (cs *ConfigStore) Treasury() common.Address {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.treasury
}

func (cs *ConfigStore) OracleAddress() common.Address {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.oracleAddress
}

func (cs *ConfigStore) AprBpsDefault() uint32 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.aprBpsDefault
}

func (cs *ConfigStore) PayoutDeadlineSeconds() uint64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.payoutDeadlineSeconds
}

// UsdIdrRate returns the manual FX rate (IDR per USD) and its update time.
func (cs *ConfigStore) UsdIdrRate() (*big.Int, time.Time) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return new(big.Int).Set(cs.usdIdrRate), cs.usdIdrUpdatedAt
}

// Token looks up a registered collateral asset.
func (cs *ConfigStore) Token(addr common.Address) (CollateralToken, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	tok, ok := cs.tokens[addr]
	return tok, ok
}

// USDCToken returns the registered USD-pegged token address.
func (cs *ConfigStore) USDCToken() common.Address {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for addr, tok := range cs.tokens {
		if tok.USDPegged {
			return addr
		}
	}
	return common.Address{}
}

func (cs *ConfigStore) SetAdministrator(addr common.Address) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.administrator = addr
}

func (cs *ConfigStore) SetTreasury(addr common.Address) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.treasury = addr
}

func (cs *ConfigStore) SetOracleAddress(addr common.Address) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.oracleAddress = addr
}

func (cs *ConfigStore) SetAprBpsDefault(aprBps uint32) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.aprBpsDefault = aprBps
}

func (cs *ConfigStore) SetPayoutDeadlineSeconds(seconds uint64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.payoutDeadlineSeconds = seconds
}

// SetUsdIdrRate records the new rate and stamps usdIdrUpdatedAt to now.
func (cs *ConfigStore) SetUsdIdrRate(rate *big.Int, now time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.usdIdrRate = new(big.Int).Set(rate)
	if now.After(cs.usdIdrUpdatedAt) {
		cs.usdIdrUpdatedAt = now
	}
}

// SetUSDCToken replaces the registered USD-pegged token address.
func (cs *ConfigStore) SetUSDCToken(addr common.Address) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for old, tok := range cs.tokens {
		if tok.USDPegged {
			delete(cs.tokens, old)
			tok.Address = addr
			cs.tokens[addr] = tok
			return
		}
	}
	cs.tokens[addr] = CollateralToken{Address: addr, Symbol: "USDC", Decimals: 6, USDPegged: true}
}
