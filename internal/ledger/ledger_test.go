package ledger_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"LoanLedger/internal/ledger"
)

var (
	eth      = common.Address{}
	usdc     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	borrower = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_VaultPath(t *testing.T) {
	key := ledger.NewVaultAccountKey(42, usdc)

	path := key.AccountPath()
	expected := "vault:42:" + usdc.Hex()
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_BorrowerPath(t *testing.T) {
	key := ledger.NewBorrowerAccountKey(borrower, eth)

	path := key.AccountPath()
	expected := "borrower:" + borrower.Hex() + ":" + eth.Hex()
	if path != expected {
		t.Errorf("got %q, want %q", path, expected)
	}
}

func TestAccountKey_TreasuryPath(t *testing.T) {
	path := ledger.NewTreasuryAccountKey(eth).AccountPath()
	if path != "treasury:"+eth.Hex() {
		t.Errorf("got %q", path)
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	path := ledger.NewExternalAccountKey(usdc).AccountPath()
	if path != "external:deposits:"+usdc.Hex() {
		t.Errorf("got %q", path)
	}
}

// ============================================================================
// Test: Batch.Validate
// ============================================================================

func depositBatch(amount *big.Int) *ledger.Batch {
	batchID := uuid.New()
	return &ledger.Batch{
		BatchID:  batchID,
		EventRef: "loan-requested:1",
		Journals: []ledger.Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      "loan-requested:1",
				DebitAccount:  ledger.NewVaultAccountKey(1, eth),
				CreditAccount: ledger.NewExternalAccountKey(eth),
				Amount:        amount,
				JournalType:   ledger.JournalTypeCollateralDeposit,
			},
		},
	}
}

func TestBatchValidate_OK(t *testing.T) {
	if err := depositBatch(big.NewInt(1000)).Validate(); err != nil {
		t.Errorf("valid batch rejected: %v", err)
	}
}

func TestBatchValidate_EmptyBatch(t *testing.T) {
	b := &ledger.Batch{BatchID: uuid.New()}
	if err := b.Validate(); err == nil {
		t.Error("empty batch should fail validation")
	}
}

func TestBatchValidate_NonPositiveAmount(t *testing.T) {
	if err := depositBatch(big.NewInt(0)).Validate(); err == nil {
		t.Error("zero amount should fail validation")
	}
	if err := depositBatch(big.NewInt(-5)).Validate(); err == nil {
		t.Error("negative amount should fail validation")
	}
	if err := depositBatch(nil).Validate(); err == nil {
		t.Error("nil amount should fail validation")
	}
}

func TestBatchValidate_MismatchedBatchID(t *testing.T) {
	b := depositBatch(big.NewInt(1))
	b.Journals[0].BatchID = uuid.New()
	if err := b.Validate(); err == nil {
		t.Error("mismatched batch_id should fail validation")
	}
}

func TestBatchValidate_SelfTransfer(t *testing.T) {
	b := depositBatch(big.NewInt(1))
	b.Journals[0].CreditAccount = b.Journals[0].DebitAccount
	if err := b.Validate(); err == nil {
		t.Error("self transfer should fail validation")
	}
}

func TestBatchValidate_CrossTokenTransfer(t *testing.T) {
	b := depositBatch(big.NewInt(1))
	b.Journals[0].CreditAccount = ledger.NewExternalAccountKey(usdc)
	if err := b.Validate(); err == nil {
		t.Error("cross-token transfer should fail validation")
	}
}

// ============================================================================
// Test: BalanceTracker
// ============================================================================

func TestBalanceTracker_InitialBalanceZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	if bal := bt.VaultBalance(1, eth); bal.Sign() != 0 {
		t.Errorf("initial vault balance should be 0, got %s", bal)
	}
}

func TestBalanceTracker_DepositThenRelease(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	amount := big.NewInt(1_000_000)

	if err := bt.ApplyBatch(depositBatch(amount)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if bal := bt.VaultBalance(1, eth); bal.Cmp(amount) != 0 {
		t.Errorf("after deposit: got %s, want %s", bal, amount)
	}

	bt.ApplyJournal(ledger.Journal{
		DebitAccount:  ledger.NewBorrowerAccountKey(borrower, eth),
		CreditAccount: ledger.NewVaultAccountKey(1, eth),
		Amount:        amount,
	})

	if bal := bt.VaultBalance(1, eth); bal.Sign() != 0 {
		t.Errorf("after release: got %s, want 0", bal)
	}
	if bal := bt.GetBalance(ledger.NewBorrowerAccountKey(borrower, eth)); bal.Cmp(amount) != 0 {
		t.Errorf("borrower balance: got %s, want %s", bal, amount)
	}
	if err := bt.ValidateVaultNonNegative(1, eth); err != nil {
		t.Errorf("vault should be non-negative: %v", err)
	}
}

func TestBalanceTracker_OverReleaseGoesNegative(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	bt.ApplyJournal(ledger.Journal{
		DebitAccount:  ledger.NewBorrowerAccountKey(borrower, eth),
		CreditAccount: ledger.NewVaultAccountKey(1, eth),
		Amount:        big.NewInt(1),
	})

	if err := bt.ValidateVaultNonNegative(1, eth); err == nil {
		t.Error("release without deposit should trip the non-negative check")
	}
}

func TestBalanceTracker_GlobalBalanceIsZero(t *testing.T) {
	bt := ledger.NewBalanceTracker()

	if err := bt.ApplyBatch(depositBatch(big.NewInt(777))); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bt.ApplyJournal(ledger.Journal{
		DebitAccount:  ledger.NewTreasuryAccountKey(eth),
		CreditAccount: ledger.NewVaultAccountKey(1, eth),
		Amount:        big.NewInt(777),
	})

	for token, total := range bt.ComputeGlobalBalance() {
		if total.Sign() != 0 {
			t.Errorf("token %s global balance: got %s, want 0", token.Hex(), total)
		}
	}
}

func TestBalanceTracker_GetBalanceReturnsCopy(t *testing.T) {
	bt := ledger.NewBalanceTracker()
	if err := bt.ApplyBatch(depositBatch(big.NewInt(100))); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	bal := bt.VaultBalance(1, eth)
	bal.SetInt64(0)

	if again := bt.VaultBalance(1, eth); again.Cmp(big.NewInt(100)) != 0 {
		t.Error("mutating a returned balance changed tracker state")
	}
}
