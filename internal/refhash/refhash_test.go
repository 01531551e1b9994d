package refhash_test

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"LoanLedger/internal/refhash"
)

func TestComputeOffchainRefHash_KnownVector(t *testing.T) {
	// keccak256 of the empty string.
	got := refhash.ComputeOffchainRefHash("")
	want := common.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if got != want {
		t.Errorf("got %s, want %s", got.Hex(), want.Hex())
	}
}

func TestComputeTransferRefHash_Deterministic(t *testing.T) {
	a := refhash.ComputeTransferRefHash("BCA-20250601-000123")
	b := refhash.ComputeTransferRefHash("BCA-20250601-000123")
	c := refhash.ComputeTransferRefHash("BCA-20250601-000124")

	if a != b {
		t.Error("same reference must hash identically")
	}
	if a == c {
		t.Error("different references must not collide")
	}
	if a == (common.Hash{}) {
		t.Error("hash must be non-zero")
	}
}

func TestBuildBankDetailsMessage(t *testing.T) {
	msg := refhash.BuildBankDetailsMessage(refhash.BankDetailsParams{
		Address:          common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Token:            common.Address{},
		CollateralAmount: "1000000000000000000",
		RequestedIDR:     "30000000",
		DraftID:          "draft-42",
		Timestamp:        "1748779200",
		ChainID:          "1",
	})

	lines := strings.Split(msg, "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8", len(lines))
	}
	if lines[0] != "Pinjaman Bank Details Submission" {
		t.Errorf("header: got %q", lines[0])
	}
	if lines[1] != "address: 0x1111111111111111111111111111111111111111" {
		t.Errorf("address line: got %q", lines[1])
	}
	if lines[4] != "requestedIdr: 30000000" {
		t.Errorf("principal line: got %q", lines[4])
	}
	if lines[7] != "chainId: 1" {
		t.Errorf("chain line: got %q", lines[7])
	}
}

func TestBuildAdminAccessMessage(t *testing.T) {
	msg := refhash.BuildAdminAccessMessage(refhash.AdminAccessParams{
		Address:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Timestamp: "1748779200",
		ChainID:   "1",
	})

	want := "Pinjaman Admin Bank Details Access\n" +
		"address: 0x2222222222222222222222222222222222222222\n" +
		"timestamp: 1748779200\n" +
		"chainId: 1"
	if msg != want {
		t.Errorf("got %q, want %q", msg, want)
	}
}
