// Package refhash builds the commitments and signed-message texts that bind
// off-ledger bank transfers to on-ledger positions.
package refhash

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeOffchainRefHash commits to a loan draft id. Stored on the position
// at creation; the draft record itself never touches the ledger.
func ComputeOffchainRefHash(draftID string) common.Hash {
	return common.BytesToHash(crypto.Keccak256([]byte(draftID)))
}

// ComputeTransferRefHash commits to a bank transfer reference string.
func ComputeTransferRefHash(reference string) common.Hash {
	return common.BytesToHash(crypto.Keccak256([]byte(reference)))
}

// BankDetailsParams describe a borrower's bank-details submission.
type BankDetailsParams struct {
	Address          common.Address
	Token            common.Address
	CollateralAmount string
	RequestedIDR     string
	DraftID          string
	Timestamp        string
	ChainID          string
}

// BuildBankDetailsMessage is the exact text a borrower signs when submitting
// bank details. Line order is part of the signature format.
func BuildBankDetailsMessage(p BankDetailsParams) string {
	return strings.Join([]string{
		"Pinjaman Bank Details Submission",
		fmt.Sprintf("address: %s", p.Address.Hex()),
		fmt.Sprintf("token: %s", p.Token.Hex()),
		fmt.Sprintf("collateralAmount: %s", p.CollateralAmount),
		fmt.Sprintf("requestedIdr: %s", p.RequestedIDR),
		fmt.Sprintf("draftId: %s", p.DraftID),
		fmt.Sprintf("timestamp: %s", p.Timestamp),
		fmt.Sprintf("chainId: %s", p.ChainID),
	}, "\n")
}

// AdminAccessParams describe an operator's request to view bank details.
type AdminAccessParams struct {
	Address   common.Address
	Timestamp string
	ChainID   string
}

// BuildAdminAccessMessage is the text an operator signs to read submitted
// bank details.
func BuildAdminAccessMessage(p AdminAccessParams) string {
	return strings.Join([]string{
		"Pinjaman Admin Bank Details Access",
		fmt.Sprintf("address: %s", p.Address.Hex()),
		fmt.Sprintf("timestamp: %s", p.Timestamp),
		fmt.Sprintf("chainId: %s", p.ChainID),
	}, "\n")
}
