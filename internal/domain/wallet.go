/**
 * @description
 * This file defines the wallet-side domain models: the wallet itself, the
 * transaction ledger entries, and the withdrawal draft.
 *
 * @notes
 * - Amounts are `int64` in the smallest currency unit (cents) to avoid
 *   floating-point inaccuracies with financial data.
 * - The client never computes a balance locally; `Wallet` is always the
 *   last value fetched from the ledger service.
 */

package domain

import "time"

// Wallet is the remote ledger's view of the user's funds at the time of the
// last successful fetch.
type Wallet struct {
	AccountNumber string `json:"accountNumber"`
	Balance       int64  `json:"balance"` // in cents
}

// Transaction types as reported by the ledger service.
const (
	TransactionDeposit    = "Deposit"
	TransactionWithdrawal = "Withdrawal"
)

// Transaction is one ledger entry, append-only from the client's perspective.
type Transaction struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"` // Deposit | Withdrawal
	Amount          int64     `json:"amount"`
	Status          string    `json:"status"`
	Date            time.Time `json:"date"`
	ExternalAccount string    `json:"externalAccount,omitempty"`
}

// WithdrawalDraft is an in-progress, not-yet-submitted withdrawal input set.
type WithdrawalDraft struct {
	Amount                int64  `json:"amount"`
	ExternalAccountNumber string `json:"externalAccountNumber"`
}
