/**
 * @description
 * Loan-side domain models: the immutable offer catalog entries and the
 * in-progress application draft.
 */

package domain

// LoanOffer is immutable reference data fetched once from the ledger catalog.
type LoanOffer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	InterestRate string `json:"interestRate"`
	MaxAmount    int64  `json:"maxAmount"` // in cents
}

// LoanApplicationDraft is an in-progress, not-yet-submitted loan input set.
// It is destroyed on successful submission or on navigating away; it is
// preserved intact when a submission fails so the user can retry.
type LoanApplicationDraft struct {
	OfferID                  string `json:"offerId"`
	Amount                   int64  `json:"amount"`
	DestinationAccountNumber string `json:"destinationAccountNumber"`
}

// AccountLookupResult is the ledger's answer to a destination account lookup.
type AccountLookupResult struct {
	Valid     bool   `json:"valid"`
	OwnerName string `json:"ownerName,omitempty"`
}
