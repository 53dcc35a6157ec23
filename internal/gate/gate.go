/**
 * @description
 * The transfer gate is the shared readiness policy for both monetary
 * operations: an action is enabled only when a principal exists, the
 * destination account carries a Verified lookup result, and the amount is
 * within the operation's bound. Pure functions, no side effects; callers
 * recompute on every relevant state change.
 */

package gate

import (
	"github.com/swiftlend/wallet-gateway/internal/domain"
	"github.com/swiftlend/wallet-gateway/internal/verify"
)

// Decision is the gate's answer for one candidate submission.
type Decision struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// ForLoan gates a loan application: 0 < amount <= offer.MaxAmount.
func ForLoan(p *domain.Principal, result verify.Result, amount, maxAmount int64) Decision {
	if d, ok := common(p, result, amount); !ok {
		return d
	}
	if amount > maxAmount {
		return Decision{Reason: "amount exceeds the offer limit"}
	}
	return Decision{Enabled: true}
}

// ForWithdrawal gates a withdrawal: 0 < amount <= wallet balance.
func ForWithdrawal(p *domain.Principal, result verify.Result, amount, balance int64) Decision {
	if d, ok := common(p, result, amount); !ok {
		return d
	}
	if amount > balance {
		return Decision{Reason: "amount exceeds the wallet balance"}
	}
	return Decision{Enabled: true}
}

func common(p *domain.Principal, result verify.Result, amount int64) (Decision, bool) {
	if p == nil {
		return Decision{Reason: "not authenticated"}, false
	}
	if !result.Verified() {
		return Decision{Reason: "destination account not verified"}, false
	}
	if amount <= 0 {
		return Decision{Reason: "amount must be greater than zero"}, false
	}
	return Decision{}, true
}
