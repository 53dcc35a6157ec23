/**
 * @description
 * This file defines the identity models shared across the gateway: the
 * authenticated Principal and the session payloads exchanged with the
 * ledger/identity service.
 *
 * @notes
 * - The Principal's `Verified` flag is flipped exactly once, by the biometric
 *   scan flow, and only ever through the session store's Login.
 */

package domain

// Principal is the authenticated identity of the current user.
type Principal struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// Credentials is the DTO for login requests against the ledger service.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the DTO for new-account requests against the ledger service.
type Registration struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
