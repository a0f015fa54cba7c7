package testutil

import (
	"fmt"
	"sync/atomic"
)

var userSeq atomic.Int64

// UserParams holds the inputs needed to insert a test user.
type UserParams struct {
	Email        string
	Username     string
	PasswordHash string
	ReferralCode string
}

// NextUserParams returns unique user inputs for the given name prefix.
// Referral codes stay within the 8-character column limit.
func NextUserParams(name string) UserParams {
	n := userSeq.Add(1)
	return UserParams{
		Email:        fmt.Sprintf("%s%d@example.com", name, n),
		Username:     fmt.Sprintf("%s%d", name, n),
		PasswordHash: "test-hash",
		ReferralCode: fmt.Sprintf("%08d", n),
	}
}
