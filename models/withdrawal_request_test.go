package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithdrawalRequest_CanTransitionTo(t *testing.T) {
	cases := []struct {
		name    string
		from    WithdrawalStatus
		to      WithdrawalStatus
		allowed bool
	}{
		{"pending to approved", WithdrawalStatusPending, WithdrawalStatusApproved, true},
		{"pending to rejected", WithdrawalStatusPending, WithdrawalStatusRejected, true},
		{"pending to completed", WithdrawalStatusPending, WithdrawalStatusCompleted, false},
		{"pending to pending", WithdrawalStatusPending, WithdrawalStatusPending, false},
		{"approved to completed", WithdrawalStatusApproved, WithdrawalStatusCompleted, true},
		{"approved to rejected", WithdrawalStatusApproved, WithdrawalStatusRejected, true},
		{"approved to pending", WithdrawalStatusApproved, WithdrawalStatusPending, false},
		{"rejected is terminal", WithdrawalStatusRejected, WithdrawalStatusApproved, false},
		{"completed is terminal", WithdrawalStatusCompleted, WithdrawalStatusRejected, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wr := &WithdrawalRequest{Status: tc.from}
			assert.Equal(t, tc.allowed, wr.CanTransitionTo(tc.to))
		})
	}
}

func TestWithdrawalRequest_IsTerminal(t *testing.T) {
	assert.False(t, (&WithdrawalRequest{Status: WithdrawalStatusPending}).IsTerminal())
	assert.False(t, (&WithdrawalRequest{Status: WithdrawalStatusApproved}).IsTerminal())
	assert.True(t, (&WithdrawalRequest{Status: WithdrawalStatusRejected}).IsTerminal())
	assert.True(t, (&WithdrawalRequest{Status: WithdrawalStatusCompleted}).IsTerminal())
}

func TestValidWithdrawalStatus(t *testing.T) {
	assert.True(t, ValidWithdrawalStatus(WithdrawalStatusPending))
	assert.True(t, ValidWithdrawalStatus(WithdrawalStatusCompleted))
	assert.False(t, ValidWithdrawalStatus(WithdrawalStatus("archived")))
	assert.False(t, ValidWithdrawalStatus(WithdrawalStatus("")))
}
