package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitutionStatusTransitions(t *testing.T) {
	cases := []struct {
		from    SubstitutionStatus
		to      SubstitutionStatus
		allowed bool
	}{
		{SubstitutionRequested, SubstitutionApproved, true},
		{SubstitutionRequested, SubstitutionCancelled, true},
		{SubstitutionRequested, SubstitutionCompleted, false},
		{SubstitutionApproved, SubstitutionCompleted, true},
		{SubstitutionApproved, SubstitutionCancelled, true},
		{SubstitutionApproved, SubstitutionRequested, false},
		{SubstitutionCompleted, SubstitutionCancelled, false},
		{SubstitutionCancelled, SubstitutionApproved, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSubstitutionStatusTerminal(t *testing.T) {
	assert.False(t, SubstitutionRequested.Terminal())
	assert.False(t, SubstitutionApproved.Terminal())
	assert.True(t, SubstitutionCompleted.Terminal())
	assert.True(t, SubstitutionCancelled.Terminal())
}

func TestSubstitutionStatusValid(t *testing.T) {
	assert.True(t, SubstitutionApproved.Valid())
	assert.False(t, SubstitutionStatus("PENDING").Valid())
	assert.False(t, SubstitutionStatus("").Valid())
}
