package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVisible(t *testing.T) {
	tests := []struct {
		name      string
		node      State
		ancestors []State
		want      bool
	}{
		{name: "approved course", node: StateApproved, want: true},
		{name: "pending course", node: StatePending, want: false},
		{name: "lecture under approved chain", node: StateApproved, ancestors: []State{StateApproved, StateApproved}, want: true},
		{name: "lecture under rejected course", node: StateApproved, ancestors: []State{StateApproved, StateRejected}, want: false},
		{name: "lecture under pending topic", node: StateApproved, ancestors: []State{StatePending, StateApproved}, want: false},
		{name: "rejected lecture under approved chain", node: StateRejected, ancestors: []State{StateApproved, StateApproved}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVisible(tt.node, tt.ancestors...))
		})
	}
}

func TestTransitionAllowsAnyMove(t *testing.T) {
	states := []State{StatePending, StateApproved, StateRejected}
	for _, from := range states {
		for _, to := range states {
			got, err := Transition(from, to)
			require.NoError(t, err)
			assert.Equal(t, to, got)
		}
	}

	_, err := Transition(StateApproved, State("archived"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAfterOwnerEdit(t *testing.T) {
	assert.Equal(t, StateApproved, AfterOwnerEdit(KindCourse, StateApproved))
	assert.Equal(t, StateRejected, AfterOwnerEdit(KindCourse, StateRejected))
	assert.Equal(t, StatePending, AfterOwnerEdit(KindTopic, StateApproved))
	assert.Equal(t, StatePending, AfterOwnerEdit(KindLecture, StateRejected))
}

func TestParse(t *testing.T) {
	state, err := Parse(" Approved ")
	require.NoError(t, err)
	assert.Equal(t, StateApproved, state)

	_, err = Parse("live")
	assert.ErrorIs(t, err, ErrInvalidState)
}
