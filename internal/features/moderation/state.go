package moderation

import (
	"errors"
	"strings"
)

// ErrInvalidState is returned for values outside pending/approved/rejected.
var ErrInvalidState = errors.New("invalid moderation state")

// State is the approval status carried independently by a course, topic or lecture.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

// Kind identifies the level of a node in the course tree.
type Kind string

const (
	KindCourse  Kind = "course"
	KindTopic   Kind = "topic"
	KindLecture Kind = "lecture"
)

// Parse normalises user input into a State.
func Parse(value string) (State, error) {
	state := State(strings.ToLower(strings.TrimSpace(value)))
	if !state.Valid() {
		return "", ErrInvalidState
	}
	return state, nil
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateApproved, StateRejected:
		return true
	}
	return false
}

// Transition validates a moderator decision. Every move between valid states is allowed,
// including approve after reject and back to pending.
func Transition(from, to State) (State, error) {
	if !from.Valid() || !to.Valid() {
		return from, ErrInvalidState
	}
	return to, nil
}

// AfterOwnerEdit returns the state a node takes after its owner edits it.
// Topics and lectures go back to review; a course keeps its current state.
func AfterOwnerEdit(kind Kind, current State) State {
	switch kind {
	case KindTopic, KindLecture:
		return StatePending
	default:
		return current
	}
}

// IsVisible reports whether a node can be shown to students: the node and every
// ancestor on its path to the root must be approved.
func IsVisible(node State, ancestors ...State) bool {
	if node != StateApproved {
		return false
	}
	for _, ancestor := range ancestors {
		if ancestor != StateApproved {
			return false
		}
	}
	return true
}
