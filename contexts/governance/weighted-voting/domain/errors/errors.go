package errors

import "errors"

var (
	ErrInvalidClass        = errors.New("invalid voter class")
	ErrInvalidLevel        = errors.New("invalid decision level")
	ErrInvalidChoice       = errors.New("invalid vote choice")
	ErrInvalidVoteInput    = errors.New("invalid vote input")
	ErrInvalidWeight       = errors.New("invalid class weight")
	ErrProposalNotFound    = errors.New("proposal not found")
	ErrVoteNotFound        = errors.New("vote not found")
	ErrVoteNotOwned        = errors.New("vote belongs to another voter")
	ErrDecisionNotFound    = errors.New("decision not found")
	ErrConflict            = errors.New("governance write conflict")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
