package verification

import "errors"

// Every failure below is terminal for the attempted operation: nothing is
// committed when one of these is returned. The reputation credit issued on a
// successful response is the single best-effort exception and never surfaces.
var (
	ErrNotRegistered            = errors.New("caller is not a registered citizen")
	ErrInvalidInput             = errors.New("invalid input")
	ErrRequestNotFound          = errors.New("verification request not found")
	ErrRequestClosed            = errors.New("verification request is not open")
	ErrDeadlinePassed           = errors.New("verification deadline has passed")
	ErrInsufficientReputation   = errors.New("reputation below minimum required to verify")
	ErrResponseAlreadySubmitted = errors.New("citizen already responded to this request")
	ErrSelfVerification         = errors.New("cannot verify own request")
	ErrSelfDispute              = errors.New("cannot dispute own response")
	ErrAlreadyDisputed          = errors.New("response is already disputed")
	ErrNotDisputed              = errors.New("request is not disputed")
	ErrInvalidFinalStatus       = errors.New("final status must be VERIFIED or REJECTED")
	ErrUnauthorized             = errors.New("caller lacks the required role")
)
