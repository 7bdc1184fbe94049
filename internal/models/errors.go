package models

import "errors"

// Recoverable error taxonomy. Handlers map these to user-visible responses;
// none of them should ever take the process down.
var (
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRoundNotFound     = errors.New("no round for this room")
	ErrRoundNotAccepting = errors.New("round is not accepting bets")
	ErrRoundNotRunning   = errors.New("round is not running")
	ErrRoundInProgress   = errors.New("a round is already in progress")
	ErrNoBetsPlaced      = errors.New("no bets placed, round cancelled")
	ErrNoBet             = errors.New("no bet in this round")
	ErrAlreadyCashedOut  = errors.New("already cashed out")
	ErrTooLate           = errors.New("too late, round already crashed")
	ErrUserNotFound      = errors.New("user not found")
)
