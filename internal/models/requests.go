package models

// BetRequest is the body of POST /rooms/:room/bets.
type BetRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (r *BetRequest) Validate() error {
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// TransferRequest is the body of POST /transfer.
type TransferRequest struct {
	To     int64 `json:"to" binding:"required"`
	Amount int64 `json:"amount" binding:"required"`
}

func (r *TransferRequest) Validate() error {
	if r.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// LoginRequest registers or resolves a user for the demo auth flow.
type LoginRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Name   string `json:"name"`
}
