package services

import (
	"context"

	"crash-rounds-backend/internal/models"
)

// Ledger is the balance-keeping collaborator of the round engine. Adjustments
// are atomic per user; a debit that would push a balance below zero fails with
// models.ErrInsufficientFunds and leaves the balance untouched.
type Ledger interface {
	// EnsureUser creates the user with the starting balance if absent and
	// returns the current balance. Idempotent.
	EnsureUser(ctx context.Context, userID int64, name string) (int64, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetBalance(ctx context.Context, userID int64) (int64, error)
	// AdjustBalance applies delta (positive or negative) and returns the new
	// balance.
	AdjustBalance(ctx context.Context, userID int64, delta int64) (int64, error)
	// Transfer moves amount from one existing user to another and returns the
	// sender's new balance. The target must exist (models.ErrUserNotFound).
	Transfer(ctx context.Context, from, to, amount int64) (int64, error)

	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error)
}

// RoundStore persists round and bet state. The engine treats its in-memory
// round as authoritative while a round is live and writes through here.
type RoundStore interface {
	SaveRound(ctx context.Context, round *models.Round) error
	GetRound(ctx context.Context, room string) (*models.Round, error)
	UpdateRound(ctx context.Context, round *models.Round) error

	SaveBet(ctx context.Context, bet *models.Bet) error
	UpdateBet(ctx context.Context, bet *models.Bet) error
	GetBets(ctx context.Context, room string) ([]*models.Bet, error)
	ClearBets(ctx context.Context, room string) error
}

// Store is a full persistence backend.
type Store interface {
	Ledger
	RoundStore
	Close() error
}
