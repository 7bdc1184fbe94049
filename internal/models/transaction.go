package models

import "time"

type TransactionType string

const (
	TransactionTypeBet      TransactionType = "bet"
	TransactionTypePayout   TransactionType = "payout"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Transaction is one journal entry for a balance change.
type Transaction struct {
	ID           string          `json:"id" redis:"id"`
	UserID       int64           `json:"user_id" redis:"user_id"`
	Type         TransactionType `json:"type" redis:"type"`
	Amount       int64           `json:"amount" redis:"amount"`
	BalanceAfter int64           `json:"balance_after" redis:"balance_after"`
	Room         string          `json:"room,omitempty" redis:"room"`
	Description  string          `json:"description" redis:"description"`
	CreatedAt    time.Time       `json:"created_at" redis:"created_at"`
}

func NewTransaction(userID int64, txType TransactionType, amount, balanceAfter int64, room, description string) *Transaction {
	return &Transaction{
		ID:           GenerateID(),
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Room:         room,
		Description:  description,
		CreatedAt:    time.Now(),
	}
}
