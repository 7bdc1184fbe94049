package models

import "time"

// StartBalance is the balance granted to a user on first contact.
const StartBalance int64 = 1000

// User holds the sole mutable shared resource in the system: the balance.
// All balance adjustments go through the ledger and are atomic per user.
type User struct {
	ID        int64     `json:"id" redis:"id"`
	Name      string    `json:"name" redis:"name"`
	Balance   int64     `json:"balance" redis:"balance"`
	CreatedAt time.Time `json:"created_at" redis:"created_at"`
}

func NewUser(id int64, name string) *User {
	return &User{
		ID:        id,
		Name:      name,
		Balance:   StartBalance,
		CreatedAt: time.Now(),
	}
}
