package models

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Bet is a single user's stake in a room's round. The amount is debited from
// the user's balance at placement time. Cashed flips false to true at most
// once; CashoutMultiplier stays 0 until then.
type Bet struct {
	ID                string    `json:"id" redis:"id"`
	Room              string    `json:"room" redis:"room"`
	UserID            int64     `json:"user_id" redis:"user_id"`
	Amount            int64     `json:"amount" redis:"amount"`
	Cashed            bool      `json:"cashed" redis:"cashed"`
	CashoutMultiplier float64   `json:"cashout_multiplier" redis:"cashout_multiplier"`
	PlacedAt          time.Time `json:"placed_at" redis:"placed_at"`
}

// NewBet creates a bet with a generated id.
func NewBet(room string, userID int64, amount int64) *Bet {
	return &Bet{
		ID:       GenerateID(),
		Room:     room,
		UserID:   userID,
		Amount:   amount,
		PlacedAt: time.Now(),
	}
}

// Payout returns what this bet would pay at its recorded cash-out multiplier.
func (b *Bet) Payout() int64 {
	return int64(float64(b.Amount) * b.CashoutMultiplier)
}

var (
	node *snowflake.Node
	once sync.Once
)

func initSnowflake() {
	var err error
	node, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

// GenerateID returns a new snowflake id for bets and transactions.
func GenerateID() string {
	once.Do(initSnowflake)
	return node.Generate().String()
}
