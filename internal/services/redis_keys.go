package services

import "time"

const (
	keyUser             = "user:%d"
	keyRound            = "round:%s"
	keyRoomBets         = "bets:%s"
	keyTransaction      = "tx:%s"
	keyUserTransactions = "user:%d:tx"

	ttlTransaction = 30 * 24 * time.Hour

	// Journal entries kept per user.
	transactionHistoryLimit = 100
)
