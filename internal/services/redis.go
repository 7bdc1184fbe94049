package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"crash-rounds-backend/internal/config"
	"crash-rounds-backend/internal/models"
)

// RedisStore is the production Store backend. Users, rounds and bets are JSON
// values; balance mutations go through Lua scripts so each user's balance is
// adjusted atomically even with concurrent bets, transfers and payouts.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) EnsureUser(ctx context.Context, userID int64, name string) (int64, error) {
	key := fmt.Sprintf(keyUser, userID)

	user := models.NewUser(userID, name)
	data, err := json.Marshal(user)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal user: %w", err)
	}

	created, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	if created {
		return user.Balance, nil
	}

	existing, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return existing.Balance, nil
}

func (s *RedisStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	key := fmt.Sprintf(keyUser, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (s *RedisStore) GetBalance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

var adjustBalanceScript = redis.NewScript(`
	local key = KEYS[1]
	local delta = tonumber(ARGV[1])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("user not found")
	end

	local user = cjson.decode(data)
	local balance = user.balance + delta
	if balance < 0 then
		return redis.error_reply("insufficient funds")
	end

	user.balance = balance
	redis.call("SET", key, cjson.encode(user))

	return balance
`)

func (s *RedisStore) AdjustBalance(ctx context.Context, userID int64, delta int64) (int64, error) {
	key := fmt.Sprintf(keyUser, userID)

	balance, err := adjustBalanceScript.Run(ctx, s.client, []string{key}, delta).Int64()
	if err != nil {
		return 0, mapLedgerErr(err)
	}
	return balance, nil
}

var transferScript = redis.NewScript(`
	local from = KEYS[1]
	local to = KEYS[2]
	local amount = tonumber(ARGV[1])

	local fromData = redis.call("GET", from)
	local toData = redis.call("GET", to)
	if not fromData or not toData then
		return redis.error_reply("user not found")
	end

	local sender = cjson.decode(fromData)
	if sender.balance < amount then
		return redis.error_reply("insufficient funds")
	end

	local target = cjson.decode(toData)
	sender.balance = sender.balance - amount
	target.balance = target.balance + amount

	redis.call("SET", from, cjson.encode(sender))
	redis.call("SET", to, cjson.encode(target))

	return sender.balance
`)

func (s *RedisStore) Transfer(ctx context.Context, from, to, amount int64) (int64, error) {
	keys := []string{fmt.Sprintf(keyUser, from), fmt.Sprintf(keyUser, to)}

	balance, err := transferScript.Run(ctx, s.client, keys, amount).Int64()
	if err != nil {
		return 0, mapLedgerErr(err)
	}
	return balance, nil
}

func mapLedgerErr(err error) error {
	switch {
	case strings.Contains(err.Error(), "insufficient funds"):
		return models.ErrInsufficientFunds
	case strings.Contains(err.Error(), "user not found"):
		return models.ErrUserNotFound
	default:
		return fmt.Errorf("ledger script failed: %w", err)
	}
}

func (s *RedisStore) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	txKey := fmt.Sprintf(keyTransaction, tx.ID)
	if err := s.client.Set(ctx, txKey, data, ttlTransaction).Err(); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	userTxKey := fmt.Sprintf(keyUserTransactions, tx.UserID)
	if err := s.client.ZAdd(ctx, userTxKey, redis.Z{
		Score:  float64(tx.CreatedAt.UnixNano()),
		Member: tx.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index transaction: %w", err)
	}

	s.client.ZRemRangeByRank(ctx, userTxKey, 0, -int64(transactionHistoryLimit)-1)

	return nil
}

func (s *RedisStore) GetTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > transactionHistoryLimit {
		limit = 50
	}

	userTxKey := fmt.Sprintf(keyUserTransactions, userID)
	ids, err := s.client.ZRevRange(ctx, userTxKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]*models.Transaction, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, fmt.Sprintf(keyTransaction, id)).Result()
		if err != nil {
			continue
		}
		var tx models.Transaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}
		out = append(out, &tx)
	}
	return out, nil
}

func (s *RedisStore) SaveRound(ctx context.Context, round *models.Round) error {
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %w", err)
	}
	return s.client.Set(ctx, fmt.Sprintf(keyRound, round.Room), data, 0).Err()
}

func (s *RedisStore) GetRound(ctx context.Context, room string) (*models.Round, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyRound, room)).Result()
	if err == redis.Nil {
		return nil, models.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}

	var round models.Round
	if err := json.Unmarshal([]byte(data), &round); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round: %w", err)
	}
	return &round, nil
}

func (s *RedisStore) UpdateRound(ctx context.Context, round *models.Round) error {
	return s.SaveRound(ctx, round)
}

func (s *RedisStore) SaveBet(ctx context.Context, bet *models.Bet) error {
	data, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("failed to marshal bet: %w", err)
	}
	field := strconv.FormatInt(bet.UserID, 10)
	return s.client.HSet(ctx, fmt.Sprintf(keyRoomBets, bet.Room), field, data).Err()
}

func (s *RedisStore) UpdateBet(ctx context.Context, bet *models.Bet) error {
	return s.SaveBet(ctx, bet)
}

func (s *RedisStore) GetBets(ctx context.Context, room string) ([]*models.Bet, error) {
	entries, err := s.client.HGetAll(ctx, fmt.Sprintf(keyRoomBets, room)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bets: %w", err)
	}

	out := make([]*models.Bet, 0, len(entries))
	for _, data := range entries {
		var bet models.Bet
		if err := json.Unmarshal([]byte(data), &bet); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bet: %w", err)
		}
		out = append(out, &bet)
	}
	return out, nil
}

func (s *RedisStore) ClearBets(ctx context.Context, room string) error {
	return s.client.Del(ctx, fmt.Sprintf(keyRoomBets, room)).Err()
}

// FlushTestData removes a user's keys; test helper only.
func (s *RedisStore) FlushTestData(ctx context.Context, userID int64, rooms ...string) {
	s.client.Del(ctx, fmt.Sprintf(keyUser, userID))
	s.client.Del(ctx, fmt.Sprintf(keyUserTransactions, userID))
	for _, room := range rooms {
		s.client.Del(ctx, fmt.Sprintf(keyRound, room))
		s.client.Del(ctx, fmt.Sprintf(keyRoomBets, room))
	}
}
