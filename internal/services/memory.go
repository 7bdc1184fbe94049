package services

import (
	"context"
	"sync"

	"crash-rounds-backend/internal/models"
)

// MemoryStore is a mutex-guarded in-process Store. It backs tests and the
// standalone dev mode; the redis store is the production backend.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[int64]*models.User
	rounds       map[string]*models.Round
	bets         map[string][]*models.Bet
	transactions map[int64][]*models.Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[int64]*models.User),
		rounds:       make(map[string]*models.Round),
		bets:         make(map[string][]*models.Bet),
		transactions: make(map[int64][]*models.Transaction),
	}
}

func (s *MemoryStore) EnsureUser(ctx context.Context, userID int64, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[userID]; ok {
		if name != "" && user.Name == "" {
			user.Name = name
		}
		return user.Balance, nil
	}

	user := models.NewUser(userID, name)
	s.users[userID] = user
	return user.Balance, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) GetBalance(ctx context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return 0, models.ErrUserNotFound
	}
	return user.Balance, nil
}

func (s *MemoryStore) AdjustBalance(ctx context.Context, userID int64, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.adjustLocked(userID, delta)
}

func (s *MemoryStore) adjustLocked(userID int64, delta int64) (int64, error) {
	user, ok := s.users[userID]
	if !ok {
		return 0, models.ErrUserNotFound
	}
	if user.Balance+delta < 0 {
		return user.Balance, models.ErrInsufficientFunds
	}
	user.Balance += delta
	return user.Balance, nil
}

func (s *MemoryStore) Transfer(ctx context.Context, from, to, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[to]; !ok {
		return 0, models.ErrUserNotFound
	}

	newBalance, err := s.adjustLocked(from, -amount)
	if err != nil {
		return newBalance, err
	}
	if _, err := s.adjustLocked(to, amount); err != nil {
		// Undo the debit; credit of a positive amount cannot underflow, so
		// this only happens if the target vanished, which the map cannot do
		// under the held lock.
		_, _ = s.adjustLocked(from, amount)
		return 0, err
	}
	return newBalance, nil
}

func (s *MemoryStore) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[tx.UserID] = append(s.transactions[tx.UserID], tx)
	return nil
}

func (s *MemoryStore) GetTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.transactions[userID]
	if limit <= 0 || limit > int64(len(all)) {
		limit = int64(len(all))
	}

	// Newest first.
	out := make([]*models.Transaction, 0, limit)
	for i := len(all) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *MemoryStore) SaveRound(ctx context.Context, round *models.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *round
	s.rounds[round.Room] = &copied
	return nil
}

func (s *MemoryStore) GetRound(ctx context.Context, room string) (*models.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	round, ok := s.rounds[room]
	if !ok {
		return nil, models.ErrRoundNotFound
	}
	copied := *round
	return &copied, nil
}

func (s *MemoryStore) UpdateRound(ctx context.Context, round *models.Round) error {
	return s.SaveRound(ctx, round)
}

func (s *MemoryStore) SaveBet(ctx context.Context, bet *models.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *bet
	s.bets[bet.Room] = append(s.bets[bet.Room], &copied)
	return nil
}

func (s *MemoryStore) UpdateBet(ctx context.Context, bet *models.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.bets[bet.Room] {
		if existing.ID == bet.ID {
			copied := *bet
			s.bets[bet.Room][i] = &copied
			return nil
		}
	}
	return models.ErrNoBet
}

func (s *MemoryStore) GetBets(ctx context.Context, room string) ([]*models.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bets := s.bets[room]
	out := make([]*models.Bet, 0, len(bets))
	for _, bet := range bets {
		copied := *bet
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) ClearBets(ctx context.Context, room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bets, room)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
