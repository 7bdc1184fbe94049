package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"crash-rounds-backend/internal/models"
	"crash-rounds-backend/pkg/logger"
)

// Fairness is the commitment source for new rounds. The engine only needs
// Commit and Reveal; tests stub it to pin crash points.
type Fairness interface {
	Commit() (Commitment, error)
	Reveal(secret string) string
}

// EngineConfig tunes the tick loop.
type EngineConfig struct {
	// TickInterval is the delay between multiplier advances.
	TickInterval time.Duration
	// TickCap bounds the loop; hitting it means the crash point was
	// implausibly high relative to the growth rate and is logged as anomalous.
	TickCap int
	// Growth per tick is GrowthBase + uniform(-GrowthJitter, +GrowthJitter).
	GrowthBase   float64
	GrowthJitter float64
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickInterval: 700 * time.Millisecond,
		TickCap:      400,
		GrowthBase:   1.06,
		GrowthJitter: 0.01,
	}
}

// roomRound is the live state of one room. Its mutex is the single point of
// arbitration between the tick loop advancing the multiplier and concurrent
// cash-out requests: both take it, so a cash-out always sees one consistent
// snapshot of (state, multiplier, crash point).
type roomRound struct {
	mu    sync.Mutex
	round *models.Round
	bets  map[int64]*models.Bet
}

// RoundEngine owns the round lifecycle for every room. Rooms are fully
// independent: each running round has its own goroutine and its own lock, no
// global lock is held during play.
type RoundEngine struct {
	cfg      EngineConfig
	fairness Fairness
	store    Store
	notifier Notifier

	mu    sync.Mutex
	rooms map[string]*roomRound

	rndMu sync.Mutex
	rnd   *rand.Rand

	wg     sync.WaitGroup
	done   chan struct{}
	closed sync.Once
}

func NewRoundEngine(cfg EngineConfig, fairness Fairness, store Store, notifier Notifier) *RoundEngine {
	return &RoundEngine{
		cfg:      cfg,
		fairness: fairness,
		store:    store,
		notifier: notifier,
		rooms:    make(map[string]*roomRound),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		done:     make(chan struct{}),
	}
}

// SetNotifier swaps the presentation port; used when the websocket hub is
// constructed after the engine.
func (e *RoundEngine) SetNotifier(n Notifier) {
	e.notifier = n
}

func (e *RoundEngine) room(room string) *roomRound {
	e.mu.Lock()
	defer e.mu.Unlock()

	rr, ok := e.rooms[room]
	if !ok {
		rr = &roomRound{bets: make(map[int64]*models.Bet)}
		e.rooms[room] = rr
	}
	return rr
}

// StartRound opens a new round for the room and returns the published
// commitment. The previous round must be finished or absent.
func (e *RoundEngine) StartRound(ctx context.Context, room string) (string, error) {
	rr := e.room(room)
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.round != nil && rr.round.Active() {
		return "", models.ErrRoundInProgress
	}

	commit, err := e.fairness.Commit()
	if err != nil {
		return "", fmt.Errorf("commit round: %w", err)
	}

	round := &models.Round{
		ID:         uuid.New().String(),
		Room:       room,
		Secret:     commit.Secret,
		Commitment: commit.Hash,
		CrashPoint: commit.CrashPoint,
		State:      models.RoundStateAccepting,
		Multiplier: 1.00,
		CreatedAt:  time.Now(),
	}

	if err := e.store.SaveRound(ctx, round); err != nil {
		return "", fmt.Errorf("persist round: %w", err)
	}
	if err := e.store.ClearBets(ctx, room); err != nil {
		return "", fmt.Errorf("clear stale bets: %w", err)
	}

	rr.round = round
	rr.bets = make(map[int64]*models.Bet)

	logger.Info(ctx).
		Str("room", room).
		Str("round_id", round.ID).
		Str("commitment", round.Commitment).
		Msg("round opened")

	if err := e.notifier.PublishCommitment(room, round.Commitment); err != nil {
		logger.Warn(ctx).Err(err).Str("room", room).Msg("commitment publish failed")
	}

	return round.Commitment, nil
}

// PlaceBet debits the user and records their stake. A second placement by the
// same user folds into the existing bet. Returns the user's new balance.
func (e *RoundEngine) PlaceBet(ctx context.Context, room string, userID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, models.ErrInvalidAmount
	}

	rr := e.room(room)
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.round == nil {
		return 0, models.ErrRoundNotFound
	}
	if rr.round.State != models.RoundStateAccepting {
		return 0, models.ErrRoundNotAccepting
	}

	balance, err := e.store.AdjustBalance(ctx, userID, -amount)
	if err != nil {
		return 0, err
	}

	bet, ok := rr.bets[userID]
	if ok {
		bet.Amount += amount
		err = e.store.UpdateBet(ctx, bet)
	} else {
		bet = models.NewBet(room, userID, amount)
		rr.bets[userID] = bet
		err = e.store.SaveBet(ctx, bet)
	}
	if err != nil {
		// Undo the debit rather than keep a bet the store does not know about.
		if _, creditErr := e.store.AdjustBalance(ctx, userID, amount); creditErr != nil {
			logger.Error(ctx).Err(creditErr).
				Str("room", room).Int64("user_id", userID).
				Msg("failed to refund after bet persist failure")
		}
		delete(rr.bets, userID)
		return 0, fmt.Errorf("persist bet: %w", err)
	}

	e.journal(ctx, userID, models.TransactionTypeBet, -amount, balance, room,
		fmt.Sprintf("bet %d in room %s", amount, room))

	logger.Info(ctx).
		Str("room", room).
		Int64("user_id", userID).
		Int64("amount", amount).
		Msg("bet placed")

	return balance, nil
}

// Go closes betting and starts the tick loop. A round with no bets finishes
// immediately and reports models.ErrNoBetsPlaced; no loop runs for it.
func (e *RoundEngine) Go(ctx context.Context, room string) error {
	rr := e.room(room)
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.round == nil {
		return models.ErrRoundNotFound
	}
	if rr.round.State != models.RoundStateAccepting {
		return models.ErrRoundNotAccepting
	}

	if len(rr.bets) == 0 {
		rr.round.State = models.RoundStateFinished
		rr.round.FinishedAt = time.Now()
		if err := e.store.UpdateRound(ctx, rr.round); err != nil {
			logger.Warn(ctx).Err(err).Str("room", room).Msg("failed to persist cancelled round")
		}
		logger.Info(ctx).Str("room", room).Msg("no bets, round cancelled")
		return models.ErrNoBetsPlaced
	}

	rr.round.State = models.RoundStateRunning
	if err := e.store.UpdateRound(ctx, rr.round); err != nil {
		rr.round.State = models.RoundStateAccepting
		return fmt.Errorf("persist running state: %w", err)
	}

	logger.Info(ctx).
		Str("room", room).
		Str("round_id", rr.round.ID).
		Int("bets", len(rr.bets)).
		Msg("round running")

	if err := e.notifier.PublishTick(room, 1.00); err != nil {
		logger.Warn(ctx).Err(err).Str("room", room).Msg("initial tick publish failed")
	}

	e.wg.Add(1)
	go e.runLoop(room, rr)

	return nil
}

// runLoop drives one room's round until crash, tick cap, or shutdown. It is
// the only writer of the multiplier.
func (e *RoundEngine) runLoop(room string, rr *roomRound) {
	defer e.wg.Done()

	ctx := logger.WithFields(context.Background(), map[string]interface{}{"room": room})

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-e.done:
			// Shutdown: finish the current tick's bookkeeping and leave the
			// round unsettled rather than racing the process exit.
			rr.mu.Lock()
			snapshot := *rr.round
			rr.mu.Unlock()
			if err := e.store.UpdateRound(ctx, &snapshot); err != nil {
				logger.Warn(ctx).Err(err).Msg("failed to persist round on shutdown")
			}
			logger.Warn(ctx).
				Str("round_id", snapshot.ID).
				Float64("multiplier", snapshot.Multiplier).
				Msg("tick loop stopped by shutdown before settlement")
			return

		case <-ticker.C:
			ticks++

			rr.mu.Lock()
			round := rr.round
			next := round2(round.Multiplier * e.growthFactor())
			if next < 1.00 {
				next = 1.00
			}
			if next < round.Multiplier {
				next = round.Multiplier
			}
			round.Multiplier = next
			round.Ticks = ticks
			crashed := round.Crashed()
			capped := !crashed && ticks >= e.cfg.TickCap
			multiplier := round.Multiplier
			snapshot := *round
			rr.mu.Unlock()

			if err := e.store.UpdateRound(ctx, &snapshot); err != nil {
				logger.Warn(ctx).Err(err).Float64("multiplier", multiplier).
					Msg("failed to persist multiplier")
			}

			if err := e.notifier.PublishTick(room, multiplier); err != nil {
				logger.Warn(ctx).Err(err).Msg("tick publish failed")
			}

			if crashed || capped {
				e.settle(ctx, room, rr, capped)
				return
			}
		}
	}
}

func (e *RoundEngine) growthFactor() float64 {
	e.rndMu.Lock()
	defer e.rndMu.Unlock()
	return e.cfg.GrowthBase + (e.rnd.Float64()*2-1)*e.cfg.GrowthJitter
}

// settle finishes the round, pays every bet cashed out below the crash point
// floor(amount*multiplier), reveals the secret, and clears the room's bets.
// A single failed payout is flagged and skipped; the rest still settle.
func (e *RoundEngine) settle(ctx context.Context, room string, rr *roomRound, capped bool) {
	rr.mu.Lock()
	round := rr.round
	round.State = models.RoundStateFinished
	round.FinishedAt = time.Now()
	bets := make([]*models.Bet, 0, len(rr.bets))
	for _, bet := range rr.bets {
		bets = append(bets, bet)
	}
	rr.bets = make(map[int64]*models.Bet)
	snapshot := *round
	rr.mu.Unlock()

	if capped {
		logger.Warn(ctx).
			Str("round_id", snapshot.ID).
			Int("ticks", snapshot.Ticks).
			Float64("crash_point", snapshot.CrashPoint).
			Msg("tick cap reached before crash point, settling anyway")
	} else {
		logger.Info(ctx).
			Str("round_id", snapshot.ID).
			Float64("crash_point", snapshot.CrashPoint).
			Int("ticks", snapshot.Ticks).
			Msg("round crashed")
	}

	if err := e.store.UpdateRound(ctx, &snapshot); err != nil {
		logger.Warn(ctx).Err(err).Msg("failed to persist finished round")
	}

	payouts := make([]models.Payout, 0, len(bets))
	for _, bet := range bets {
		if !bet.Cashed || bet.CashoutMultiplier <= 0 || bet.CashoutMultiplier >= snapshot.CrashPoint {
			continue
		}
		amount := bet.Payout()
		balance, err := e.store.AdjustBalance(ctx, bet.UserID, amount)
		if err != nil {
			logger.Error(ctx).Err(err).
				Int64("user_id", bet.UserID).
				Int64("payout", amount).
				Msg("payout failed, skipping bet")
			continue
		}
		payouts = append(payouts, models.Payout{UserID: bet.UserID, Amount: amount})
		e.journal(ctx, bet.UserID, models.TransactionTypePayout, amount, balance, room,
			fmt.Sprintf("cashed out at %.2fx", bet.CashoutMultiplier))
	}

	if err := e.store.ClearBets(ctx, room); err != nil {
		logger.Warn(ctx).Err(err).Msg("failed to clear settled bets")
	}

	settlement := Settlement{
		Room:       room,
		Secret:     snapshot.Secret,
		Commitment: snapshot.Commitment,
		CrashPoint: snapshot.CrashPoint,
		Payouts:    payouts,
	}
	if err := e.notifier.PublishSettlement(room, settlement); err != nil {
		logger.Warn(ctx).Err(err).Msg("settlement publish failed")
	}
}

// CashOut records the user's exit at the current multiplier. The decision and
// the recorded multiplier come from one atomic snapshot under the room lock:
// after the crash tick it fails with ErrTooLate, and a second call for the
// same user fails with ErrAlreadyCashedOut. Returns the recorded multiplier
// and the payout due at settlement.
func (e *RoundEngine) CashOut(ctx context.Context, room string, userID int64) (float64, int64, error) {
	rr := e.room(room)
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.round == nil {
		return 0, 0, models.ErrRoundNotFound
	}
	if rr.round.State != models.RoundStateRunning {
		return 0, 0, models.ErrRoundNotRunning
	}
	if rr.round.Crashed() {
		return 0, 0, models.ErrTooLate
	}

	bet, ok := rr.bets[userID]
	if !ok {
		return 0, 0, models.ErrNoBet
	}
	if bet.Cashed {
		return 0, 0, models.ErrAlreadyCashedOut
	}

	bet.Cashed = true
	bet.CashoutMultiplier = rr.round.Multiplier
	if err := e.store.UpdateBet(ctx, bet); err != nil {
		logger.Warn(ctx).Err(err).
			Str("room", room).Int64("user_id", userID).
			Msg("failed to persist cash-out")
	}

	logger.Info(ctx).
		Str("room", room).
		Int64("user_id", userID).
		Float64("multiplier", bet.CashoutMultiplier).
		Msg("cashed out, payout at settlement")

	return bet.CashoutMultiplier, bet.Payout(), nil
}

// RevealResult is the audit view of a round. The secret and crash point are
// only disclosed once the round is finished.
type RevealResult struct {
	Commitment string            `json:"commitment"`
	State      models.RoundState `json:"state"`
	Secret     string            `json:"secret,omitempty"`
	CrashPoint float64           `json:"crash_point,omitempty"`
}

// Reveal returns the round's audit data.
func (e *RoundEngine) Reveal(ctx context.Context, room string) (*RevealResult, error) {
	rr := e.room(room)
	rr.mu.Lock()
	defer rr.mu.Unlock()

	round := rr.round
	if round == nil {
		stored, err := e.store.GetRound(ctx, room)
		if err != nil {
			return nil, err
		}
		round = stored
	}

	result := &RevealResult{
		Commitment: round.Commitment,
		State:      round.State,
	}
	if round.State == models.RoundStateFinished {
		result.Secret = round.Secret
		result.CrashPoint = round.CrashPoint
	}
	return result, nil
}

// View returns a read-only snapshot of the room's round.
func (e *RoundEngine) View(ctx context.Context, room string) (*models.RoundView, error) {
	rr := e.room(room)
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.round == nil {
		return nil, models.ErrRoundNotFound
	}

	return &models.RoundView{
		ID:         rr.round.ID,
		Room:       room,
		Commitment: rr.round.Commitment,
		State:      rr.round.State,
		Multiplier: rr.round.Multiplier,
		BetCount:   len(rr.bets),
	}, nil
}

func (e *RoundEngine) journal(ctx context.Context, userID int64, txType models.TransactionType, amount, balance int64, room, description string) {
	tx := models.NewTransaction(userID, txType, amount, balance, room, description)
	if err := e.store.SaveTransaction(ctx, tx); err != nil {
		logger.Warn(ctx).Err(err).Int64("user_id", userID).Msg("failed to journal transaction")
	}
}

// Close stops all tick loops after their current tick and waits for them to
// persist final state. Unfinished rounds are left unsettled.
func (e *RoundEngine) Close() {
	e.closed.Do(func() { close(e.done) })
	e.wg.Wait()
}
