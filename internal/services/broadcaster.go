package services

import (
	"context"

	"crash-rounds-backend/internal/models"

	"crash-rounds-backend/pkg/logger"
)

// Settlement is the final reveal published when a round finishes.
type Settlement struct {
	Room       string          `json:"room"`
	Secret     string          `json:"secret"`
	Commitment string          `json:"commitment"`
	CrashPoint float64         `json:"crash_point"`
	Payouts    []models.Payout `json:"payouts"`
}

// Notifier is the presentation port the round engine pushes UI updates
// through. Delivery is best-effort: the engine logs publish failures and
// moves on, it never rolls back a state transition because a publish failed.
type Notifier interface {
	PublishCommitment(room, commitment string) error
	// PublishTick renders the current multiplier with a cash-out affordance.
	PublishTick(room string, multiplier float64) error
	PublishSettlement(room string, settlement Settlement) error
}

// LogNotifier renders round updates into the log stream. Used for headless
// runs and as the fallback when no websocket hub is attached.
type LogNotifier struct{}

func (LogNotifier) PublishCommitment(room, commitment string) error {
	logger.Info(context.Background()).
		Str("room", room).
		Str("commitment", commitment).
		Msg("round open, place your bets")
	return nil
}

func (LogNotifier) PublishTick(room string, multiplier float64) error {
	logger.Info(context.Background()).
		Str("room", room).
		Float64("multiplier", multiplier).
		Msg("tick")
	return nil
}

func (LogNotifier) PublishSettlement(room string, settlement Settlement) error {
	logger.Info(context.Background()).
		Str("room", room).
		Str("secret", settlement.Secret).
		Str("commitment", settlement.Commitment).
		Float64("crash_point", settlement.CrashPoint).
		Int("payouts", len(settlement.Payouts)).
		Msg("round settled")
	return nil
}
