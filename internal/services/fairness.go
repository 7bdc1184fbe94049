package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	mrand "math/rand"
	"sync"
	"time"
)

// Tier is one rarity band of the public crash-point distribution. The
// exponent biases the uniform draw toward the tier's lower bound; a higher
// exponent means a heavier concentration near Min.
type Tier struct {
	Name        string
	Probability float64
	Min         float64
	Max         float64
	Exponent    float64
}

// FairnessConfig describes the crash-point distribution. Tier probabilities
// must sum to 1.0.
type FairnessConfig struct {
	MaxMultiplier float64
	Tiers         []Tier
}

// DefaultFairnessConfig returns the published four-tier distribution.
func DefaultFairnessConfig(maxMultiplier float64) FairnessConfig {
	return FairnessConfig{
		MaxMultiplier: maxMultiplier,
		Tiers: []Tier{
			{Name: "common", Probability: 0.85, Min: 1.00, Max: 4.00, Exponent: 1.3},
			{Name: "rare", Probability: 0.12, Min: 5.00, Max: 10.00, Exponent: 1.5},
			{Name: "very_rare", Probability: 0.025, Min: 10.00, Max: 50.00, Exponent: 2.0},
			{Name: "extreme", Probability: 0.005, Min: 50.00, Max: maxMultiplier, Exponent: 3.0},
		},
	}
}

// Commitment is what a round is opened with: a secret held back until
// settlement, its published hash, and the crash point fixed at creation.
type Commitment struct {
	Secret     string
	Hash       string
	CrashPoint float64
}

// FairnessEngine generates round commitments and supports later audit.
//
// The crash point is sampled from the public tier distribution independently
// of the secret, so the reveal proves the secret was not chosen after bets,
// but does not bind the crash point itself. CrashFromSecret is the
// deterministic alternative kept for audit tooling.
type FairnessEngine struct {
	cfg FairnessConfig

	mu  sync.Mutex
	rnd *mrand.Rand
}

// NewFairnessEngine validates the tier table and returns an engine.
func NewFairnessEngine(cfg FairnessConfig) (*FairnessEngine, error) {
	var total float64
	for _, tier := range cfg.Tiers {
		if tier.Probability < 0 {
			return nil, fmt.Errorf("tier %s: negative probability", tier.Name)
		}
		if tier.Max <= tier.Min {
			return nil, fmt.Errorf("tier %s: max %.2f not above min %.2f", tier.Name, tier.Max, tier.Min)
		}
		total += tier.Probability
	}
	if math.Abs(total-1.0) > 1e-9 {
		return nil, fmt.Errorf("tier probabilities sum to %.6f, want 1.0", total)
	}
	if cfg.MaxMultiplier < 1.0 {
		return nil, fmt.Errorf("max multiplier %.2f below 1.00", cfg.MaxMultiplier)
	}

	return &FairnessEngine{
		cfg: cfg,
		rnd: mrand.New(mrand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Commit generates a fresh secret, its commitment hash, and the round's crash
// point. The secret must not be published before settlement.
func (f *FairnessEngine) Commit() (Commitment, error) {
	secret, err := generateSecret()
	if err != nil {
		return Commitment{}, fmt.Errorf("generate secret: %w", err)
	}

	return Commitment{
		Secret:     secret,
		Hash:       f.Reveal(secret),
		CrashPoint: f.sampleCrashPoint(),
	}, nil
}

// Reveal recomputes the commitment hash for a secret so players can compare
// it against the hash published at round start.
func (f *FairnessEngine) Reveal(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// CrashFromSecret derives a crash point deterministically from the secret.
// Not used for live rounds; kept so auditors can compare both schemes.
func (f *FairnessEngine) CrashFromSecret(secret string) float64 {
	sum := sha256.Sum256([]byte(secret))
	n := new(big.Int).SetBytes(sum[:])
	x, _ := new(big.Rat).SetFrac(n, new(big.Int).Lsh(big.NewInt(1), 256)).Float64()
	if x >= 1.0 {
		x = 0.999999999999
	}
	return f.clamp(1.0 / (1.0 - x))
}

func (f *FairnessEngine) sampleCrashPoint() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	tier := f.cfg.Tiers[len(f.cfg.Tiers)-1]
	r := f.rnd.Float64()
	cum := 0.0
	for _, t := range f.cfg.Tiers {
		cum += t.Probability
		if r <= cum {
			tier = t
			break
		}
	}

	draw := math.Pow(f.rnd.Float64(), tier.Exponent)
	return f.clamp(tier.Min + draw*(tier.Max-tier.Min))
}

func (f *FairnessEngine) clamp(m float64) float64 {
	m = round2(m)
	if m < 1.0 {
		m = 1.0
	}
	if m > f.cfg.MaxMultiplier {
		m = f.cfg.MaxMultiplier
	}
	return m
}

func generateSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
