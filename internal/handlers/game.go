package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"crash-rounds-backend/internal/models"
	"crash-rounds-backend/internal/services"
)

type GameHandler struct {
	engine *services.RoundEngine
}

func NewGameHandler(engine *services.RoundEngine) *GameHandler {
	return &GameHandler{engine: engine}
}

// errStatus maps the recoverable error taxonomy onto HTTP statuses. Anything
// unmapped is a 500.
func errStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrRoundNotAccepting),
		errors.Is(err, models.ErrRoundNotRunning),
		errors.Is(err, models.ErrNoBetsPlaced):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrRoundNotFound),
		errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrNoBet):
		return http.StatusNotFound
	case errors.Is(err, models.ErrRoundInProgress),
		errors.Is(err, models.ErrAlreadyCashedOut),
		errors.Is(err, models.ErrTooLate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *GameHandler) StartRound(c *gin.Context) {
	room := c.Param("room")

	commitment, err := h.engine.StartRound(c.Request.Context(), room)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"room":       room,
		"commitment": commitment,
		"message":    "round prepared, bets are open",
	})
}

func (h *GameHandler) PlaceBet(c *gin.Context) {
	room := c.Param("room")
	userID := c.GetInt64("user_id")

	var req models.BetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrInvalidAmount.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	balance, err := h.engine.PlaceBet(c.Request.Context(), room, userID, req.Amount)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"room":    room,
		"amount":  req.Amount,
		"balance": balance,
	})
}

func (h *GameHandler) Go(c *gin.Context) {
	room := c.Param("room")

	err := h.engine.Go(c.Request.Context(), room)
	if errors.Is(err, models.ErrNoBetsPlaced) {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"room":    room,
			"message": "no bets placed, round cancelled",
		})
		return
	}
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"room":    room,
		"message": "round running",
	})
}

func (h *GameHandler) CashOut(c *gin.Context) {
	room := c.Param("room")
	userID := c.GetInt64("user_id")

	multiplier, payout, err := h.engine.CashOut(c.Request.Context(), room, userID)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"room":       room,
		"multiplier": multiplier,
		"payout":     payout,
		"message":    "payout lands after the crash",
	})
}

func (h *GameHandler) GetRound(c *gin.Context) {
	room := c.Param("room")

	view, err := h.engine.View(c.Request.Context(), room)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   view,
	})
}

func (h *GameHandler) Reveal(c *gin.Context) {
	room := c.Param("room")

	result, err := h.engine.Reveal(c.Request.Context(), room)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reveal":  result,
	})
}
