package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crash-rounds-backend/internal/models"
	"crash-rounds-backend/internal/services"
	"crash-rounds-backend/pkg/logger"
)

type UserHandler struct {
	store      services.Store
	jwtService *services.JWTService
}

func NewUserHandler(store services.Store, jwtService *services.JWTService) *UserHandler {
	return &UserHandler{store: store, jwtService: jwtService}
}

// Login registers the user on first contact (with the starting balance) and
// issues a token.
func (h *UserHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	balance, err := h.store.EnsureUser(c.Request.Context(), req.UserID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ensure user"})
		return
	}

	token, err := h.jwtService.GenerateToken(req.UserID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"balance": balance,
	})
}

func (h *UserHandler) Me(c *gin.Context) {
	userID := c.GetInt64("user_id")

	user, err := h.store.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *UserHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	balance, err := h.store.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "balance": balance})
}

// Transfer moves coins to another user. The target must already exist; both
// legs are journaled.
func (h *UserHandler) Transfer(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrInvalidAmount.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}
	if req.To == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot transfer to yourself"})
		return
	}

	balance, err := h.store.Transfer(c.Request.Context(), userID, req.To, req.Amount)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	senderTx := models.NewTransaction(userID, models.TransactionTypeTransfer, -req.Amount, balance, "",
		fmt.Sprintf("transfer to %d", req.To))
	if err := h.store.SaveTransaction(ctx, senderTx); err != nil {
		logger.Warn(ctx).Err(err).Msg("failed to journal transfer debit")
	}
	if targetBalance, err := h.store.GetBalance(ctx, req.To); err == nil {
		targetTx := models.NewTransaction(req.To, models.TransactionTypeTransfer, req.Amount, targetBalance, "",
			fmt.Sprintf("transfer from %d", userID))
		if err := h.store.SaveTransaction(ctx, targetTx); err != nil {
			logger.Warn(ctx).Err(err).Msg("failed to journal transfer credit")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"to":      req.To,
		"amount":  req.Amount,
		"balance": balance,
	})
}

func (h *UserHandler) GetTransactions(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	transactions, err := h.store.GetTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": transactions,
		"count":        len(transactions),
	})
}
