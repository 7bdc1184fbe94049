package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crash-rounds-backend/internal/config"
	"crash-rounds-backend/internal/middleware"
	"crash-rounds-backend/internal/models"
	"crash-rounds-backend/internal/services"
)

type fixedFairness struct {
	crash float64
}

func (f fixedFairness) Commit() (services.Commitment, error) {
	return services.Commitment{
		Secret:     "0123456789abcdef0123456789abcdef",
		Hash:       "commitment-hash",
		CrashPoint: f.crash,
	}, nil
}

func (f fixedFairness) Reveal(secret string) string { return "commitment-hash" }

type testServer struct {
	router *gin.Engine
	store  *services.MemoryStore
	engine *services.RoundEngine
}

func newTestServer(t *testing.T, crash float64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := services.NewMemoryStore()
	engine := services.NewRoundEngine(services.EngineConfig{
		TickInterval: 2 * time.Millisecond,
		TickCap:      400,
		GrowthBase:   1.06,
	}, fixedFairness{crash: crash}, store, services.LogNotifier{})
	t.Cleanup(engine.Close)

	jwtService := services.NewJWTService(&config.Config{JWTSecret: "test-secret"})
	userHandler := NewUserHandler(store, jwtService)
	gameHandler := NewGameHandler(engine)

	router := gin.New()
	router.POST("/auth/login", userHandler.Login)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/balance", userHandler.GetBalance)
		protected.POST("/transfer", userHandler.Transfer)
		protected.GET("/transactions", userHandler.GetTransactions)

		rooms := protected.Group("/rooms/:room")
		{
			rooms.POST("/start", gameHandler.StartRound)
			rooms.POST("/bets", gameHandler.PlaceBet)
			rooms.POST("/go", gameHandler.Go)
			rooms.POST("/cashout", gameHandler.CashOut)
			rooms.GET("/round", gameHandler.GetRound)
			rooms.GET("/reveal", gameHandler.Reveal)
		}
	}

	return &testServer{router: router, store: store, engine: engine}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if len(rec.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec.Code, parsed
}

func (s *testServer) login(t *testing.T, userID int64, name string) string {
	t.Helper()
	code, resp := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"user_id": userID, "name": name})
	require.Equal(t, http.StatusOK, code)
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, 3.50)

	code, _ := srv.do(t, http.MethodGet, "/api/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = srv.do(t, http.MethodGet, "/api/balance", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLoginIssuesTokenAndStartBalance(t *testing.T) {
	srv := newTestServer(t, 3.50)

	code, resp := srv.do(t, http.MethodPost, "/auth/login", "", gin.H{"user_id": 1, "name": "alice"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(models.StartBalance), resp["balance"])

	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)

	code, resp = srv.do(t, http.MethodGet, "/api/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(models.StartBalance), resp["balance"])
}

func TestRoundFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, 50.0)
	token := srv.login(t, 1, "alice")

	// Bet before any round exists.
	code, _ := srv.do(t, http.MethodPost, "/api/rooms/main/bets", token, gin.H{"amount": 100})
	assert.Equal(t, http.StatusNotFound, code)

	code, resp := srv.do(t, http.MethodPost, "/api/rooms/main/start", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "commitment-hash", resp["commitment"])

	// A second start while the round is open.
	code, _ = srv.do(t, http.MethodPost, "/api/rooms/main/start", token, nil)
	assert.Equal(t, http.StatusConflict, code)

	// The reveal before settlement hides the secret.
	code, resp = srv.do(t, http.MethodGet, "/api/rooms/main/reveal", token, nil)
	require.Equal(t, http.StatusOK, code)
	reveal := resp["reveal"].(map[string]interface{})
	assert.Equal(t, "commitment-hash", reveal["commitment"])
	assert.NotContains(t, reveal, "secret")

	code, _ = srv.do(t, http.MethodPost, "/api/rooms/main/bets", token, gin.H{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = srv.do(t, http.MethodPost, "/api/rooms/main/bets", token, gin.H{"amount": models.StartBalance + 1})
	assert.Equal(t, http.StatusPaymentRequired, code)

	code, resp = srv.do(t, http.MethodPost, "/api/rooms/main/bets", token, gin.H{"amount": 100})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(models.StartBalance-100), resp["balance"])

	code, resp = srv.do(t, http.MethodGet, "/api/rooms/main/round", token, nil)
	require.Equal(t, http.StatusOK, code)
	round := resp["round"].(map[string]interface{})
	assert.Equal(t, "accepting", round["state"])
	assert.Equal(t, float64(1), round["bet_count"])

	code, _ = srv.do(t, http.MethodPost, "/api/rooms/main/go", token, nil)
	require.Equal(t, http.StatusOK, code)

	// Betting is closed once the round runs.
	code, _ = srv.do(t, http.MethodPost, "/api/rooms/main/bets", token, gin.H{"amount": 10})
	assert.Equal(t, http.StatusBadRequest, code)

	// Let the multiplier climb before cashing out.
	waitForMultiplier(t, srv, token, "main", 1.20)

	code, resp = srv.do(t, http.MethodPost, "/api/rooms/main/cashout", token, nil)
	require.Equal(t, http.StatusOK, code)
	multiplier := resp["multiplier"].(float64)
	payout := int64(resp["payout"].(float64))
	assert.GreaterOrEqual(t, multiplier, 1.20)
	assert.Equal(t, int64(float64(100)*multiplier), payout)

	code, _ = srv.do(t, http.MethodPost, "/api/rooms/main/cashout", token, nil)
	assert.Equal(t, http.StatusConflict, code)

	// The payout lands once the round settles.
	waitForBalance(t, srv, token, int64(models.StartBalance)-100+payout)

	code, resp = srv.do(t, http.MethodGet, "/api/rooms/main/reveal", token, nil)
	require.Equal(t, http.StatusOK, code)
	reveal = resp["reveal"].(map[string]interface{})
	assert.Equal(t, "finished", reveal["state"])
	assert.Equal(t, "0123456789abcdef0123456789abcdef", reveal["secret"])
	assert.Equal(t, 50.0, reveal["crash_point"])

	code, resp = srv.do(t, http.MethodGet, "/api/transactions", token, nil)
	require.Equal(t, http.StatusOK, code)
	// One bet debit and one payout credit.
	assert.Equal(t, float64(2), resp["count"])
}

func TestGoWithoutBetsOverHTTP(t *testing.T) {
	srv := newTestServer(t, 3.50)
	token := srv.login(t, 1, "alice")

	code, _ := srv.do(t, http.MethodPost, "/api/rooms/main/start", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, resp := srv.do(t, http.MethodPost, "/api/rooms/main/go", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp["success"])

	// The room is free again.
	code, _ = srv.do(t, http.MethodPost, "/api/rooms/main/start", token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestTransferOverHTTP(t *testing.T) {
	srv := newTestServer(t, 3.50)
	alice := srv.login(t, 1, "alice")
	srv.login(t, 2, "bob")

	code, resp := srv.do(t, http.MethodPost, "/api/transfer", alice, gin.H{"to": 2, "amount": 400})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(models.StartBalance-400), resp["balance"])

	code, _ = srv.do(t, http.MethodPost, "/api/transfer", alice, gin.H{"to": 1, "amount": 10})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = srv.do(t, http.MethodPost, "/api/transfer", alice, gin.H{"to": 99, "amount": 10})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = srv.do(t, http.MethodPost, "/api/transfer", alice, gin.H{"to": 2, "amount": 0})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = srv.do(t, http.MethodPost, "/api/transfer", alice, gin.H{"to": 2, "amount": models.StartBalance * 2})
	assert.Equal(t, http.StatusPaymentRequired, code)
}

func waitForMultiplier(t *testing.T, srv *testServer, token, room string, target float64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	path := fmt.Sprintf("/api/rooms/%s/round", room)
	for time.Now().Before(deadline) {
		code, resp := srv.do(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, code)
		round := resp["round"].(map[string]interface{})
		if round["multiplier"].(float64) >= target {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("multiplier never reached %.2f", target)
}

func waitForBalance(t *testing.T, srv *testServer, token string, want int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		code, resp := srv.do(t, http.MethodGet, "/api/balance", token, nil)
		require.Equal(t, http.StatusOK, code)
		if int64(resp["balance"].(float64)) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("balance never reached %d", want)
}
