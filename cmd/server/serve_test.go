package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prisonfinance/ledger-sync/internal/config"
	"github.com/prisonfinance/ledger-sync/internal/repository/memory"
	"github.com/prisonfinance/ledger-sync/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(secret string) *app {
	store := memory.NewStore()
	resolver := services.NewAccountResolver()
	recorder := services.NewTransactionRecorder()
	prisons := services.NewPrisonService(resolver)
	balances := services.NewBalanceService(store, services.NewMigrationCutoffResolver(), nil)
	return &app{
		cfg:       &config.Config{JWTSecret: secret},
		sync:      services.NewSyncService(store, services.NewLegacyDataNormalizer(), resolver, prisons, recorder, nil),
		balances:  balances,
		merge:     services.NewMergeService(store, resolver, balances, recorder),
		migration: services.NewMigrationService(store, resolver, prisons, recorder),
		query:     services.NewTransactionQueryService(store),
	}
}

func TestRouter_MigrateSyncAndRead(t *testing.T) {
	router := newRouter(newTestApp(""))

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := do(http.MethodPost, "/migrate/prisoner-balances/A1234BC",
		`{"accountBalances":[{"prisonId":"MDI","accountCode":2102,"balance":1000.00,"holdBalance":0,"asOfTimestamp":"2025-03-02T10:00:00Z"}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	sync := `{
		"transactionId": 19228028,
		"requestId": "c3a1d8e2-5b2f-4a57-9b8e-0c6f1a2b3c4d",
		"caseloadId": "MDI",
		"transactionTimestamp": "2025-03-03T10:00:00Z",
		"createdAt": "2025-03-03T10:00:00Z",
		"offenderTransactions": [{
			"entrySequence": 1,
			"offenderDisplayId": "A1234BC",
			"subAccountType": "SPND",
			"postingType": "CR",
			"type": "A_EARN",
			"description": "Earnings",
			"amount": 50.00,
			"generalLedgerEntries": [
				{"entrySequence": 1, "code": 1501, "postingType": "DR", "amount": 50.00},
				{"entrySequence": 2, "code": 2102, "postingType": "CR", "amount": 50.00}
			]
		}]
	}`
	rr = do(http.MethodPost, "/sync/offender-transactions", sync)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"action":"CREATED"`)

	rr = do(http.MethodPost, "/sync/offender-transactions", sync)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"action":"PROCESSED"`)

	rr = do(http.MethodGet, "/prisoners/A1234BC/accounts/2102", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total":"1050"`)

	rr = do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_RequiresTokenWhenConfigured(t *testing.T) {
	router := newRouter(newTestApp("secret"))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/prisons/MDI/accounts/1501", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "nomis-sync",
		"exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/prisons/MDI/accounts/1501", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
