package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/services"
)

type BalanceReader interface {
	PrisonerAccountBalance(ctx context.Context, prisonNumber string, accountCode int) (*models.PrisonerAccountBalance, error)
	GeneralLedgerAccountBalance(ctx context.Context, prisonID string, accountCode int) (*models.GeneralLedgerAccountBalance, error)
}

type Consolidator interface {
	Consolidate(ctx context.Context, fromPrisonNumber, toPrisonNumber string) error
}

type Migrator interface {
	MigratePrisonerBalances(ctx context.Context, prisonNumber string, req *models.PrisonerBalancesMigrationRequest) error
	MigrateGeneralLedgerBalances(ctx context.Context, prisonID string, req *models.GeneralLedgerBalancesMigrationRequest) error
}

// AccountHandler serves balances, merges and opening balance migration.
type AccountHandler struct {
	balances  BalanceReader
	merger    Consolidator
	migrator  Migrator
	validator *services.ValidationHelper
}

func NewAccountHandler(balances BalanceReader, merger Consolidator, migrator Migrator) *AccountHandler {
	return &AccountHandler{
		balances:  balances,
		merger:    merger,
		migrator:  migrator,
		validator: services.NewValidationHelper(),
	}
}

func (h *AccountHandler) Routes(r chi.Router) {
	r.Get("/prisoners/{prisonNumber}/accounts/{accountCode}", h.GetPrisonerAccount)
	r.Get("/prisons/{prisonId}/accounts/{accountCode}", h.GetPrisonAccount)
	r.Post("/prisoners/{prisonNumber}/merge", h.MergePrisoner)
	r.Post("/migrate/prisoner-balances/{prisonNumber}", h.MigratePrisonerBalances)
	r.Post("/migrate/general-ledger-balances/{prisonId}", h.MigrateGeneralLedgerBalances)
}

func accountCodeParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	code, err := strconv.Atoi(chi.URLParam(r, "accountCode"))
	if err != nil || code <= 0 {
		services.SendErrorResponse(w, "Invalid account code", http.StatusBadRequest, nil)
		return 0, false
	}
	return code, true
}

// GetPrisonerAccount returns a prisoner sub-account balance
// @Summary Get prisoner account balance
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param prisonNumber path string true "Prison number"
// @Param accountCode path int true "Account code"
// @Success 200 {object} models.PrisonerAccountBalance
// @Failure 404 {object} services.ErrorResponse
// @Router /prisoners/{prisonNumber}/accounts/{accountCode} [get]
func (h *AccountHandler) GetPrisonerAccount(w http.ResponseWriter, r *http.Request) {
	code, ok := accountCodeParam(w, r)
	if !ok {
		return
	}
	balance, err := h.balances.PrisonerAccountBalance(r.Context(), chi.URLParam(r, "prisonNumber"), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// GetPrisonAccount returns a prison GL account balance
// @Summary Get general ledger account balance
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param prisonId path string true "Prison code"
// @Param accountCode path int true "Account code"
// @Success 200 {object} models.GeneralLedgerAccountBalance
// @Failure 404 {object} services.ErrorResponse
// @Router /prisons/{prisonId}/accounts/{accountCode} [get]
func (h *AccountHandler) GetPrisonAccount(w http.ResponseWriter, r *http.Request) {
	code, ok := accountCodeParam(w, r)
	if !ok {
		return
	}
	balance, err := h.balances.GeneralLedgerAccountBalance(r.Context(), chi.URLParam(r, "prisonId"), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

type mergeRequest struct {
	FromPrisonNumber string `json:"fromPrisonNumber" validate:"required"`
}

// MergePrisoner consolidates another prisoner's accounts into this one
// @Summary Merge prisoner accounts
// @Tags Accounts
// @Accept json
// @Security BearerAuth
// @Param prisonNumber path string true "Surviving prison number"
// @Param request body mergeRequest true "Prisoner being merged away"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Router /prisoners/{prisonNumber}/merge [post]
func (h *AccountHandler) MergePrisoner(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}
	if err := h.merger.Consolidate(r.Context(), req.FromPrisonNumber, chi.URLParam(r, "prisonNumber")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) MigratePrisonerBalances(w http.ResponseWriter, r *http.Request) {
	var req models.PrisonerBalancesMigrationRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}
	if err := h.migrator.MigratePrisonerBalances(r.Context(), chi.URLParam(r, "prisonNumber"), &req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *AccountHandler) MigrateGeneralLedgerBalances(w http.ResponseWriter, r *http.Request) {
	var req models.GeneralLedgerBalancesMigrationRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}
	if err := h.migrator.MigrateGeneralLedgerBalances(r.Context(), chi.URLParam(r, "prisonId"), &req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
