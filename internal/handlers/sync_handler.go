package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prisonfinance/ledger-sync/internal/models"
	"github.com/prisonfinance/ledger-sync/internal/services"
)

type Syncer interface {
	Sync(ctx context.Context, req models.SyncRequest) (*models.SyncResponse, error)
}

type TransactionReader interface {
	TransactionsBySyncID(ctx context.Context, syncID uuid.UUID) ([]models.TransactionDetail, error)
}

type SyncHandler struct {
	syncer    Syncer
	reader    TransactionReader
	validator *services.ValidationHelper
}

func NewSyncHandler(syncer Syncer, reader TransactionReader) *SyncHandler {
	return &SyncHandler{
		syncer:    syncer,
		reader:    reader,
		validator: services.NewValidationHelper(),
	}
}

func (h *SyncHandler) Routes(r chi.Router) {
	r.Post("/sync/offender-transactions", h.SyncOffenderTransaction)
	r.Post("/sync/general-ledger-transactions", h.SyncGeneralLedgerTransaction)
	r.Get("/sync/transactions/{synchronizedTransactionId}", h.GetTransactions)
}

// SyncOffenderTransaction syncs a legacy transaction touching prisoner accounts
// @Summary Sync offender transaction
// @Tags Sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SyncOffenderTransactionRequest true "Legacy transaction"
// @Success 201 {object} models.SyncResponse
// @Success 200 {object} models.SyncResponse
// @Failure 400 {object} services.ErrorResponse
// @Router /sync/offender-transactions [post]
func (h *SyncHandler) SyncOffenderTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.SyncOffenderTransactionRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}
	h.sync(w, r, &req)
}

// SyncGeneralLedgerTransaction syncs a legacy transaction between GL accounts
// @Summary Sync general ledger transaction
// @Tags Sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SyncGeneralLedgerTransactionRequest true "Legacy transaction"
// @Success 201 {object} models.SyncResponse
// @Failure 400 {object} services.ErrorResponse
// @Router /sync/general-ledger-transactions [post]
func (h *SyncHandler) SyncGeneralLedgerTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.SyncGeneralLedgerTransactionRequest
	if !decodeBody(w, r, h.validator, &req) {
		return
	}
	h.sync(w, r, &req)
}

func (h *SyncHandler) sync(w http.ResponseWriter, r *http.Request, req models.SyncRequest) {
	resp, err := h.syncer.Sync(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if resp.Action == models.SyncCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// GetTransactions returns every transaction recorded under a synchronization id
// @Summary Get synced transactions
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Param synchronizedTransactionId path string true "Synchronization id"
// @Success 200 {array} models.TransactionDetail
// @Failure 404 {object} services.ErrorResponse
// @Router /sync/transactions/{synchronizedTransactionId} [get]
func (h *SyncHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	syncID, err := uuid.Parse(chi.URLParam(r, "synchronizedTransactionId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid synchronized transaction id", http.StatusBadRequest, nil)
		return
	}

	details, err := h.reader.TransactionsBySyncID(r.Context(), syncID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
