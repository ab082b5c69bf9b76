package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"reconciliation-lifecycle/internal/ledger"
	"reconciliation-lifecycle/internal/lifecycle"
	"reconciliation-lifecycle/internal/models"
)

const maxUploadBytes = 32 << 20

type DataHandler struct {
	controller *lifecycle.Controller
	store      *ledger.Store
}

func NewDataHandler(controller *lifecycle.Controller, store *ledger.Store) *DataHandler {
	return &DataHandler{controller: controller, store: store}
}

func (h *DataHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, models.SideStatement)
}

func (h *DataHandler) UploadLedger(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, models.SideLedger)
}

func (h *DataHandler) upload(w http.ResponseWriter, r *http.Request, side models.Side) {
	workflow, err := workflowFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	companyID := r.FormValue("companyId")
	period := r.FormValue("period")

	batch, err := h.controller.UploadBatch(companyID, period, workflow, side, header.Filename, file)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"batchId":       batch.ID,
		"lineItemCount": batch.LineItemCount,
	})
}

type sideStats struct {
	BatchCount    int             `json:"batchCount"`
	LineItemCount int             `json:"lineItemCount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// GetData returns the batches and line items for one side of a period,
// with the totals the dashboard summary cards show.
func (h *DataHandler) GetData(w http.ResponseWriter, r *http.Request) {
	workflow, err := workflowFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	companyID := r.URL.Query().Get("companyId")
	period := r.URL.Query().Get("period")
	if companyID == "" || period == "" {
		respondWithError(w, http.StatusBadRequest, "companyId and period are required")
		return
	}
	side, err := models.ParseSide(r.URL.Query().Get("side"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	batches, err := h.store.ListBatches(companyID, period, workflow, side)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	items, err := h.store.ListLineItems(companyID, period, workflow, side)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	total, err := h.store.SideTotal(companyID, period, workflow, side)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"batches":   batches,
		"lineItems": items,
		"stats": sideStats{
			BatchCount:    len(batches),
			LineItemCount: len(items),
			TotalAmount:   total,
		},
	})
}

// DeleteBatch removes one upload. Deleting a batch that is already gone is
// treated as success so retried deletes stay idempotent.
func (h *DataHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	workflow, err := workflowFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	batchID := mux.Vars(r)["batchId"]
	companyID := r.URL.Query().Get("companyId")
	period := r.URL.Query().Get("period")
	if companyID == "" || period == "" {
		respondWithError(w, http.StatusBadRequest, "companyId and period are required")
		return
	}

	err = h.controller.DeleteBatch(companyID, period, workflow, batchID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "batch deleted",
		"batchId": batchID,
	})
}
