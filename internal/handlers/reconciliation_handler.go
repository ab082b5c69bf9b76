package handlers

import (
	"encoding/json"
	"net/http"

	"reconciliation-lifecycle/internal/lifecycle"
	"reconciliation-lifecycle/internal/models"
)

type ReconciliationHandler struct {
	controller *lifecycle.Controller
}

func NewReconciliationHandler(controller *lifecycle.Controller) *ReconciliationHandler {
	return &ReconciliationHandler{controller: controller}
}

type periodRequest struct {
	CompanyID string `json:"companyId"`
	Period    string `json:"period"`
}

func decodePeriodRequest(w http.ResponseWriter, r *http.Request) (periodRequest, bool) {
	var request periodRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return request, false
	}
	if request.CompanyID == "" {
		respondWithError(w, http.StatusBadRequest, "companyId is required")
		return request, false
	}
	if err := models.ValidatePeriod(request.Period); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return request, false
	}
	return request, true
}

// Run executes the match engine for a period and returns the new record.
func (h *ReconciliationHandler) Run(w http.ResponseWriter, r *http.Request) {
	workflow, err := workflowFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	request, ok := decodePeriodRequest(w, r)
	if !ok {
		return
	}

	record, err := h.controller.Run(request.CompanyID, request.Period, workflow)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, record)
}

// GetRecord returns the last persisted record, including its lifecycle
// state for the dashboard's state machine.
func (h *ReconciliationHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
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

	record, err := h.controller.GetRecord(companyID, period, workflow)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	state, err := h.controller.CurrentState(companyID, period, workflow)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"record": record,
		"state":  state,
	})
}

func (h *ReconciliationHandler) Lock(w http.ResponseWriter, r *http.Request) {
	workflow, err := workflowFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	request, ok := decodePeriodRequest(w, r)
	if !ok {
		return
	}

	record, err := h.controller.Lock(request.CompanyID, request.Period, workflow)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, record)
}

func (h *ReconciliationHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	workflow, err := workflowFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	request, ok := decodePeriodRequest(w, r)
	if !ok {
		return
	}

	record, err := h.controller.Unlock(request.CompanyID, request.Period, workflow)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, record)
}
