package handlers

import (
	"net/http"

	"reconciliation-lifecycle/internal/lifecycle"
)

// MonthCloseHandler exposes the period-wide close flag. The status endpoint
// is what the dashboard consults before any mutating call; the lock and
// unlock endpoints are the month-end close process's write surface.
type MonthCloseHandler struct {
	controller *lifecycle.Controller
}

func NewMonthCloseHandler(controller *lifecycle.Controller) *MonthCloseHandler {
	return &MonthCloseHandler{controller: controller}
}

func (h *MonthCloseHandler) Status(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("companyId")
	period := r.URL.Query().Get("period")
	if companyID == "" || period == "" {
		respondWithError(w, http.StatusBadRequest, "companyId and period are required")
		return
	}

	lock, err := h.controller.MonthCloseStatus(companyID, period)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, lock)
}

func (h *MonthCloseHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, true)
}

func (h *MonthCloseHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.setLock(w, r, false)
}

func (h *MonthCloseHandler) setLock(w http.ResponseWriter, r *http.Request, locked bool) {
	request, ok := decodePeriodRequest(w, r)
	if !ok {
		return
	}

	lock, err := h.controller.SetMonthClose(request.CompanyID, request.Period, locked)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, lock)
}
