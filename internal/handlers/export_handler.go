package handlers

import (
	"fmt"
	"net/http"

	"reconciliation-lifecycle/internal/export"
	"reconciliation-lifecycle/internal/lifecycle"
)

type ExportHandler struct {
	controller *lifecycle.Controller
}

func NewExportHandler(controller *lifecycle.Controller) *ExportHandler {
	return &ExportHandler{controller: controller}
}

// Export streams the period's record as an xlsx workbook. Export never
// mutates the record; a malformed record fails the download and nothing
// else.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	workflow, err := workflowFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	request, ok := decodePeriodRequest(w, r)
	if !ok {
		return
	}

	record, err := h.controller.GetRecord(request.CompanyID, request.Period, workflow)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	workbook, err := export.Workbook(record)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(record)))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(workbook)))
	w.WriteHeader(http.StatusOK)
	w.Write(workbook)
}
