package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"reconciliation-lifecycle/internal/ledger"
	"reconciliation-lifecycle/internal/lifecycle"
	"reconciliation-lifecycle/internal/models"
)

func SetupRouter(controller *lifecycle.Controller, store *ledger.Store) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)

	dataHandler := NewDataHandler(controller, store)
	reconHandler := NewReconciliationHandler(controller)
	exportHandler := NewExportHandler(controller)
	monthCloseHandler := NewMonthCloseHandler(controller)

	api.HandleFunc("/{workflow:bank|ap}/upload-statement", dataHandler.UploadStatement).Methods(http.MethodPost)
	api.HandleFunc("/{workflow:bank|ap}/upload-ledger", dataHandler.UploadLedger).Methods(http.MethodPost)
	api.HandleFunc("/{workflow:bank|ap}/data", dataHandler.GetData).Methods(http.MethodGet)
	api.HandleFunc("/{workflow:bank|ap}/statement/{batchId}", dataHandler.DeleteBatch).Methods(http.MethodDelete)

	api.HandleFunc("/{workflow:bank|ap}/run-reconciliation", reconHandler.Run).Methods(http.MethodPost)
	api.HandleFunc("/{workflow:bank|ap}/reconciliation-data", reconHandler.GetRecord).Methods(http.MethodGet)
	api.HandleFunc("/{workflow:bank|ap}/lock-reconciliation", reconHandler.Lock).Methods(http.MethodPost)
	api.HandleFunc("/{workflow:bank|ap}/unlock-reconciliation", reconHandler.Unlock).Methods(http.MethodPost)

	api.HandleFunc("/export-{workflow:bank|ap}", exportHandler.Export).Methods(http.MethodPost)

	api.HandleFunc("/month-close/status", monthCloseHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/month-close/lock", monthCloseHandler.Lock).Methods(http.MethodPost)
	api.HandleFunc("/month-close/unlock", monthCloseHandler.Unlock).Methods(http.MethodPost)

	return router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func workflowFromRequest(r *http.Request) (models.WorkflowType, error) {
	return models.ParseWorkflowType(mux.Vars(r)["workflow"])
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithDomainError is the single translation point from the lifecycle
// error taxonomy to HTTP statuses. Lock violations keep their specific
// message so the dashboard can tell the user to unlock rather than showing
// a generic failure.
func respondWithDomainError(w http.ResponseWriter, err error) {
	var validationErr *models.ValidationError
	var parseErr *models.ParseError

	switch {
	case errors.Is(err, models.ErrPeriodLocked), errors.Is(err, models.ErrRecordLocked):
		respondWithError(w, http.StatusLocked, err.Error())
	case errors.Is(err, models.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrEngineTimeout):
		respondWithError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, models.ErrNotStaged):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &validationErr), errors.As(err, &parseErr):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Error marshaling JSON response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
