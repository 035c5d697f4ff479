package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Fund routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/funds", handler.GetFunds).Methods("GET")
	api.HandleFunc("/funds/{code}/nav", handler.GetNAV).Methods("GET")
	api.HandleFunc("/funds/{code}/returns", handler.GetReturns).Methods("GET")
	api.HandleFunc("/funds/{code}/summaries", handler.GetSummaries).Methods("GET")

	return r
}
