package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"writeoff-server/src/classify"
	cache "writeoff-server/src/db"
)

func AnalyzeTransactions(scheduler *classify.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		result, err := scheduler.ClassifyPending(r.Context(), userID)
		if err != nil {
			http.Error(w, "Failed to analyze transactions", http.StatusInternalServerError)
			log.Printf("ERROR: Classification run failed for user %d: %v", userID, err)
			return
		}

		cache.ClearAllTransactionCaches()

		log.Printf("INFO: Classification run for user %d: analyzed %d of %d", userID, result.Analyzed, result.Total)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func AnalyzeSingleTransaction(scheduler *classify.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		transID := chi.URLParam(r, "transaction_id")

		txn, err := scheduler.ClassifyOne(r.Context(), userID, transID)
		if err != nil {
			switch {
			case errors.Is(err, classify.ErrValidation):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, classify.ErrAuthorization):
				http.Error(w, "transaction not owned by account", http.StatusForbidden)
			default:
				http.Error(w, "Failed to analyze transaction", http.StatusInternalServerError)
			}
			log.Printf("ERROR: Single classification failed for transaction %s (user %d): %v", transID, userID, err)
			return
		}

		cache.ClearAllTransactionCaches()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transactionView{Transaction: *txn, ReviewStatus: classify.StatusOf(*txn)})
	}
}
