package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"writeoff-server/src/classify"
	cache "writeoff-server/src/db"
	db "writeoff-server/src/db/sql"
	"writeoff-server/src/models"
)

// transactionView decorates a stored transaction with its derived review
// status for the client.
type transactionView struct {
	models.Transaction
	ReviewStatus classify.ReviewStatus `json:"review_status"`
}

func withStatus(transactions []models.Transaction) []transactionView {
	views := make([]transactionView, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, transactionView{Transaction: t, ReviewStatus: classify.StatusOf(t)})
	}
	return views
}

func GetTransactionsFromDB(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		cacheKey := fmt.Sprintf("transactions:%d", userID)
		if cached, found := cache.Cache.Get(cacheKey); found {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cached)
			return
		}

		transactions, err := db.GetTransactionsSQL(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to retrieve transactions", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get transactions for user %d: %v", userID, err)
			return
		}

		views := withStatus(transactions)
		cache.SetTransactionCache(cacheKey, views)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

func GetTransactionFromDB(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		transID := chi.URLParam(r, "transaction_id")

		txn, err := db.GetTransaction(r.Context(), pool, userID, transID)
		if err != nil {
			http.Error(w, "transaction not found", http.StatusNotFound)
			log.Printf("ERROR: Transaction %s not found for user %d: %v", transID, userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transactionView{Transaction: *txn, ReviewStatus: classify.StatusOf(*txn)})
	}
}

// OverrideClassification applies the manual review decision: the transaction
// becomes confidently deductible or non-deductible per the user's choice and
// is excluded from all future classification runs.
func OverrideClassification(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		transID := chi.URLParam(r, "transaction_id")

		var req struct {
			IsDeductible bool   `json:"is_deductible"`
			Note         string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode override request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		txn, err := db.GetTransaction(r.Context(), pool, userID, transID)
		if err != nil {
			http.Error(w, "transaction not found", http.StatusNotFound)
			log.Printf("ERROR: Transaction %s not found for user %d: %v", transID, userID, err)
			return
		}

		classify.Override(txn, req.IsDeductible, req.Note)

		rows, err := db.UpdateOverride(r.Context(), pool, txn)
		if err != nil {
			http.Error(w, "failed to update transaction", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to apply override for transaction %s (user %d): %v", transID, userID, err)
			return
		}
		if rows == 0 {
			http.Error(w, "transaction not found", http.StatusNotFound)
			log.Printf("ERROR: Override affected zero rows for transaction %s (user %d)", transID, userID)
			return
		}

		cache.ClearAllTransactionCaches()

		log.Printf("INFO: User %d overrode transaction %s: deductible=%t", userID, transID, req.IsDeductible)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transactionView{Transaction: *txn, ReviewStatus: classify.StatusOf(*txn)})
	}
}
