package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	"writeoff-server/src/classify"
	"writeoff-server/src/handlers"
	"writeoff-server/src/middleware"
	txsync "writeoff-server/src/sync"
)

func NewRouter(pool *pgxpool.Pool, plaidClient *plaid.APIClient, coordinator *txsync.Coordinator, scheduler *classify.Scheduler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", handlers.Login(pool))
		r.Post("/register", handlers.Register(pool))
		r.Post("/plaid/webhook", handlers.PlaidWebhook(plaidClient, pool, coordinator))

		// Protected routes
		r.With(middleware.JWTAuthMiddleware).Group(func(r chi.Router) {
			// Profile
			r.Get("/profile", handlers.GetProfile(pool))
			r.Put("/profile", handlers.UpsertProfile(pool))

			// Plaid
			r.Post("/plaid/create-link-token", handlers.CreateLinkToken(plaidClient, pool))
			r.Post("/plaid/exchange-public-token", handlers.ExchangePublicToken(plaidClient, pool))
			r.Get("/plaid/accounts", handlers.GetAccountsFromDB(pool))
			r.Post("/plaid/transactions/sync", handlers.SyncTransactions(coordinator))

			// Transactions
			r.Get("/transactions", handlers.GetTransactionsFromDB(pool))
			r.Get("/transactions/{transaction_id}", handlers.GetTransactionFromDB(pool))
			r.Put("/transactions/{transaction_id}/classification", handlers.OverrideClassification(pool))

			// Analysis
			r.Post("/transactions/analyze", handlers.AnalyzeTransactions(scheduler))
			r.Post("/transactions/{transaction_id}/analyze", handlers.AnalyzeSingleTransaction(scheduler))
		})
	})

	return r
}
