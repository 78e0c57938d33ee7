package main

import (
	"log"
	"net/http"

	"writeoff-server/src/api"
	"writeoff-server/src/classify"
	"writeoff-server/src/config"
	"writeoff-server/src/db"
	wplaid "writeoff-server/src/plaid"
	txsync "writeoff-server/src/sync"
)

func main() {
	cfg := config.Load()

	// Connect to database
	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("DB connection failed: %v", err)
	}
	defer pool.Close()

	db.InitCache()

	plaidClient := wplaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)

	store := db.NewStore(pool)
	coordinator := txsync.NewCoordinator(store, wplaid.NewAggregator(plaidClient))
	classifier := classify.NewOpenAIClassifier(cfg.OpenAIAPIKey)
	scheduler := classify.NewScheduler(store, classifier, cfg.AnalysisWorkers, cfg.AnalysisRate)

	// Router
	router := api.NewRouter(pool, plaidClient, coordinator, scheduler)

	log.Println("API server running on port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}
