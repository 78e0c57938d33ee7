package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	cache "writeoff-server/src/db"
	db "writeoff-server/src/db/sql"
	"writeoff-server/src/models"
)

func GetProfile(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		cacheKey := fmt.Sprintf("profile:%d", userID)
		if cached, found := cache.Cache.Get(cacheKey); found {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cached)
			return
		}

		profile, err := db.GetUserProfile(r.Context(), pool, userID)
		if err != nil {
			if err == db.ErrProfileNotFound {
				http.Error(w, "profile not found", http.StatusNotFound)
				return
			}
			log.Printf("ERROR: Failed to get profile for user %d: %v", userID, err)
			http.Error(w, "failed to retrieve profile", http.StatusInternalServerError)
			return
		}

		cache.SetProfileCache(cacheKey, profile)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(profile)
	}
}

func UpsertProfile(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			Profession   string `json:"profession"`
			Income       string `json:"income"`
			State        string `json:"state"`
			FilingStatus string `json:"filing_status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode profile request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		profile := &models.UserProfile{
			UserID:       userID,
			Profession:   req.Profession,
			Income:       req.Income,
			State:        req.State,
			FilingStatus: req.FilingStatus,
		}
		if err := db.UpsertUserProfile(r.Context(), pool, profile); err != nil {
			log.Printf("ERROR: Failed to upsert profile for user %d: %v", userID, err)
			http.Error(w, "failed to save profile", http.StatusInternalServerError)
			return
		}

		cache.DelProfileCache(fmt.Sprintf("profile:%d", userID))

		log.Printf("INFO: Saved profile for user %d (profession: %s)", userID, req.Profession)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(profile)
	}
}
