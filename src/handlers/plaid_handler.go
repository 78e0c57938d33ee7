package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	cache "writeoff-server/src/db"
	db "writeoff-server/src/db/sql"
	txsync "writeoff-server/src/sync"
	"writeoff-server/src/util"
)

func CreateLinkToken(plaidClient *plaid.APIClient, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		user := plaid.LinkTokenCreateRequestUser{
			ClientUserId: strconv.FormatInt(userID, 10),
		}
		request := plaid.NewLinkTokenCreateRequest(
			"WriteOff",
			"en",
			[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		)
		request.SetUser(user)
		request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
		resp, _, err := plaidClient.PlaidApi.LinkTokenCreate(r.Context()).LinkTokenCreateRequest(*request).Execute()
		if err != nil {
			http.Error(w, "Failed to create link token", http.StatusInternalServerError)
			log.Printf("ERROR: Plaid link token creation failed for user %d: %v", userID, err)
			return
		}

		linkToken := resp.GetLinkToken()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(linkToken)
	}
}

func ExchangePublicToken(plaidClient *plaid.APIClient, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			PublicToken string `json:"public_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode exchange public token request body: %v", err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		exchangePublicTokenReq := plaid.NewItemPublicTokenExchangeRequest(req.PublicToken)
		exchangePublicTokenResp, _, err := plaidClient.PlaidApi.ItemPublicTokenExchange(r.Context()).ItemPublicTokenExchangeRequest(
			*exchangePublicTokenReq,
		).Execute()

		if err != nil {
			http.Error(w, "Failed to exchange public token", http.StatusInternalServerError)
			log.Printf("ERROR: Plaid public token exchange failed for user %d: %v", userID, err)
			return
		}

		accessToken := exchangePublicTokenResp.GetAccessToken()
		itemID := exchangePublicTokenResp.GetItemId()

		if err := db.SavePlaidCredentials(r.Context(), pool, userID, itemID, accessToken); err != nil {
			http.Error(w, "Failed to save plaid credentials", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to save plaid credentials for user %d: %v", userID, err)
			return
		}

		// Pull the item's accounts right away so synced transactions can be
		// attributed to their owner.
		accountsReq := plaid.NewAccountsGetRequest(accessToken)
		accountsResp, _, err := plaidClient.PlaidApi.AccountsGet(r.Context()).AccountsGetRequest(*accountsReq).Execute()
		if err != nil {
			http.Error(w, "Failed to fetch accounts from Plaid", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to fetch accounts for user %d, item %s: %v", userID, itemID, err)
			return
		}

		if err := db.SaveAccounts(r.Context(), pool, userID, accountsResp.GetAccounts()); err != nil {
			http.Error(w, "Failed to save accounts", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to save accounts for user %d: %v", userID, err)
			return
		}

		cache.ClearAllAccountCaches()

		log.Printf("INFO: Successfully exchanged public token and saved %d accounts for user %d, item %s",
			len(accountsResp.GetAccounts()), userID, itemID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"item_id": itemID,
		})
	}
}

func GetAccountsFromDB(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		accounts, err := db.GetAccountsSQL(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to retrieve accounts", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get accounts for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(accounts)
	}
}

func SyncTransactions(coordinator *txsync.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		result, err := coordinator.Sync(r.Context(), userID)
		if err != nil {
			switch {
			case errors.Is(err, txsync.ErrSyncInProgress):
				http.Error(w, "sync already in progress", http.StatusConflict)
			case errors.Is(err, txsync.ErrNotLinked):
				http.Error(w, "no linked bank account", http.StatusNotFound)
			default:
				http.Error(w, "Failed to sync transactions", http.StatusInternalServerError)
			}
			log.Printf("ERROR: Failed to sync transactions for user %d: %v", userID, err)
			return
		}

		cache.ClearAllTransactionCaches()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// PlaidWebhook verifies the webhook signature, maps the item to its user and
// kicks off a sync in the background. Plaid redelivers on non-2xx, so the
// handler acknowledges as soon as the run is started.
func PlaidWebhook(plaidClient *plaid.APIClient, pool *pgxpool.Pool, coordinator *txsync.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		headers := map[string]string{}
		for name := range r.Header {
			headers[name] = r.Header.Get(name)
		}
		valid, err := util.VerifyWebhook(r.Context(), plaidClient, body, headers)
		if err != nil || !valid {
			log.Printf("ERROR: Plaid webhook verification failed: %v", err)
			http.Error(w, "invalid webhook signature", http.StatusUnauthorized)
			return
		}

		var payload struct {
			WebhookType string `json:"webhook_type"`
			WebhookCode string `json:"webhook_code"`
			ItemID      string `json:"item_id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			log.Printf("ERROR: Failed to decode Plaid webhook body: %v", err)
			http.Error(w, "invalid webhook body", http.StatusBadRequest)
			return
		}

		if payload.WebhookType != "TRANSACTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		userID, err := db.GetUserIDByItemID(r.Context(), pool, payload.ItemID)
		if err != nil {
			log.Printf("ERROR: No user found for webhook item %s: %v", payload.ItemID, err)
			http.Error(w, "unknown item", http.StatusNotFound)
			return
		}

		log.Printf("INFO: Plaid webhook %s/%s for item %s, starting sync for user %d",
			payload.WebhookType, payload.WebhookCode, payload.ItemID, userID)

		go func() {
			if _, err := coordinator.Sync(context.Background(), userID); err != nil {
				if !errors.Is(err, txsync.ErrSyncInProgress) {
					log.Printf("ERROR: Webhook-triggered sync failed for user %d: %v", userID, err)
				}
				return
			}
			cache.ClearAllTransactionCaches()
		}()

		w.WriteHeader(http.StatusOK)
	}
}
