package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/store"
)

const accountsCacheKey = "accounts"

func itemsCacheKey(account string) string { return "items:" + account }

func (s *Server) cachedAccounts(r *http.Request) ([]string, error) {
	if names, ok := s.registryCache.Get(accountsCacheKey); ok {
		return names, nil
	}
	names, err := s.store.Accounts(r.Context())
	if err != nil {
		return nil, err
	}
	s.registryCache.Set(accountsCacheKey, names)
	return names, nil
}

func (s *Server) cachedItems(r *http.Request, account string) ([]string, error) {
	key := itemsCacheKey(account)
	if labels, ok := s.registryCache.Get(key); ok {
		return labels, nil
	}
	labels, err := s.store.Items(r.Context(), account)
	if err != nil {
		return nil, err
	}
	s.registryCache.Set(key, labels)
	return labels, nil
}

// handleListTransactions returns the filtered view with freshly derived
// balances. Balances always restart from zero for the view being returned.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sel, err := s.parseSelection(r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Account registry error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve accounts")
		return
	}

	unit, err := core.ParseUnit(q.Get("unit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dir, ok := core.ParseDirection(q.Get("order"))
	if !ok {
		writeError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	txs, err := s.store.ListTransactions(r.Context(), "")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List transactions error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	view := core.Filter(txs, sel, q.Get("search"))
	view = core.PeriodFilter(view, unit, strings.TrimSpace(q.Get("period")))
	view = core.Recompute(view)
	balance := core.CurrentBalance(view)
	view = core.OrderForDisplay(view, dir)

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": toPayloads(view),
		"balance":      balance,
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := req.toTransaction()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.store.CreateTransaction(r.Context(), tx)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Create transaction error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	s.invalidateRegistries()
	s.publish(r.Context(), amqp.OpCreated, created.ID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "transaction created",
		"transaction": toPayload(created),
	})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := req.toTransaction()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	tx.ID = id

	if err := s.store.UpdateTransaction(r.Context(), tx); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "Update transaction error", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update transaction")
		return
	}

	s.invalidateRegistries()
	s.publish(r.Context(), amqp.OpUpdated, id)

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "transaction updated",
		"transaction": toPayload(tx),
	})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "Delete transaction error", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	s.invalidateRegistries()
	s.publish(r.Context(), amqp.OpDeleted, id)

	writeJSON(w, http.StatusOK, map[string]string{"message": "transaction deleted"})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	names, err := s.cachedAccounts(r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Account registry error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load accounts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": names})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	account := strings.TrimSpace(r.URL.Query().Get("account"))
	if account == core.AllAccounts {
		account = ""
	}
	labels, err := s.cachedItems(r, account)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Item registry error", "account", account, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": labels})
}
