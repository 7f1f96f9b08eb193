package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/ebisaa944/ExpenseTracker/internal/core"
	"github.com/ebisaa944/ExpenseTracker/internal/events"
	"github.com/ebisaa944/ExpenseTracker/internal/log"
	"github.com/ebisaa944/ExpenseTracker/internal/storage"
	"github.com/ebisaa944/ExpenseTracker/internal/view"
)

// createRequest is the transaction creation payload. Amount tolerates both
// string and numeric JSON values; Date stays raw so a bad format becomes a
// field error instead of failing the whole decode.
type createRequest struct {
	Title    string      `json:"title"`
	Amount   core.Amount `json:"amount"`
	Type     string      `json:"type"`
	Category string      `json:"category"`
	Date     string      `json:"date"`
}

const listCacheKey = "transactions"

// listTransactions serves reads through the cache. Every mutation purges
// it, so a hit is never stale relative to this process's own writes.
func (s *Server) listTransactions(r *http.Request) ([]core.Transaction, error) {
	if txs, ok := s.listCache.Get(listCacheKey); ok {
		return txs, nil
	}
	txs, err := s.store.List(r.Context())
	if err != nil {
		return nil, err
	}
	s.listCache.Set(listCacheKey, txs)
	return txs, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	if _, err := ensureCSRFCookie(w, r); err != nil {
		logger.ErrorContext(r.Context(), "CSRF cookie issue failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	txs, err := s.listTransactions(r)
	if err != nil {
		logger.ErrorContext(r.Context(), "List transactions failed", log.FieldError, err, log.FieldOperation, log.OpList)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		Today             string
		IncomeCategories  []string
		ExpenseCategories []string
		List              view.ListData
	}{
		Today:             core.Today().String(),
		IncomeCategories:  core.Categories(core.Income),
		ExpenseCategories: core.Categories(core.Expense),
		List:              view.NewListData(txs),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed", log.FieldError, err)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if _, err := ensureCSRFCookie(w, r); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "CSRF token generation failed",
			log.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	txs, err := s.listTransactions(r)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List transactions failed",
			log.FieldError, err, log.FieldOperation, log.OpList)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Malformed request.")
		return
	}

	draft, fieldErrors := validateCreate(req)
	if len(fieldErrors) > 0 {
		logger.InfoContext(r.Context(), "Transaction rejected",
			log.FieldOperation, log.OpValidate, "fields", fieldErrorNames(fieldErrors))
		writeJSON(w, http.StatusBadRequest, fieldErrors)
		return
	}

	created, err := s.store.Insert(r.Context(), draft)
	if err != nil {
		logger.ErrorContext(r.Context(), "Insert transaction failed",
			log.FieldError, err, log.FieldOperation, log.OpCreate)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	s.listCache.Purge()
	s.metrics.transactionsCreated.Inc()
	s.publish(r, events.NewTransactionEvent(created.ID, events.ActionCreated))

	logger.InfoContext(r.Context(), "Transaction created",
		log.FieldTransactionID, created.ID,
		log.FieldType, string(created.Type),
		log.FieldCategory, created.Category,
		log.FieldAmount, created.Amount.String())
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "Not found.")
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "Not found.")
			return
		}
		logger.ErrorContext(r.Context(), "Delete transaction failed",
			log.FieldError, err, log.FieldOperation, log.OpDelete, log.FieldTransactionID, id)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	s.listCache.Purge()
	s.metrics.transactionsDeleted.Inc()
	s.publish(r, events.NewTransactionEvent(id, events.ActionDeleted))

	logger.InfoContext(r.Context(), "Transaction deleted", log.FieldTransactionID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	txs, err := s.listTransactions(r)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Summary listing failed",
			log.FieldError, err, log.FieldOperation, log.OpList)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	writeJSON(w, http.StatusOK, core.Summarize(txs))
}

func (s *Server) handleTransactionsPartial(w http.ResponseWriter, r *http.Request) {
	txs, err := s.listTransactions(r)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List transactions failed",
			log.FieldError, err, log.FieldOperation, log.OpRender)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(w, txs); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Render transactions failed", log.FieldError, err)
	}
}

// publish emits an event without letting broker trouble affect the HTTP
// response. Errors are logged and dropped.
func (s *Server) publish(r *http.Request, ev *events.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(r.Context(), ev); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Event publish failed",
			log.FieldError, err,
			log.FieldTransactionID, ev.ID,
			log.FieldAction, string(ev.Action))
	}
}

// validateCreate checks every field independently and collects all failures,
// so the response reports the complete set in one round trip.
func validateCreate(req createRequest) (core.Transaction, map[string][]string) {
	fieldErrors := make(map[string][]string)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		fieldErrors["title"] = append(fieldErrors["title"], "This field may not be blank.")
	} else if utf8.RuneCountInString(title) > 255 {
		fieldErrors["title"] = append(fieldErrors["title"], "Ensure this field has no more than 255 characters.")
	}

	if !req.Amount.Valid() {
		fieldErrors["amount"] = append(fieldErrors["amount"], "A valid number is required.")
	} else if !req.Amount.Positive() {
		fieldErrors["amount"] = append(fieldErrors["amount"], "Ensure this value is greater than 0.")
	}

	txType := core.TransactionType(req.Type)
	if !txType.IsValid() {
		fieldErrors["type"] = append(fieldErrors["type"], fmt.Sprintf("%q is not a valid choice.", req.Type))
	} else if !core.ValidCategory(txType, req.Category) {
		fieldErrors["category"] = append(fieldErrors["category"],
			fmt.Sprintf("%q is not a valid choice for type %q.", req.Category, req.Type))
	}

	var date core.Date
	if strings.TrimSpace(req.Date) == "" {
		fieldErrors["date"] = append(fieldErrors["date"], "This field is required.")
	} else {
		parsed, err := core.ParseDate(req.Date)
		if err != nil {
			fieldErrors["date"] = append(fieldErrors["date"],
				"Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
		} else {
			date = parsed
		}
	}

	if len(fieldErrors) > 0 {
		return core.Transaction{}, fieldErrors
	}
	return core.Transaction{
		Title:    title,
		Amount:   req.Amount,
		Type:     txType,
		Category: req.Category,
		Date:     date,
	}, nil
}

func fieldErrorNames(fieldErrors map[string][]string) []string {
	names := make([]string, 0, len(fieldErrors))
	for name := range fieldErrors {
		names = append(names, name)
	}
	return names
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
