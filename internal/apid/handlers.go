package apid

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vaultbox/emts/internal/logging"
	"github.com/vaultbox/emts/internal/models"
	"github.com/vaultbox/emts/internal/utils"
)

var validate = validator.New()

type handlers struct {
	store Store
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.ErrorLog("apid: encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, errorResponse{Error: msg})
}

// listMessages serves GET /messages.
func (h *handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := queryParams{
		Recipient: q.Get("recipient"),
		IsRead:    q.Get("is_read"),
		DateFrom:  q.Get("date_from"),
		DateTo:    q.Get("date_to"),
		Search:    q.Get("search"),
		Advanced:  q.Get("advanced"),
		Page:      atoiOr(q.Get("page"), 1),
		PageSize:  atoiOr(q.Get("page_size"), 25),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if err := validate.Struct(params); err != nil {
		respondError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	filter := models.Filter{
		RecipientUsername: params.Recipient,
		DateFrom:          params.DateFrom,
		DateTo:            params.DateTo,
		Search:            params.Search,
		Advanced:          params.Advanced,
	}
	if params.IsRead != "" {
		b := params.IsRead == "true"
		filter.IsRead = &b
	}
	if params.Recipient != "" {
		logging.DebugLog("apid: listMessages recipient_username=%s", utils.HashUsername(params.Recipient))
	}

	page := h.store.Query(filter, params.Page, params.PageSize, models.SortField(params.SortBy), models.SortOrder(params.SortOrder))
	respondJSON(w, http.StatusOK, page)
}

// getMessage serves GET /messages/{id}.
func (h *handlers) getMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, ok := h.store.Get(id, r.URL.Query().Get("recipient"))
	if !ok {
		respondError(w, http.StatusNotFound, "message not found")
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// markRead serves PATCH /messages/{id}/read.
func (h *handlers) markRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !h.store.MarkRead(id, r.URL.Query().Get("recipient"), req.IsRead) {
		respondError(w, http.StatusNotFound, "message not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteMessage serves DELETE /messages/{id}.
func (h *handlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.Delete(id, r.URL.Query().Get("recipient")) {
		respondError(w, http.StatusNotFound, "message not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
