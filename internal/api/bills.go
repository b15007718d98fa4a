package api

import (
	"net/http"

	"github.com/safar/stockbill/internal/store"
)

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 100)
	cursor := r.URL.Query().Get("cursor")
	if _, err := store.DecodeCursor(cursor); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid cursor")
		return
	}

	result, err := s.bills.ListBills(r.Context(), cursor, limit)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.bills.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, bill)
}

// handleDeleteBill removes the bill record only. Stock sold on the bill is not
// returned to the catalog.
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.DeleteBill(r.Context(), r.PathValue("id")); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBillsLive(w http.ResponseWriter, r *http.Request) {
	updates, err := s.bills.Subscribe(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	stream(w, r, "bills", updates)
}
