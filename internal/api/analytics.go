package api

import (
	"net/http"
	"time"
)

const dateLayout = "2006-01-02"

func (s *Server) analyticsAvailable(w http.ResponseWriter) bool {
	if s.analytics == nil {
		respondError(w, http.StatusNotImplemented, "Analytics are not available for this backend")
		return false
	}
	return true
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !s.analyticsAvailable(w) {
		return
	}

	summary, err := s.analytics.Summary(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// handleDaily reports per-day totals between from and to inclusive. The range
// defaults to the last 30 days.
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	if !s.analyticsAvailable(w) {
		return
	}

	now := time.Now()
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" {
		from = now.AddDate(0, 0, -30).Format(dateLayout)
	}
	if to == "" {
		to = now.Format(dateLayout)
	}
	for _, v := range []string{from, to} {
		if _, err := time.Parse(dateLayout, v); err != nil {
			respondError(w, http.StatusBadRequest, "Dates must be YYYY-MM-DD")
			return
		}
	}

	daily, err := s.analytics.Daily(r.Context(), from, to)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, daily)
}

func (s *Server) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	if !s.analyticsAvailable(w) {
		return
	}

	top, err := s.analytics.TopProducts(r.Context(), queryInt(r, "limit", 10, 100))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, top)
}

func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if !s.analyticsAvailable(w) {
		return
	}

	products, err := s.analytics.LowStock(r.Context(), queryInt(r, "threshold", 5, 0))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleInventoryValue(w http.ResponseWriter, r *http.Request) {
	if !s.analyticsAvailable(w) {
		return
	}

	value, err := s.analytics.InventoryValue(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, value)
}
