package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/safar/stockbill/internal/billing"
	"github.com/safar/stockbill/internal/database"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("encode JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondFailure maps a billing or store error to a status code and body.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := billing.KindOf(err)
	if kind == billing.KindUnknown {
		switch {
		case errors.Is(err, database.ErrProductNotFound), errors.Is(err, database.ErrBillNotFound):
			kind = billing.KindNotFound
		default:
			kind = billing.KindStoreUnavailable
		}
	}

	body := errorBody{Error: err.Error(), Kind: kind.String()}
	status := http.StatusInternalServerError

	switch kind {
	case billing.KindValidation:
		status = http.StatusBadRequest
	case billing.KindInsufficientStock:
		status = http.StatusConflict
		var stockErr *billing.InsufficientStockError
		if errors.As(err, &stockErr) {
			available := stockErr.Available
			body.Available = &available
		}
	case billing.KindNotFound:
		status = http.StatusNotFound
	case billing.KindStoreUnavailable:
		status = http.StatusServiceUnavailable
		s.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}

	respondJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{
			Error: "Invalid request body",
			Kind:  billing.KindValidation.String(),
		})
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, fallback, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 || (max > 0 && v > max) {
		return fallback
	}
	return v
}
