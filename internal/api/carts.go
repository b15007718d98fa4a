package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/safar/stockbill/internal/billing"
	"github.com/safar/stockbill/internal/models"
)

type cartResponse struct {
	Cart     billing.CartView  `json:"cart"`
	Warnings []billing.Warning `json:"warnings,omitempty"`
}

type addLineRequest struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	AdHoc     bool            `json:"ad_hoc"`
}

type updateLineRequest struct {
	Quantity int `json:"quantity"`
}

type customerRequest struct {
	FullName string           `json:"full_name"`
	Date     string           `json:"date"`
	Address  string           `json:"address"`
	Phone    string           `json:"phone"`
	Discount *decimal.Decimal `json:"discount"`
	GSTRate  *decimal.Decimal `json:"gst_rate"`
	Due      *string          `json:"due"`
}

type commitResponse struct {
	Bill     *models.Bill      `json:"bill"`
	Warnings []billing.Warning `json:"warnings,omitempty"`
}

func (s *Server) respondCart(w http.ResponseWriter, status int, cart *billing.Cart) {
	respondJSON(w, status, cartResponse{
		Cart:     cart.View(),
		Warnings: cart.DrainWarnings(),
	})
}

func (s *Server) cart(w http.ResponseWriter, r *http.Request) (*billing.Cart, bool) {
	cart, err := s.carts.Get(r.PathValue("id"))
	if err != nil {
		s.respondFailure(w, r, err)
		return nil, false
	}
	return cart, true
}

func (s *Server) handleOpenCart(w http.ResponseWriter, r *http.Request) {
	cart := s.carts.Open(r.Context())
	s.respondCart(w, http.StatusCreated, cart)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}
	s.respondCart(w, http.StatusOK, cart)
}

func (s *Server) handleCancelCart(w http.ResponseWriter, r *http.Request) {
	warnings, err := s.carts.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cancelled": true,
		"warnings":  warnings,
	})
}

func (s *Server) handleAddLine(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}

	var req addLineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var err error
	if req.AdHoc {
		_, err = cart.AddAdHocLine(r.Context(), req.Name, req.Quantity, req.Price)
	} else {
		_, err = cart.AddCatalogLine(r.Context(), req.ProductID, req.Quantity)
	}
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondCart(w, http.StatusOK, cart)
}

func (s *Server) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}

	var req updateLineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if _, err := cart.UpdateLineQuantity(r.Context(), r.PathValue("ref"), req.Quantity); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondCart(w, http.StatusOK, cart)
}

func (s *Server) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}

	if err := cart.RemoveLine(r.Context(), r.PathValue("ref")); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondCart(w, http.StatusOK, cart)
}

func (s *Server) handleSetCustomer(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}

	var req customerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := cart.SetTerms(r.Context(), billing.Terms{
		Customer: billing.Customer{
			FullName: req.FullName,
			Date:     req.Date,
			Address:  req.Address,
			Phone:    req.Phone,
		},
		Discount: req.Discount,
		GSTRate:  req.GSTRate,
		Due:      req.Due,
	})
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.respondCart(w, http.StatusOK, cart)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}

	bill, err := s.committer.Commit(r.Context(), cart)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, commitResponse{
		Bill:     bill,
		Warnings: cart.DrainWarnings(),
	})
}
