package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/safar/stockbill/internal/billing"
	"github.com/safar/stockbill/internal/models"
)

type createProductRequest struct {
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Subcategory string            `json:"subcategory"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int               `json:"quantity"`
	Variations  models.Variations `json:"variations"`
}

func (req createProductRequest) validate() error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return &billing.ValidationError{Field: "name", Message: "product name is required"}
	case req.Price.IsNegative():
		return &billing.ValidationError{Field: "price", Message: "price must not be negative"}
	case req.Quantity < 0:
		return &billing.ValidationError{Field: "quantity", Message: "quantity must not be negative"}
	}
	for _, v := range req.Variations {
		if v.Quantity < 0 || v.Price.IsNegative() {
			return &billing.ValidationError{Field: "variations", Message: "variation " + v.Size + " has a negative price or quantity"}
		}
	}
	return nil
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1, 0)
	pageSize := queryInt(r, "page_size", 20, 100)

	result, err := s.products.ListProducts(r.Context(), page, pageSize)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	product, err := s.products.CreateProduct(r.Context(), models.Product{
		Name:        strings.TrimSpace(req.Name),
		Category:    strings.TrimSpace(req.Category),
		Subcategory: strings.TrimSpace(req.Subcategory),
		Price:       req.Price,
		Quantity:    req.Quantity,
		Variations:  req.Variations,
	})
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.products.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.products.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProductsLive(w http.ResponseWriter, r *http.Request) {
	updates, err := s.products.Subscribe(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	stream(w, r, "products", updates)
}
