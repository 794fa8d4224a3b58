package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/service"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
)

// StockAdjustmentRequest is the body of PATCH /admin/products/{id}/stock
type StockAdjustmentRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// listProductsHandler returns the active catalogue
func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := models.ParseProductSort(q.Get("sort"))
	if err != nil {
		s.respondWithError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	filter := models.ProductFilter{
		Category:   q.Get("category"),
		Brand:      q.Get("brand"),
		Keyword:    strings.TrimSpace(q.Get("keyword")),
		ActiveOnly: true,
		Sort:       sort,
	}

	for param, dst := range map[string]**decimal.Decimal{"minPrice": &filter.MinPrice, "maxPrice": &filter.MaxPrice} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			s.respondWithError(w, r, apperrors.NewValidationError(param+" must be a number"))
			return
		}
		*dst = &value
	}

	page, limit := pageParams(r)
	result, err := s.deps.Products.ListProducts(r.Context(), filter, page, limit)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, result)
}

// getProductHandler returns one active product
func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := s.deps.Products.GetActiveProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, product)
}

// adminGetProductHandler returns one product regardless of its active flag
func (s *Server) adminGetProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := s.deps.Products.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, product)
}

// createProductHandler adds a product to the catalogue
func (s *Server) createProductHandler(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	product, err := s.deps.Products.CreateProduct(r.Context(), in)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, product)
}

// updateProductHandler replaces the descriptive fields of a product
func (s *Server) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	product, err := s.deps.Products.UpdateProduct(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, product)
}

// deleteProductHandler removes a product
func (s *Server) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.deps.Products.DeleteProduct(r.Context(), id); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, map[string]string{
		"message": "Product deleted successfully",
		"id":      id,
	})
}

// adjustStockHandler applies a signed stock delta
func (s *Server) adjustStockHandler(w http.ResponseWriter, r *http.Request) {
	var req StockAdjustmentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	product, err := s.deps.Products.AdjustStock(r.Context(), mux.Vars(r)["id"], req.Delta, s.caller(r).UserID, req.Reason)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, product)
}
