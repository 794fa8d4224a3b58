package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vaidashi/storefront-api/internal/service"
)

// CancelOrderRequest is the optional body of PUT /orders/{id}/cancel
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// createOrderHandler places an order for the caller
func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var in service.CreateOrderInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	order, err := s.deps.Orders.CreateOrder(r.Context(), s.caller(r).UserID, in)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, order)
}

// listMyOrdersHandler returns the caller's orders, newest first
func (s *Server) listMyOrdersHandler(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	result, err := s.deps.Queries.ListOwnOrders(r.Context(), s.caller(r).UserID, page, limit)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, result)
}

// getOrderHandler returns an order to its owner or an admin
func (s *Server) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := s.deps.Queries.GetOrder(r.Context(), mux.Vars(r)["id"], s.caller(r))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, order)
}

// cancelOrderHandler lets the owner cancel an order that has not shipped
func (s *Server) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	order, err := s.deps.Orders.CancelOrder(r.Context(), mux.Vars(r)["id"], s.caller(r).UserID, req.Reason)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, order)
}

// listAllOrdersHandler is the admin order listing
func (s *Server) listAllOrdersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := service.NewAdminOrderFilter(q.Get("status"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	page, limit := pageParams(r)
	result, err := s.deps.Queries.ListAllOrders(r.Context(), filter, page, limit)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, result)
}

// orderStatsHandler returns the admin dashboard aggregates
func (s *Server) orderStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Queries.GetOrderStats(r.Context())
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, stats)
}

// updateOrderStatusHandler moves an order along its lifecycle
func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateStatusInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	order, err := s.deps.Orders.UpdateOrderStatus(r.Context(), mux.Vars(r)["id"], in, s.caller(r).UserID)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, order)
}

// deleteOrderHandler removes an order, restocking it when still processing
func (s *Server) deleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.deps.Orders.DeleteOrder(r.Context(), id, s.caller(r).UserID); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, map[string]string{
		"message": "Order deleted successfully",
		"id":      id,
	})
}
