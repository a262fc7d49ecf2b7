package api

import (
	"net/http"
	"strconv"

	"github.com/safar/electronics-store/internal/store"
)

type placeOrderRequest struct {
	CustomerEmail   string `json:"customer_email" validate:"omitempty,email"`
	DeliveryAddress string `json:"delivery_address" validate:"omitempty,max=500"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid processing shipped delivered cancelled"`
}

func (h *Handler) PlaceOrderFromCart(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !h.bind(w, r, &req) {
		return
	}

	order, err := store.PlaceOrderFromCart(r.Context(), h.db, store.PlaceOrderRequest{
		Caller:          callerFrom(r.Context()),
		CustomerEmail:   req.CustomerEmail,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		_, code := classify(err)
		h.metrics.CheckoutResult(code)
		writeError(w, r, err)
		return
	}

	h.metrics.CheckoutResult(string(store.CheckoutCommitted))
	respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	result, err := store.ListOrders(r.Context(), h.db, scopedCaller(r), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	order, err := store.GetOrderForCaller(r.Context(), h.db, scopedCaller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateOrderStatusRequest
	if !h.bind(w, r, &req) {
		return
	}

	order, err := store.UpdateOrderStatus(r.Context(), h.db, id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
