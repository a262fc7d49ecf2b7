package api

import (
	"net/http"

	"github.com/safar/electronics-store/internal/models"
	"github.com/safar/electronics-store/internal/store"
	"go.uber.org/zap"
)

type createCustomerRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Username        string `json:"username" validate:"required,max=150"`
	PhoneNumber     string `json:"phone_number" validate:"omitempty,max=20"`
	DeliveryAddress string `json:"delivery_address" validate:"omitempty,max=500"`
	UserType        string `json:"user_type" validate:"omitempty,oneof=customer staff admin"`
}

func (h *Handler) ListPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := store.ListPerformanceMetrics(r.Context(), h.db, r.URL.Query().Get("metric_type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}

func (h *Handler) Profitability(w http.ResponseWriter, r *http.Request) {
	metrics, err := store.ListPerformanceMetrics(r.Context(), h.db, models.MetricProfitability)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}

func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := store.GetSalesSummary(r.Context(), h.db)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) RefreshMetrics(w http.ResponseWriter, r *http.Request) {
	recorded, err := store.RecordSalesMetrics(r.Context(), h.db)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.log.Info("sales metrics recorded", zap.Int("rows", len(recorded)))
	respondJSON(w, http.StatusCreated, recorded)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	customerID, ok := callerFrom(r.Context()).Identity.CustomerID()
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "Authentication credentials were not provided.")
		return
	}

	customer, err := store.GetCustomer(r.Context(), h.db, customerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := store.ListCustomers(r.Context(), h.db, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	customer, err := store.GetCustomer(r.Context(), h.db, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if !h.bind(w, r, &req) {
		return
	}

	role := models.Role(req.UserType)
	if role == "" {
		role = models.RoleCustomer
	}

	customer, err := store.CreateCustomer(r.Context(), h.db, store.CustomerInput{
		Email:           req.Email,
		Username:        req.Username,
		PhoneNumber:     req.PhoneNumber,
		DeliveryAddress: req.DeliveryAddress,
		UserType:        role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, customer)
}
