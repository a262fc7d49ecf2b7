package api

import (
	"net/http"

	"github.com/safar/electronics-store/internal/models"
	"github.com/safar/electronics-store/internal/store"
)

type initiatePaymentRequest struct {
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	PaymentMethod *int64 `json:"payment_method" validate:"omitempty,gt=0"`
	Outcome       string `json:"outcome" validate:"omitempty,oneof=completed failed"`
}

type paymentResponse struct {
	*models.Payment
	Receipt *models.Receipt `json:"receipt,omitempty"`
	Invoice *models.Invoice `json:"invoice,omitempty"`
}

func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req initiatePaymentRequest
	if !h.bind(w, r, &req) {
		return
	}

	result, err := store.InitiatePayment(r.Context(), h.db, store.InitiatePaymentRequest{
		PaymentID:       id,
		Caller:          callerFrom(r.Context()),
		CustomerEmail:   req.CustomerEmail,
		PaymentMethodID: req.PaymentMethod,
		Outcome:         store.PaymentOutcome(req.Outcome),
	})
	if err != nil {
		_, code := classify(err)
		h.metrics.PaymentResult(code)
		writeError(w, r, err)
		return
	}

	h.metrics.PaymentResult(result.Payment.Status)
	respondJSON(w, http.StatusOK, paymentResponse{
		Payment: result.Payment,
		Receipt: result.Receipt,
		Invoice: result.Invoice,
	})
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := store.ListPayments(r.Context(), h.db, scopedCaller(r), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payment, err := store.GetPayment(r.Context(), h.db, scopedCaller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

func (h *Handler) ListPaymentHistory(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := store.ListPaymentHistory(r.Context(), h.db, scopedCaller(r), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := store.ListPaymentMethods(r.Context(), h.db)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, methods)
}
