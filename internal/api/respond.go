package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/electronics-store/internal/auth"
	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// classify maps an error onto an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, database.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient_stock"
	case errors.Is(err, database.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, database.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, database.ErrAlreadyProcessed):
		return http.StatusBadRequest, "already_processed"
	case errors.Is(err, database.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, database.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	resp := ErrorResponse{Error: err.Error(), Code: code}

	var stockErr *database.InsufficientStockError
	var argErr *database.InvalidArgumentError
	switch {
	case errors.As(err, &stockErr):
		resp.Details = map[string]any{
			"item":      stockErr.ItemID,
			"item_name": stockErr.ItemName,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		}
	case errors.As(err, &argErr):
		resp.Error = argErr.Message
		if argErr.Field != "" {
			resp.Details = map[string]any{argErr.Field: argErr.Message}
		}
	}

	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		resp.Error = "internal server error"
	}

	respondJSON(w, status, resp)
}
