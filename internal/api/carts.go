package api

import (
	"errors"
	"net/http"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/store"
)

type addCartItemRequest struct {
	Item     int64 `json:"item" validate:"required,gt=0"`
	Quantity *int  `json:"quantity" validate:"required"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := store.ResolveCart(r.Context(), h.db, callerFrom(r.Context()).Identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *Handler) ListCartItems(w http.ResponseWriter, r *http.Request) {
	cart, err := store.GetCart(r.Context(), h.db, callerFrom(r.Context()).Identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart.Lines)
}

func (h *Handler) GetCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	line, err := store.GetCartLine(r.Context(), h.db, callerFrom(r.Context()).Identity, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, line)
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !h.bind(w, r, &req) {
		return
	}

	line, err := store.AddItem(r.Context(), h.db, callerFrom(r.Context()).Identity, req.Item, *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, line)
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateCartItemRequest
	if !h.bind(w, r, &req) {
		return
	}

	ctx := r.Context()
	identity := callerFrom(ctx).Identity

	current, err := store.GetCartLine(ctx, h.db, identity, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	line, deleted, err := store.UpdateQuantity(ctx, h.db, identity, current.ItemID, *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if deleted {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, line)
}

// DeleteCartItem answers 204 whether or not the line still exists.
func (h *Handler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	identity := callerFrom(ctx).Identity

	line, err := store.GetCartLine(ctx, h.db, identity, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	if err := store.RemoveItem(ctx, h.db, identity, line.ItemID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
