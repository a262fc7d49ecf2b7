package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/safar/electronics-store/internal/database"
	"github.com/safar/electronics-store/internal/models"
	"github.com/safar/electronics-store/internal/store"
	"github.com/shopspring/decimal"
)

type createCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

type createItemRequest struct {
	SKU               string          `json:"sku" validate:"required,max=50"`
	Name              string          `json:"name" validate:"required,max=255"`
	Description       string          `json:"description"`
	Category          *int64          `json:"category" validate:"omitempty,gt=0"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	QuantityAvailable int             `json:"quantity_available" validate:"gte=0"`
	IsAvailable       *bool           `json:"is_available"`
	IsFeatured        bool            `json:"is_featured"`
	ImageURL          string          `json:"image_url" validate:"omitempty,url"`
}

type updateItemRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=255"`
	Description *string          `json:"description"`
	Category    *int64           `json:"category" validate:"omitempty,gt=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	IsAvailable *bool            `json:"is_available"`
	IsFeatured  *bool            `json:"is_featured"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,url"`
	Version     int              `json:"version" validate:"required,gt=0"`
}

// stockRequest either shifts stock by Delta or sets QuantityAvailable
// guarded by Version.
type stockRequest struct {
	Delta             *int `json:"delta" validate:"required_without=QuantityAvailable"`
	QuantityAvailable *int `json:"quantity_available" validate:"omitempty,gte=0"`
	Version           int  `json:"version"`
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), h.db)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if !h.bind(w, r, &req) {
		return
	}

	category, err := store.CreateCategory(r.Context(), h.db, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	var filter store.ItemFilter
	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, database.InvalidArgument("category", "A valid integer is required."))
			return
		}
		filter.CategoryID = &id
	}
	filter.AvailableOnly = r.URL.Query().Get("available") == "true"

	result, err := store.ListItems(r.Context(), h.db, filter, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.catalog.Item(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *Handler) FeaturedItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.Featured(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) HighestSelling(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxPageSize {
		limit = 10
	}

	items, err := store.ListHighestSelling(r.Context(), h.db, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !h.bind(w, r, &req) {
		return
	}

	in := store.ItemInput{
		SKU:               req.SKU,
		Name:              req.Name,
		Description:       req.Description,
		CategoryID:        req.Category,
		UnitPrice:         req.UnitPrice,
		QuantityAvailable: req.QuantityAvailable,
		IsAvailable:       req.IsAvailable == nil || *req.IsAvailable,
		IsFeatured:        req.IsFeatured,
		ImageURL:          req.ImageURL,
	}

	item, err := store.CreateItem(r.Context(), h.db, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item.IsFeatured {
		h.catalog.Invalidate(r.Context(), item.ID)
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateItemRequest
	if !h.bind(w, r, &req) {
		return
	}

	item, err := store.UpdateItem(r.Context(), h.db, id, store.ItemUpdate{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.Category,
		UnitPrice:   req.UnitPrice,
		IsAvailable: req.IsAvailable,
		IsFeatured:  req.IsFeatured,
		ImageURL:    req.ImageURL,
		Version:     req.Version,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.catalog.Invalidate(r.Context(), id)
	respondJSON(w, http.StatusOK, item)
}

func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req stockRequest
	if !h.bind(w, r, &req) {
		return
	}

	ctx := r.Context()
	var item *models.Item
	if req.Delta != nil {
		err = database.WithTransaction(ctx, h.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			var txErr error
			item, txErr = store.AdjustStock(ctx, tx, id, *req.Delta)
			return txErr
		})
	} else {
		if err = store.UpdateStockOptimistic(ctx, h.db, id, *req.QuantityAvailable, req.Version); err == nil {
			item, err = store.GetItem(ctx, h.db, id)
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.catalog.Invalidate(ctx, id)
	respondJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.DeleteItem(r.Context(), h.db, id); err != nil {
		writeError(w, r, err)
		return
	}

	h.catalog.Invalidate(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// bind decodes and validates a request body, writing the 400 itself.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decode(r, dst); err != nil {
		if verr, ok := err.(*ValidationError); ok {
			respondValidation(w, verr)
			return false
		}
		writeError(w, r, err)
		return false
	}
	return true
}
