package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/safar/electronics-store/internal/storage"
	"github.com/safar/electronics-store/internal/store"
)

type downloadResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := store.ListReceipts(r.Context(), h.db, scopedCaller(r), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := store.GetReceipt(r.Context(), h.db, scopedCaller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (h *Handler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := store.GetReceipt(r.Context(), h.db, scopedCaller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.download(w, r, receipt.PDFURL, "receipt")
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	result, err := store.ListInvoices(r.Context(), h.db, scopedCaller(r), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	invoice, err := store.GetInvoice(r.Context(), h.db, scopedCaller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

func (h *Handler) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	invoice, err := store.GetInvoice(r.Context(), h.db, scopedCaller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.download(w, r, invoice.PDFURL, "invoice")
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request, storedPath, kind string) {
	url, err := h.link(r.Context(), storedPath)
	if errors.Is(err, storage.ErrNoDocument) {
		respondError(w, http.StatusNotFound, "not_found", "PDF "+kind+" not available for download.")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, downloadResponse{
		Message: "PDF " + kind + " is available for download.",
		URL:     url,
	})
}

func (h *Handler) link(ctx context.Context, storedPath string) (string, error) {
	if storedPath == "" {
		return "", storage.ErrNoDocument
	}
	return h.linker.DownloadURL(ctx, storedPath)
}
