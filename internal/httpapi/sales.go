package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"apotekku/backend/internal/domain"
)

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if !a.bind(w, r, &req) {
		return
	}

	sale, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := a.service.GetCart(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (a *API) handleUpdateCart(w http.ResponseWriter, r *http.Request) {
	var req domain.CartUpdateRequest
	if !a.bind(w, r, &req) {
		return
	}

	cart, err := a.service.UpdateCart(r.Context(), chi.URLParam(r, "cartID"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")
	if err := a.service.ClearCart(r.Context(), cartID); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cartID})
}

func (a *API) handleCartCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CartCheckoutRequest
	if !a.bind(w, r, &req) {
		return
	}

	sale, err := a.service.CheckoutCart(r.Context(), chi.URLParam(r, "cartID"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := a.service.ListSales(r.Context(), q.Get("date_from"), q.Get("date_to"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req domain.ReturnRequest
	if !a.bind(w, r, &req) {
		return
	}
	if !a.requireManagerPIN(w, r, "return", req.ManagerPIN) {
		return
	}

	ret, err := a.service.CreateReturn(r.Context(), chi.URLParam(r, "saleID"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"return": ret})
}

func (a *API) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	var req domain.DeleteSaleRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.requireManagerPIN(w, r, "delete", req.ManagerPIN) {
		return
	}

	resp, err := a.service.DeleteSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRecomputeSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.RecomputeSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}
