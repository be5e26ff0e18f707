package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"apotekku/backend/internal/domain"
)

func (a *API) handleListMedicines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expiring, _ := strconv.ParseBool(q.Get("expiring"))

	medicines, err := a.service.ListMedicines(r.Context(), q.Get("q"), expiring)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"medicines": medicines})
}

func (a *API) handleGetMedicine(w http.ResponseWriter, r *http.Request) {
	medicine, err := a.service.GetMedicine(r.Context(), chi.URLParam(r, "medicineID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"medicine": medicine})
}

func (a *API) handleCreateMedicine(w http.ResponseWriter, r *http.Request) {
	var req domain.MedicineCreateRequest
	if !a.bind(w, r, &req) {
		return
	}

	medicine, err := a.service.CreateMedicine(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"medicine": medicine})
}

func (a *API) handleUpdateMedicine(w http.ResponseWriter, r *http.Request) {
	var req domain.MedicineUpdateRequest
	if !a.bind(w, r, &req) {
		return
	}

	medicine, err := a.service.UpdateMedicine(r.Context(), chi.URLParam(r, "medicineID"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"medicine": medicine})
}

func (a *API) handleDeleteMedicine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "medicineID")
	if err := a.service.DeleteMedicine(r.Context(), id); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (a *API) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := a.service.ListPurchases(r.Context(), chi.URLParam(r, "medicineID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

func (a *API) handleRecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseCreateRequest
	if !a.bind(w, r, &req) {
		return
	}

	purchase, err := a.service.RecordPurchase(r.Context(), chi.URLParam(r, "medicineID"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"purchase": purchase})
}

func (a *API) handlePurchaseSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := a.service.PurchaseSummary(r.Context(), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
