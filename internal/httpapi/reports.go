package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := a.service.Dashboard(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (a *API) handleExportSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := a.service.ListSales(r.Context(), q.Get("date_from"), q.Get("date_to"))
	if err != nil {
		a.fail(w, err)
		return
	}

	rows := make([][]any, 0, len(list.Sales)+1)
	for _, s := range list.Sales {
		rows = append(rows, []any{
			s.ID,
			s.SaleDate.Format(time.RFC3339),
			s.SoldBy,
			s.Subtotal.InexactFloat64(),
			s.DiscountAmount.InexactFloat64(),
			s.PriceDeducted.InexactFloat64(),
			s.Extra.InexactFloat64(),
			s.FinalAmount.InexactFloat64(),
			s.ReturnedAmount.InexactFloat64(),
			s.NetAmount.InexactFloat64(),
			s.TotalProfit.InexactFloat64(),
		})
	}
	rows = append(rows, []any{"TOTAL", "", "", "", "", "", "", "", "", list.TotalAmount.InexactFloat64(), list.TotalProfit.InexactFloat64()})

	header := []any{"Sale ID", "Date", "Sold By", "Subtotal", "Discount", "Price Deducted", "Extra", "Final", "Returned", "Net", "Profit"}
	filename := fmt.Sprintf("sales-%s-%s.xlsx", list.DateFrom, list.DateTo)
	a.writeWorkbook(w, "Sales", filename, header, rows)
}

func (a *API) handleExportPurchases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := a.service.PurchaseSummary(r.Context(), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		a.fail(w, err)
		return
	}

	purchases := summary.TodayPurchases
	filename := fmt.Sprintf("purchases-%s.xlsx", summary.TodayDate)
	if summary.HasDateRange {
		purchases = summary.FilteredPurchases
		filename = fmt.Sprintf("purchases-%s-%s.xlsx", summary.StartDate, summary.EndDate)
	}

	rows := make([][]any, 0, len(purchases))
	for _, p := range purchases {
		rows = append(rows, []any{
			p.PurchaseDate.Format(time.RFC3339),
			p.MedicineName,
			p.Quantity,
			p.UnitPrice.InexactFloat64(),
			p.TotalAmount.InexactFloat64(),
			p.Notes,
		})
	}

	header := []any{"Date", "Medicine", "Quantity", "Unit Price", "Total", "Notes"}
	a.writeWorkbook(w, "Purchases", filename, header, rows)
}

func (a *API) writeWorkbook(w http.ResponseWriter, sheet string, filename string, header []any, rows [][]any) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		a.log.WithError(err).Warn("failed to stream workbook")
	}
}
