package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/models/reports"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func createFinanceEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewFinanceEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entry, err := models.CreateFinanceEntry(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": entry})
	}
}

func listFinanceEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var entryType *models.FinanceEntryType
		if s := strings.TrimSpace(c.Query("entry_type")); s != "" {
			v := models.FinanceEntryType(s)
			switch v {
			case models.FinanceEntryTypeIncome, models.FinanceEntryTypeExpense:
				entryType = &v
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid finance entry type"})
				return
			}
		}
		conn, err := models.PaginateFinanceEntries(c.Request.Context(),
			limitQueryParam(c, 20),
			stringQueryParam(c, "after"),
			entryType,
			intQueryParam(c, "company_id"),
			intQueryParam(c, "warehouse_id"),
			dateQueryParam(c, "from_date"),
			dateQueryParam(c, "to_date"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": conn})
	}
}

func ledgerBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, err := reports.GetLedgerBalance(c.Request.Context(),
			intQueryParam(c, "company_id"),
			intQueryParam(c, "warehouse_id"),
			dateQueryParam(c, "from_date"),
			dateQueryParam(c, "to_date"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": balance})
	}
}

func ledgerMonthlyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		year := time.Now().Year()
		if v := strings.TrimSpace(c.Query("year")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 2000 || n > 2200 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
				return
			}
			year = n
		}
		report, err := reports.GetMonthlyLedgerReport(c.Request.Context(), year, intQueryParam(c, "company_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": report})
	}
}

func ledgerYearlyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := reports.GetYearlyLedgerReport(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

func ledgerByCompanyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, ok := requireDateQuery(c, "from_date")
		if !ok {
			return
		}
		toDate, ok := requireDateQuery(c, "to_date")
		if !ok {
			return
		}
		rows, err := reports.GetLedgerByCompany(c.Request.Context(), fromDate, toDate)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

func exportLedgerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, ok := requireDateQuery(c, "from_date")
		if !ok {
			return
		}
		toDate, ok := requireDateQuery(c, "to_date")
		if !ok {
			return
		}
		content, filename, err := reports.ExportLedgerXlsx(c.Request.Context(), fromDate, toDate, intQueryParam(c, "company_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, xlsxContentType, content)
	}
}

func outstandingDebtHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := reports.GetOutstandingDebtReport(c.Request.Context(), intQueryParam(c, "company_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": report})
	}
}

func stockSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fromDate, ok := requireDateQuery(c, "from_date")
		if !ok {
			return
		}
		toDate, ok := requireDateQuery(c, "to_date")
		if !ok {
			return
		}
		rows, err := reports.GetStockSummaryReport(c.Request.Context(), fromDate, toDate, intQueryParam(c, "warehouse_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

func warehouseInventoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		toDate := models.MyDateString(time.Now())
		if d := dateQueryParam(c, "to_date"); d != nil {
			toDate = *d
		}
		rows, err := reports.GetWarehouseInventoryReport(c.Request.Context(), toDate)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

func requireDateQuery(c *gin.Context, name string) (models.MyDateString, bool) {
	d := dateQueryParam(c, name)
	if d == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is required (YYYY-MM-DD)"})
		return models.MyDateString{}, false
	}
	return *d, true
}
