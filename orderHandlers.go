package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"bitbucket.org/mmdatafocus/backoffice_backend/workflow"
	"github.com/gin-gonic/gin"
)

// respondError maps the domain error types onto HTTP statuses. Partial write
// is not handled here: the completion handler returns it as a 200 with the
// order and the failed lines side by side.
func respondError(c *gin.Context, err error) {
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
		return
	}
	var nf *utils.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
		return
	}
	var ie *utils.InconsistencyError
	if errors.As(err, &ie) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": ie.Error(), "order_id": ie.OrderId, "step": ie.Step})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := models.CreateOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": order})
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.OrderStatus
		if s := strings.TrimSpace(c.Query("status")); s != "" {
			v := models.OrderStatus(s)
			switch v {
			case models.OrderStatusOpen, models.OrderStatusCompleted, models.OrderStatusCanceled:
				status = &v
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order status"})
				return
			}
		}
		conn, err := models.PaginateOrders(c.Request.Context(),
			limitQueryParam(c, 20),
			stringQueryParam(c, "after"),
			stringQueryParam(c, "order_number"),
			status,
			intQueryParam(c, "company_id"),
			dateQueryParam(c, "from_date"),
			dateQueryParam(c, "to_date"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": conn})
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		order, err := models.GetOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

func updateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		var input models.NewOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := models.UpdateOrder(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

func deleteOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		if err := workflow.DeleteOrder(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func completeOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		var input workflow.CompleteOrderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))

		order, err := workflow.CompleteOrder(c.Request.Context(), id, &input)
		if err != nil {
			var pw *utils.PartialWriteError
			if errors.As(err, &pw) {
				// The order did complete; the failed lines ride along so the
				// client can surface them.
				c.JSON(http.StatusOK, gin.H{"data": order, "line_errors": pw.LineErrors})
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

func cancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		order, err := workflow.CancelOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

type returnItemsRequest struct {
	Returns []workflow.ReturnLine `json:"returns" binding:"required"`
}

func returnItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		var req returnItemsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := workflow.ReturnItems(c.Request.Context(), id, req.Returns)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

func registerPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		var input workflow.RegisterPaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		input.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))

		order, err := workflow.RegisterPayment(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

// orderLedgerHandler lists the finance entries attached to one order, the
// completion posting plus any returns and payments.
func orderLedgerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		entries, err := models.GetFinanceEntries(c.Request.Context(), nil, nil, nil, &id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": entries})
	}
}

func orderStockLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		transactions, err := models.GetInventoryTransactions(c.Request.Context(), nil, &id, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": transactions})
	}
}

func orderHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		refType := "orders"
		histories, err := models.GetHistories(c.Request.Context(), &id, &refType, nil)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": histories})
	}
}

func orderEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		status, err := models.GetOutboxStatus(c.Request.Context(), models.FulfillmentReferenceTypeOrder, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": status})
	}
}

func orderEventsReprocessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		status, err := models.ReprocessOutbox(c.Request.Context(), models.FulfillmentReferenceTypeOrder, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": status})
	}
}

func parseIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func intQueryParam(c *gin.Context, name string) *int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// limitQueryParam always returns a usable page size; the pagination helpers
// expect a non-nil limit.
func limitQueryParam(c *gin.Context, fallback int) *int {
	n := fallback
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if n > 200 {
		n = 200
	}
	return &n
}

func stringQueryParam(c *gin.Context, name string) *string {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	return &v
}

// dateQueryParam accepts a plain date or the datetime format the JSON bodies
// use. Day-boundary normalization to the business timezone happens on the
// model side.
func dateQueryParam(c *gin.Context, name string) *models.MyDateString {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", v)
		if err != nil {
			return nil
		}
	}
	d := models.MyDateString(t)
	return &d
}
