package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/middlewares"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"bitbucket.org/mmdatafocus/backoffice_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// opsPubSubHandler is the push endpoint for scheduled operations. Cloud
// Scheduler publishes a message with reference_type "Reconcile" per business;
// the handler runs the reconciliation sweep for that business. Anything else
// on the subscription gets acked and dropped.
func opsPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		// Redis lock is a best-effort optimization to avoid overlapping sweeps.
		// Reliability must not depend on Redis: the per-order MySQL advisory
		// locks inside the sweep serialize the actual writes.
		redisLock := config.GetRedisLock()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "opsPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "opsPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m config.PubSubMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "opsPubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		if m.BusinessId == "" || m.ReferenceType == "" {
			config.LogError(logger, "server.go", "opsPubSubHandler", "Invalid pubsub message (missing required fields)", m, fmt.Errorf("business_id/reference_type required"))
			c.Status(http.StatusNoContent)
			return
		}
		if m.ReferenceType != "Reconcile" {
			// Not an ops message; ack so it does not loop forever.
			c.Status(http.StatusNoContent)
			return
		}

		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}

		var lock *redislock.Lock
		if redisLock != nil {
			lock, err = redisLock.Obtain(c.Request.Context(), fmt.Sprintf("reconcile:%s", m.BusinessId), 30*time.Second, nil)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"field":       "opsPubSubHandler",
					"business_id": m.BusinessId,
					"message_id":  msg.Message.ID,
				}).Warn("could not obtain redis lock; proceeding without redis lock")
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":       "opsPubSubHandler",
					"business_id": m.BusinessId,
					"message_id":  msg.Message.ID,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyBusinessId, m.BusinessId)
		ctx = context.WithValue(ctx, utils.ContextKeyUserId, 0)
		ctx = context.WithValue(ctx, utils.ContextKeyUserName, "System")
		ctx = utils.SetCorrelationIdInContext(ctx, correlationID)
		if _, err := workflow.RunReconciliationScan(ctx); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "opsPubSubHandler",
				"business_id":    m.BusinessId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("reconciliation sweep failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// authorizeInternalBusiness ensures the session user is allowed to act on the provided business_id.
// - Admin users may act on any business.
// - Non-admin users may only act on their own business.
func authorizeInternalBusiness(ctx context.Context, businessId string) error {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return errors.New("unauthorized")
	}
	if businessId == "" {
		return errors.New("business_id is required")
	}

	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return err
	}
	if !exists {
		db := config.GetDB()
		if db == nil {
			return errors.New("db is nil")
		}
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return errors.New("unauthorized")
		}
	}

	if user.Role == models.UserRoleAdmin {
		return nil
	}
	if user.BusinessId != businessId {
		return errors.New("unauthorized")
	}
	return nil
}

func authorizeAdminOnly(ctx context.Context) error {
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return errors.New("unauthorized")
	}

	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return err
	}
	if !exists {
		db := config.GetDB()
		if db == nil {
			return errors.New("db is nil")
		}
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return errors.New("unauthorized")
		}
	}
	if user.Role != models.UserRoleAdmin {
		return errors.New("unauthorized")
	}
	return nil
}

type outboxReplayRequest struct {
	BusinessId string `json:"business_id"`
	RecordId   int    `json:"record_id"`
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.BusinessId == "" || req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id and record_id are required"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		now := time.Now().UTC()
		if err := db.WithContext(c.Request.Context()).
			Model(&models.FulfillmentEventRecord{}).
			Where("id = ? AND business_id = ?", req.RecordId, req.BusinessId).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
			}).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"business_id":     req.BusinessId,
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}

type reconcileRequest struct {
	BusinessId string `json:"business_id"`
}

func reconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req reconcileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.BusinessId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id is required"})
			return
		}
		if err := authorizeInternalBusiness(c.Request.Context(), req.BusinessId); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), req.BusinessId)
		report, err := workflow.RunReconciliationScan(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": report})
	}
}

type clearOrdersRequest struct {
	BusinessId string `json:"business_id"`
	CompanyId  int    `json:"company_id"`
}

func clearOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req clearOrdersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.BusinessId == "" || req.CompanyId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business_id and company_id are required"})
			return
		}
		if err := authorizeInternalBusiness(c.Request.Context(), req.BusinessId); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), req.BusinessId)
		deleted, err := workflow.ClearCompanyOrders(ctx, req.CompanyId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		c.JSON(http.StatusOK, gin.H{
			"business_id":    req.BusinessId,
			"company_id":     req.CompanyId,
			"deleted_count":  deleted,
			"correlation_id": cid,
		})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT_2")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	r.Use(middlewares.CorrelationIdMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "Idempotency-Key")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/login", loginHandler())
	r.POST("/auth/logout", logoutHandler())
	r.POST("/auth/change-password", changePasswordHandler())
	r.GET("/users", listUsersHandler())
	r.POST("/users", createUserHandler())

	r.POST("/businesses", createBusinessHandler())
	r.GET("/businesses", listBusinessesHandler())
	r.GET("/businesses/current", currentBusinessHandler())
	r.PUT("/businesses/current", updateBusinessHandler())
	r.PUT("/businesses/:id/active", toggleBusinessHandler())

	r.POST("/orders", createOrderHandler())
	r.GET("/orders", listOrdersHandler())
	r.GET("/orders/:id", getOrderHandler())
	r.PUT("/orders/:id", updateOrderHandler())
	r.DELETE("/orders/:id", deleteOrderHandler())
	r.POST("/orders/:id/complete", completeOrderHandler())
	r.POST("/orders/:id/cancel", cancelOrderHandler())
	r.POST("/orders/:id/return", returnItemsHandler())
	r.POST("/orders/:id/payments", registerPaymentHandler())
	r.GET("/orders/:id/ledger", orderLedgerHandler())
	r.GET("/orders/:id/stock-log", orderStockLogHandler())
	r.GET("/orders/:id/history", orderHistoryHandler())
	r.GET("/orders/:id/events", orderEventsHandler())
	r.POST("/orders/:id/events/reprocess", orderEventsReprocessHandler())

	r.POST("/ledger/entries", createFinanceEntryHandler())
	r.GET("/ledger/entries", listFinanceEntriesHandler())
	r.GET("/ledger/balance", ledgerBalanceHandler())
	r.GET("/ledger/monthly", ledgerMonthlyHandler())
	r.GET("/ledger/yearly", ledgerYearlyHandler())
	r.GET("/ledger/by-company", ledgerByCompanyHandler())
	r.GET("/ledger/export", exportLedgerHandler())

	r.GET("/reports/outstanding-debt", outstandingDebtHandler())
	r.GET("/reports/stock-summary", stockSummaryHandler())
	r.GET("/reports/warehouse-inventory", warehouseInventoryHandler())

	r.POST("/companies", createCompanyHandler())
	r.GET("/companies", listCompaniesHandler())
	r.GET("/companies/all", companiesPickerHandler())
	r.GET("/companies/:id", getCompanyHandler())
	r.PUT("/companies/:id", updateCompanyHandler())
	r.PUT("/companies/:id/active", toggleCompanyHandler())
	r.DELETE("/companies/:id", deleteCompanyHandler())
	r.POST("/warehouses", createWarehouseHandler())
	r.GET("/warehouses", listWarehousesHandler())
	r.PUT("/warehouses/:id", updateWarehouseHandler())
	r.PUT("/warehouses/:id/active", toggleWarehouseHandler())
	r.DELETE("/warehouses/:id", deleteWarehouseHandler())
	r.POST("/products", createProductHandler())
	r.GET("/products", listProductsHandler())
	r.GET("/products/all", productsPickerHandler())
	r.GET("/products/:id", getProductHandler())
	r.PUT("/products/:id", updateProductHandler())
	r.PUT("/products/:id/active", toggleProductHandler())
	r.DELETE("/products/:id", deleteProductHandler())
	r.POST("/products/:id/restock", restockProductHandler())
	r.POST("/products/:id/correct-stock", correctStockHandler())
	r.GET("/histories", listHistoriesHandler())

	r.POST("/uploads/sign", signUploadHandler())
	r.POST("/uploads/complete", completeUploadHandler())
	r.GET("/uploads/object", uploadObjectHandler())

	r.POST("/pubsub", opsPubSubHandler())
	// Ops tooling: replay stuck outbox messages, run the reconcile sweep, bulk-clear a company.
	r.POST("/internal/ops/outbox/replay", outboxReplayHandler())
	r.POST("/internal/ops/reconcile", reconcileHandler())
	r.POST("/internal/ops/clear-orders", clearOrdersHandler())
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start outbox dispatcher (publishes AFTER commit).
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)

	// Safety net: periodically repair pending ledger postings even when the
	// scheduled Pub/Sub trigger is not configured.
	reconciler := NewReconcileWorker(db, logger)
	if config.ReconcileOnStartup() {
		// one synchronous sweep so orders stuck mid-completion from a previous
		// crash are settled before new commands interleave
		reconciler.sweepOnce(workerCtx)
	}
	if shouldRunReconcileWorker() {
		go reconciler.Run(workerCtx)
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
