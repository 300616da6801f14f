package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tripvault/balance"
	"tripvault/db/db"
	"tripvault/ledger"
	"tripvault/metrics"
	"tripvault/mq/mq"
	"tripvault/storage"
)

type Handler struct {
	ledger   *ledger.Ledger
	files    storage.FileStore
	events   mq.ExpenseMessageQueueWrapper
	upgrader websocket.Upgrader
}

// NewHandler wires the REST routes to the ledger. checkOrigin decides which
// browser origins may open the event websocket; nil keeps gorilla's
// same-origin rule.
func NewHandler(l *ledger.Ledger, files storage.FileStore, events mq.ExpenseMessageQueueWrapper, checkOrigin func(r *http.Request) bool) *Handler {
	return &Handler{
		ledger: l,
		files:  files,
		events: events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) Register(api gin.IRouter) {
	trips := api.Group("/trips")
	trips.POST("", h.createTrip)
	trips.GET("/:tripId", h.getTrip)
	trips.PUT("/:tripId/budget", h.updateBudget)
	trips.POST("/:tripId/expenses", h.createExpense)
	trips.GET("/:tripId/expenses", h.listExpenses)
	trips.GET("/:tripId/statistics", h.getStatistics)
	trips.GET("/:tripId/balance", h.getBalance)
	trips.GET("/:tripId/settlements", h.getSettlements)
	trips.GET("/:tripId/events", h.streamEvents)

	expenses := api.Group("/expenses")
	expenses.GET("/:expenseId", h.getExpense)
	expenses.PUT("/:expenseId", h.updateExpense)
	expenses.DELETE("/:expenseId", h.deleteExpense)
	expenses.PUT("/:expenseId/splits/:userId/paid", h.markSplitPaid)

	api.GET("/payment-settings", h.getPaymentSettings)
	api.PUT("/payment-settings", h.updatePaymentSettings)
	api.GET("/payment-settings/:userId", h.getUserPaymentSettings)

	api.GET("/files/*ref", h.getFile)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// maxMultipartBody leaves room for the form fields next to one upload.
const maxMultipartBody = storage.MaxFileSize + 1<<20

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == "multipart/form-data"
}

// bindBody binds a JSON or multipart body into dst. Multipart forms carry
// the split list as a JSON string in the "splits" field.
func bindBody(c *gin.Context, dst any, splits *[]splitRequest) error {
	if !isMultipart(c) {
		return c.ShouldBindJSON(dst)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMultipartBody)
	if err := c.ShouldBind(dst); err != nil {
		return err
	}
	if raw, ok := c.GetPostForm("splits"); ok && raw != "" && splits != nil {
		if err := json.Unmarshal([]byte(raw), splits); err != nil {
			return fmt.Errorf("splits: %w", err)
		}
	}
	return nil
}

// formUpload opens an optional multipart file. The returned close func is
// always safe to call.
func formUpload(c *gin.Context, field string) (*ledger.Upload, func(), error) {
	noop := func() {}
	if !isMultipart(c) {
		return nil, noop, nil
	}
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, noop, err
	}
	return &ledger.Upload{Filename: header.Filename, Body: f}, func() { f.Close() }, nil
}

func (h *Handler) createTrip(c *gin.Context) {
	var req createTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	in := ledger.NewTrip{Name: req.Name}
	for _, m := range req.Members {
		in.Members = append(in.Members, ledger.MemberInput{UserID: m.UserID, Role: db.Role(m.Role)})
	}
	if req.Budget != nil {
		in.Budget = db.Budget{Total: req.Budget.Total, Currency: req.Budget.Currency}
	}

	ctx := c.Request.Context()
	trip, err := h.ledger.CreateTrip(ctx, callerID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	names, _ := lookupUsers(ctx, tripUserIDs(trip), false)
	c.JSON(http.StatusCreated, toTripResponse(trip, names))
}

func (h *Handler) getTrip(c *gin.Context) {
	tripID, ok := uuidParam(c, "tripId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	trip, err := h.ledger.GetTrip(ctx, callerID(c), tripID)
	if err != nil {
		writeError(c, err)
		return
	}
	names, _ := lookupUsers(ctx, tripUserIDs(trip), false)
	c.JSON(http.StatusOK, toTripResponse(trip, names))
}

func (h *Handler) updateBudget(c *gin.Context) {
	tripID, ok := uuidParam(c, "tripId")
	if !ok {
		return
	}
	var req budgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	trip, err := h.ledger.UpdateBudget(ctx, callerID(c), tripID, db.Budget{Total: req.Total, Currency: req.Currency})
	if err != nil {
		writeError(c, err)
		return
	}
	names, _ := lookupUsers(ctx, tripUserIDs(trip), false)
	c.JSON(http.StatusOK, toTripResponse(trip, names))
}

func (h *Handler) createExpense(c *gin.Context) {
	tripID, ok := uuidParam(c, "tripId")
	if !ok {
		return
	}
	var req createExpenseRequest
	if err := bindBody(c, &req, &req.Splits); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	expenseDate, err := parseExpenseDate(req.ExpenseDate)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	bill, closeBill, err := formUpload(c, "billImage")
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid bill image: "+err.Error())
		return
	}
	defer closeBill()

	ctx := c.Request.Context()
	expense, err := h.ledger.CreateExpense(ctx, callerID(c), tripID, ledger.NewExpense{
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Category:    req.Category,
		PaidBy:      req.PaidBy,
		ExpenseDate: expenseDate,
		Splits:      toSplitInputs(req.Splits),
		BillImage:   bill,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	names, _ := lookupUsers(ctx, expenseUserIDs(expense), false)
	c.JSON(http.StatusCreated, toExpenseResponse(expense, names))
}

func (h *Handler) listExpenses(c *gin.Context) {
	tripID, ok := uuidParam(c, "tripId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	expenses, err := h.ledger.ListExpenses(ctx, callerID(c), tripID, ledger.ListOptions{
		Category: c.Query("category"),
		SortBy:   c.Query("sortBy"),
		Order:    c.Query("order"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	var ids []string
	for i := range expenses {
		ids = append(ids, expenseUserIDs(&expenses[i])...)
	}
	names, _ := lookupUsers(ctx, ids, false)
	resp := make([]expenseResponse, len(expenses))
	for i := range expenses {
		resp[i] = toExpenseResponse(&expenses[i], names)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getStatistics(c *gin.Context) {
	tripID, ok := uuidParam(c, "tripId")
	if !ok {
		return
	}
	snap, err := h.ledger.Snapshot(c.Request.Context(), callerID(c), tripID)
	if err != nil {
		writeError(c, err)
		return
	}
	start := time.Now()
	stats := balance.ComputeStatistics(snap.Trip, snap.Expenses)
	metrics.ObserveAggregation("statistics", start)
	c.JSON(http.StatusOK, toStatisticsResponse(stats))
}

func (h *Handler) getBalance(c *gin.Context) {
	tripID, ok := uuidParam(c, "tripId")
	if !ok {
		return
	}
	includeSettled, err := strconv.ParseBool(c.DefaultQuery("includeSettled", "false"))
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "includeSettled must be true or false")
		return
	}
	ctx := c.Request.Context()
	caller := callerID(c)
	snap, err := h.ledger.Snapshot(ctx, caller, tripID)
	if err != nil {
		writeError(c, err)
		return
	}
	names, payments := lookupUsers(ctx, tripUserIDs(snap.Trip, snap.Expenses...), true)

	start := time.Now()
	summary := balance.ComputeBalance(snap.Trip, snap.Expenses, caller, balance.Options{
		IncludeSettled: includeSettled,
		Names:          names,
		Payments:       payments,
	})
	metrics.ObserveAggregation("balance", start)
	c.JSON(http.StatusOK, toBalanceResponse(summary))
}

func (h *Handler) getSettlements(c *gin.Context) {
	tripID, ok := uuidParam(c, "tripId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	snap, err := h.ledger.Snapshot(ctx, callerID(c), tripID)
	if err != nil {
		writeError(c, err)
		return
	}
	start := time.Now()
	transfers := balance.PlanSettlements(snap.Expenses)
	metrics.ObserveAggregation("settlements", start)

	names, _ := lookupUsers(ctx, tripUserIDs(snap.Trip, snap.Expenses...), false)
	c.JSON(http.StatusOK, toTransferResponses(transfers, names))
}

func (h *Handler) getExpense(c *gin.Context) {
	expenseID, ok := uuidParam(c, "expenseId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	expense, err := h.ledger.GetExpense(ctx, callerID(c), expenseID)
	if err != nil {
		writeError(c, err)
		return
	}
	names, _ := lookupUsers(ctx, expenseUserIDs(expense), false)
	c.JSON(http.StatusOK, toExpenseResponse(expense, names))
}

func (h *Handler) updateExpense(c *gin.Context) {
	expenseID, ok := uuidParam(c, "expenseId")
	if !ok {
		return
	}
	var req updateExpenseRequest
	if err := bindBody(c, &req, &req.Splits); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	patch := ledger.ExpensePatch{
		Title:          req.Title,
		Description:    req.Description,
		Notes:          req.Notes,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Category:       req.Category,
		PaidBy:         req.PaidBy,
		Splits:         toSplitInputs(req.Splits),
		ClearBillImage: req.RemoveBillImage,
	}
	if req.ExpenseDate != nil {
		date, err := parseExpenseDate(*req.ExpenseDate)
		if err != nil {
			abortWithMessage(c, http.StatusBadRequest, err.Error())
			return
		}
		patch.ExpenseDate = date
	}
	bill, closeBill, err := formUpload(c, "billImage")
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid bill image: "+err.Error())
		return
	}
	defer closeBill()
	patch.BillImage = bill

	ctx := c.Request.Context()
	expense, err := h.ledger.UpdateExpense(ctx, callerID(c), expenseID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	names, _ := lookupUsers(ctx, expenseUserIDs(expense), false)
	c.JSON(http.StatusOK, toExpenseResponse(expense, names))
}

func (h *Handler) deleteExpense(c *gin.Context) {
	expenseID, ok := uuidParam(c, "expenseId")
	if !ok {
		return
	}
	if err := h.ledger.DeleteExpense(c.Request.Context(), callerID(c), expenseID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "expense deleted"})
}

func (h *Handler) markSplitPaid(c *gin.Context) {
	expenseID, ok := uuidParam(c, "expenseId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	expense, err := h.ledger.MarkSplitPaid(ctx, callerID(c), expenseID, c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	names, _ := lookupUsers(ctx, expenseUserIDs(expense), false)
	c.JSON(http.StatusOK, toExpenseResponse(expense, names))
}

func (h *Handler) getPaymentSettings(c *gin.Context) {
	settings, err := h.ledger.GetPaymentSettings(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentSettingsResponse(settings))
}

func (h *Handler) updatePaymentSettings(c *gin.Context) {
	var req paymentSettingsRequest
	if err := bindBody(c, &req, nil); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	qr, closeQR, err := formUpload(c, "qrCode")
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid qr code: "+err.Error())
		return
	}
	defer closeQR()

	settings, err := h.ledger.UpdatePaymentSettings(c.Request.Context(), callerID(c), ledger.PaymentSettingsPatch{
		UPIID:        req.UPIID,
		PhoneNumber:  req.PhoneNumber,
		BankName:     req.BankName,
		IsActive:     req.IsActive,
		QRCode:       qr,
		RemoveQRCode: req.RemoveQRCode,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentSettingsResponse(settings))
}

func (h *Handler) getUserPaymentSettings(c *gin.Context) {
	settings, err := h.ledger.GetUserPaymentSettings(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentSettingsResponse(settings))
}

func (h *Handler) getFile(c *gin.Context) {
	if h.files == nil {
		abortWithMessage(c, http.StatusNotFound, "file not found")
		return
	}
	ref := strings.TrimPrefix(c.Param("ref"), "/")
	rc, err := h.files.Open(c.Request.Context(), ref)
	if errors.Is(err, storage.ErrInvalidRef) || errors.Is(err, os.ErrNotExist) {
		abortWithMessage(c, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	defer rc.Close()

	contentType, ok := storage.ContentType(ref)
	var extraHeaders map[string]string
	if !ok {
		// never render anything outside the upload allowlist inline
		contentType = "application/octet-stream"
		extraHeaders = map[string]string{"Content-Disposition": "attachment"}
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, extraHeaders)
}
