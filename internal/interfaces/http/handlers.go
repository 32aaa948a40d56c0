package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsfinance/formflow/internal/application/port"
	"github.com/opsfinance/formflow/internal/application/service"
	"github.com/opsfinance/formflow/internal/domain/entity"
	"github.com/opsfinance/formflow/internal/voucher"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	requestService  service.RequestService
	supplierService service.SupplierService
	voucherService  service.VoucherService
	exporter        *voucher.Exporter
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	requestService service.RequestService,
	supplierService service.SupplierService,
	voucherService service.VoucherService,
	exporter *voucher.Exporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		requestService:  requestService,
		supplierService: supplierService,
		voucherService:  voucherService,
		exporter:        exporter,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ListResponse wraps paginated list results
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

// TransitionRequestBody is the payload for a status change
type TransitionRequestBody struct {
	Status  string `json:"status" binding:"required"`
	Remarks string `json:"remarks"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateRequest handles POST /api/requests. A body carrying an ID fully
// replaces the stored record.
func (h *Handlers) CreateRequest(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	var req entity.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}
	if req.RequestorID == uuid.Nil {
		req.RequestorID = actor.UserID
	}
	replacing := req.ID != 0

	created, err := h.requestService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusCreated
	if replacing {
		status = http.StatusOK
	}
	c.JSON(status, Response{Success: true, Data: created})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	req, err := h.requestService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	var filter port.RequestFilter

	if ft := c.Query("form_type"); ft != "" {
		filter.FormType = entity.FormType(ft)
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			filter.Statuses = append(filter.Statuses, entity.Status(strings.TrimSpace(s)))
		}
	}
	if requestor := c.Query("requestor_id"); requestor != "" {
		id, err := uuid.Parse(requestor)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid requestor_id"})
			return
		}
		filter.RequestorID = &id
	}
	filter.Search = c.Query("search")

	page := port.Page{
		Number: queryInt(c, "page", 1),
		Size:   queryInt(c, "page_size", 20),
	}

	requests, total, err := h.requestService.List(c.Request.Context(), filter, page)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: ListResponse{
		Items: requests,
		Total: total,
		Page:  page.Number,
		Size:  page.Limit(),
	}})
}

// TransitionRequest handles POST /api/requests/:id/status
func (h *Handlers) TransitionRequest(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var body TransitionRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	err := h.requestService.Transition(c.Request.Context(), actor, id, entity.Status(body.Status), body.Remarks)
	if err != nil {
		h.writeError(c, err)
		return
	}

	req, err := h.requestService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// DeleteRequest handles DELETE /api/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	if err := h.requestService.Delete(c.Request.Context(), actor, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// GetAuditTrail handles GET /api/requests/:id/audit
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	entries, err := h.requestService.AuditTrail(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// CreateSupplier handles POST /api/suppliers
func (h *Handlers) CreateSupplier(c *gin.Context) {
	var supplier entity.Supplier
	if err := c.ShouldBindJSON(&supplier); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	created, err := h.supplierService.Create(c.Request.Context(), &supplier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// ListSuppliers handles GET /api/suppliers
func (h *Handlers) ListSuppliers(c *gin.Context) {
	suppliers, err := h.supplierService.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: suppliers})
}

// GetSupplier handles GET /api/suppliers/:id
func (h *Handlers) GetSupplier(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	supplier, err := h.supplierService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: supplier})
}

// UpdateSupplier handles PUT /api/suppliers/:id
func (h *Handlers) UpdateSupplier(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var supplier entity.Supplier
	if err := c.ShouldBindJSON(&supplier); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}
	supplier.ID = id

	updated, err := h.supplierService.Update(c.Request.Context(), &supplier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// DeleteSupplier handles DELETE /api/suppliers/:id
func (h *Handlers) DeleteSupplier(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	if err := h.supplierService.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// CreateVoucher handles POST /api/vouchers
func (h *Handlers) CreateVoucher(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	var v entity.Voucher
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}
	if v.PreparedBy == uuid.Nil {
		v.PreparedBy = actor.UserID
	}

	created, err := h.voucherService.Create(c.Request.Context(), &v)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// ListVouchers handles GET /api/vouchers
func (h *Handlers) ListVouchers(c *gin.Context) {
	vouchers, err := h.voucherService.List(c.Request.Context(), entity.Status(c.Query("status")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: vouchers})
}

// GetVoucher handles GET /api/vouchers/:id
func (h *Handlers) GetVoucher(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	v, err := h.voucherService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: v})
}

// UpdateVoucher handles PUT /api/vouchers/:id
func (h *Handlers) UpdateVoucher(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	var v entity.Voucher
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}
	v.ID = id

	updated, err := h.voucherService.Update(c.Request.Context(), &v)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// ExportVoucher handles GET /api/vouchers/:id/export
func (h *Handlers) ExportVoucher(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	v, err := h.voucherService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data, err := h.exporter.Render(v)
	if err != nil {
		h.logger.Error("Failed to render voucher", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to render voucher"})
		return
	}

	filename := v.VoucherNumber + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// actorFrom builds the acting user from request headers. Requests without a
// valid user identity are refused.
func (h *Handlers) actorFrom(c *gin.Context) (entity.Actor, bool) {
	userID, err := uuid.Parse(c.GetHeader("X-User-ID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "missing or invalid X-User-ID header"})
		return entity.Actor{}, false
	}

	role := entity.Role(c.GetHeader("X-User-Role"))
	if role == "" {
		role = entity.RoleRequestor
	}
	if role != entity.RoleRequestor && role != entity.RoleFinance && role != entity.RoleAdmin {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown X-User-Role"})
		return entity.Actor{}, false
	}

	return entity.Actor{
		UserID: userID,
		Name:   c.GetHeader("X-User-Name"),
		Role:   role,
	}, true
}

// idParam parses the :id path parameter
func (h *Handlers) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors onto HTTP statuses
func (h *Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	default:
		h.logger.Error("Request failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
