package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/solemart/solemart/internal/platform/httpx"
	"github.com/solemart/solemart/internal/shared"
)

// Handler wires the inventory, adjustment log, and stock order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountInventoryRoutes registers the stock record endpoints.
func (h *Handler) MountInventoryRoutes(r chi.Router) {
	r.Get("/", h.handleListRecords)
	r.Get("/stats", h.handleStats)
	r.Get("/{id}", h.handleGetRecord)
	r.Put("/{id}", h.handleUpdateRecord)
	r.Post("/{id}/adjustments", h.handleAdjust)
}

// MountLogRoutes registers the adjustment log endpoints.
func (h *Handler) MountLogRoutes(r chi.Router) {
	r.Get("/", h.handleListLog)
}

// MountStockOrderRoutes registers the stock order endpoints.
func (h *Handler) MountStockOrderRoutes(r chi.Router) {
	r.Get("/", h.handleListStockOrders)
	r.Post("/", h.handleCreateStockOrder)
	r.Get("/{id}", h.handleGetStockOrder)
	r.Put("/{id}", h.handleUpdateStockOrder)
	r.Delete("/{id}", h.handleDeleteStockOrder)
	r.Post("/{id}/transition", h.handleTransition)
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if productStr := r.URL.Query().Get("productId"); productStr != "" {
		productID, err := strconv.ParseInt(productStr, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "productId must be an integer")
			return
		}
		record, err := h.service.RecordByProduct(r.Context(), productID)
		if errors.Is(err, ErrRecordNotFound) {
			httpx.JSON(w, http.StatusOK, []stockRecordDTO{})
			return
		}
		if err != nil {
			h.respondError(w, "get record by product", err)
			return
		}
		httpx.JSON(w, http.StatusOK, []stockRecordDTO{toStockRecordDTO(record)})
		return
	}

	records, err := h.service.Records(r.Context())
	if err != nil {
		h.respondError(w, "list records", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockRecordDTOs(records))
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	record, err := h.service.Record(r.Context(), id)
	if err != nil {
		h.respondError(w, "get record", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockRecordDTO(record))
}

type updateRecordRequest struct {
	ReorderLevel  int64 `json:"reorderLevel" validate:"gte=0"`
	ReservedStock int64 `json:"reservedStock" validate:"gte=0"`
	Version       int64 `json:"version" validate:"gte=0"`
}

func (h *Handler) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateRecordRequest
	if !h.decode(w, r, &req) {
		return
	}
	record, err := h.service.UpdateRecordSettings(r.Context(), id, UpdateRecordSettingsInput{
		ReorderLevel:  req.ReorderLevel,
		ReservedStock: req.ReservedStock,
		Version:       req.Version,
	})
	if err != nil {
		h.respondError(w, "update record", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockRecordDTO(record))
}

type adjustStockRequest struct {
	Mode     string `json:"mode" validate:"required,oneof=add remove set"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"required,max=200"`
	Notes    string `json:"notes" validate:"max=1000"`
	Size     string `json:"size" validate:"max=20"`
}

type adjustStockResponse struct {
	Record stockRecordDTO `json:"record"`
	Entry  logEntryDTO    `json:"entry"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req adjustStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	// The route addresses the record; the service keys adjustments by product
	// so delivery-triggered restocks share the same lock.
	record, err := h.service.Record(r.Context(), id)
	if err != nil {
		h.respondError(w, "get record", err)
		return
	}

	result, err := h.service.AdjustStock(r.Context(), AdjustStockInput{
		ProductID:      record.ProductID,
		Mode:           AdjustmentMode(req.Mode),
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		Notes:          req.Notes,
		Size:           req.Size,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, adjustStockResponse{
		Record: toStockRecordDTO(result.Record),
		Entry:  toLogEntryDTO(result.Entry),
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondError(w, "load stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListLog(w http.ResponseWriter, r *http.Request) {
	var productID int64
	if productStr := r.URL.Query().Get("productId"); productStr != "" {
		parsed, err := strconv.ParseInt(productStr, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "productId must be an integer")
			return
		}
		productID = parsed
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := h.service.History(r.Context(), productID, limit)
	if err != nil {
		h.respondError(w, "list log", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLogEntryDTOs(entries))
}

func (h *Handler) handleListStockOrders(w http.ResponseWriter, r *http.Request) {
	filter := StockOrderFilter{}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := StockOrderStatus(statusStr)
		if !status.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status filter")
			return
		}
		filter.Status = status
	}
	if productStr := r.URL.Query().Get("productId"); productStr != "" {
		productID, err := strconv.ParseInt(productStr, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "productId must be an integer")
			return
		}
		filter.ProductID = productID
	}

	orders, err := h.service.ListStockOrders(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list stock orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockOrderDTOs(orders))
}

type createStockOrderRequest struct {
	ProductID         int64  `json:"productId" validate:"required,gt=0"`
	Quantity          int64  `json:"quantity" validate:"required,gt=0"`
	Supplier          string `json:"supplier" validate:"required,max=200"`
	EstimatedDelivery string `json:"estimatedDelivery" validate:"omitempty,datetime=2006-01-02"`
	Notes             string `json:"notes" validate:"max=1000"`
}

func (h *Handler) handleCreateStockOrder(w http.ResponseWriter, r *http.Request) {
	var req createStockOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	eta, ok := h.parseETA(w, req.EstimatedDelivery)
	if !ok {
		return
	}
	order, err := h.service.CreateStockOrder(r.Context(), CreateStockOrderInput{
		ProductID:         req.ProductID,
		Quantity:          req.Quantity,
		Supplier:          req.Supplier,
		EstimatedDelivery: eta,
		Notes:             req.Notes,
	})
	if err != nil {
		h.respondError(w, "create stock order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toStockOrderDTO(order))
}

func (h *Handler) handleGetStockOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	order, err := h.service.GetStockOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, "get stock order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockOrderDTO(order))
}

type updateStockOrderRequest struct {
	Quantity          int64  `json:"quantity" validate:"required,gt=0"`
	Supplier          string `json:"supplier" validate:"required,max=200"`
	EstimatedDelivery string `json:"estimatedDelivery" validate:"omitempty,datetime=2006-01-02"`
	Notes             string `json:"notes" validate:"max=1000"`
}

func (h *Handler) handleUpdateStockOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateStockOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	eta, ok := h.parseETA(w, req.EstimatedDelivery)
	if !ok {
		return
	}
	order, err := h.service.UpdateStockOrder(r.Context(), id, UpdateStockOrderInput{
		Quantity:          req.Quantity,
		Supplier:          req.Supplier,
		EstimatedDelivery: eta,
		Notes:             req.Notes,
	})
	if err != nil {
		h.respondError(w, "update stock order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockOrderDTO(order))
}

func (h *Handler) handleDeleteStockOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteStockOrder(r.Context(), id); err != nil {
		h.respondError(w, "delete stock order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=approved shipped delivered cancelled"`
}

type transitionResponse struct {
	Order   stockOrderDTO   `json:"order"`
	Record  *stockRecordDTO `json:"record,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.TransitionStockOrder(r.Context(), id, StockOrderStatus(req.Status))
	if err != nil {
		h.respondError(w, "transition stock order", err)
		return
	}

	resp := transitionResponse{Order: toStockOrderDTO(result.Order)}
	if result.Record != nil {
		dto := toStockRecordDTO(*result.Record)
		resp.Record = &dto
	}
	if result.MissingInventory {
		resp.Warning = "no inventory record exists for this product; delivery was recorded without a restock"
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) parseETA(w http.ResponseWriter, value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	eta, err := time.Parse("2006-01-02", value)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "estimatedDelivery must be YYYY-MM-DD")
		return nil, false
	}
	return &eta, true
}

// respondError translates domain errors into problem responses.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidMode):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrStaleWrite), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
