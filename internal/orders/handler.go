package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/solemart/solemart/internal/platform/httpx"
)

// Handler wires the customer order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}/status", h.handleUpdateStatus)
}

type orderLineDTO struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"productId"`
	Size      string  `json:"size,omitempty"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type orderDTO struct {
	ID         int64          `json:"id"`
	Reference  string         `json:"reference"`
	CustomerID string         `json:"customerId"`
	Status     OrderStatus    `json:"status"`
	Subtotal   float64        `json:"subtotal"`
	Shipping   float64        `json:"shipping"`
	Total      float64        `json:"total"`
	Lines      []orderLineDTO `json:"lines"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func toOrderDTO(o Order) orderDTO {
	lines := make([]orderLineDTO, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, orderLineDTO{
			ID:        line.ID,
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return orderDTO{
		ID:         o.ID,
		Reference:  o.Reference,
		CustomerID: o.CustomerID,
		Status:     o.Status,
		Subtotal:   o.Subtotal,
		Shipping:   o.Shipping,
		Total:      o.Total,
		Lines:      lines,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), r.URL.Query().Get("customerId"))
	if err != nil {
		h.respondError(w, "list orders", err)
		return
	}
	out := make([]orderDTO, 0, len(list))
	for _, order := range list {
		out = append(out, toOrderDTO(order))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createLineRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Size      string `json:"size" validate:"max=20"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type createOrderRequest struct {
	CustomerID string              `json:"customerId" validate:"required,max=100"`
	Lines      []createLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, LineInput{ProductID: line.ProductID, Size: line.Size, Quantity: line.Quantity})
	}
	order, err := h.service.Create(r.Context(), CreateOrderInput{CustomerID: req.CustomerID, Lines: lines})
	if err != nil {
		h.respondError(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderDTO(order))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderDTO(order))
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=processing shipped delivered cancelled"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.UpdateStatus(r.Context(), id, OrderStatus(req.Status))
	if err != nil {
		h.respondError(w, "update order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderDTO(order))
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

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
