package catalog

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

// Handler wires the product endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
}

type productDTO struct {
	ID         int64            `json:"id"`
	SKU        string           `json:"sku"`
	Name       string           `json:"name"`
	Brand      string           `json:"brand"`
	Category   string           `json:"category"`
	Price      float64          `json:"price"`
	Sizes      map[string]int64 `json:"sizes"`
	Images     []string         `json:"images"`
	TotalStock int64            `json:"totalStock"`
	IsActive   bool             `json:"isActive"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func toProductDTO(p Product) productDTO {
	if p.Sizes == nil {
		p.Sizes = map[string]int64{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return productDTO{
		ID:         p.ID,
		SKU:        p.SKU,
		Name:       p.Name,
		Brand:      p.Brand,
		Category:   p.Category,
		Price:      p.Price,
		Sizes:      p.Sizes,
		Images:     p.Images,
		TotalStock: p.TotalStock,
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type listResponse struct {
	Items      []productDTO      `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	filter := ListFilter{
		Search:     q.Get("search"),
		Category:   q.Get("category"),
		Brand:      q.Get("brand"),
		ActiveOnly: q.Get("includeInactive") != "true",
		SortBy:     q.Get("sortBy"),
		SortDir:    q.Get("sortDir"),
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}

	products, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list products", err)
		return
	}
	items := make([]productDTO, 0, len(products))
	for _, p := range products {
		items = append(items, toProductDTO(p))
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: shared.NewPagination(page, perPage, total)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductDTO(product))
}

type createProductRequest struct {
	SKU          string           `json:"sku" validate:"required,max=64"`
	Name         string           `json:"name" validate:"required,max=200"`
	Brand        string           `json:"brand" validate:"max=100"`
	Category     string           `json:"category" validate:"max=100"`
	Price        float64          `json:"price" validate:"gte=0"`
	Sizes        map[string]int64 `json:"sizes"`
	Images       []string         `json:"images" validate:"dive,max=500"`
	InitialStock int64            `json:"initialStock" validate:"gte=0"`
	ReorderLevel int64            `json:"reorderLevel" validate:"gte=0"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	product, err := h.service.Create(r.Context(), CreateProductInput{
		SKU:          req.SKU,
		Name:         req.Name,
		Brand:        req.Brand,
		Category:     req.Category,
		Price:        req.Price,
		Sizes:        req.Sizes,
		Images:       req.Images,
		InitialStock: req.InitialStock,
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		h.respondError(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProductDTO(product))
}

type updateProductRequest struct {
	SKU      string           `json:"sku" validate:"required,max=64"`
	Name     string           `json:"name" validate:"required,max=200"`
	Brand    string           `json:"brand" validate:"max=100"`
	Category string           `json:"category" validate:"max=100"`
	Price    float64          `json:"price" validate:"gte=0"`
	Sizes    map[string]int64 `json:"sizes"`
	Images   []string         `json:"images" validate:"dive,max=500"`
	IsActive *bool            `json:"isActive"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	product, err := h.service.Update(r.Context(), id, UpdateProductInput{
		SKU:      req.SKU,
		Name:     req.Name,
		Brand:    req.Brand,
		Category: req.Category,
		Price:    req.Price,
		Sizes:    req.Sizes,
		Images:   req.Images,
		IsActive: active,
	})
	if err != nil {
		h.respondError(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductDTO(product))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
	case errors.Is(err, ErrDuplicateSKU):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, errNegativePrice):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
