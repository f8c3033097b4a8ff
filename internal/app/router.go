package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solemart/solemart/internal/catalog"
	"github.com/solemart/solemart/internal/ledger"
	"github.com/solemart/solemart/internal/observability"
	"github.com/solemart/solemart/internal/orders"
	"github.com/solemart/solemart/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	CatalogHandler *catalog.Handler
	LedgerHandler  *ledger.Handler
	OrdersHandler  *orders.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Solemart defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.CatalogHandler != nil {
		r.Route("/products", params.CatalogHandler.MountRoutes)
	}
	if params.LedgerHandler != nil {
		r.Route("/inventory", params.LedgerHandler.MountInventoryRoutes)
		r.Route("/inventoryLog", params.LedgerHandler.MountLogRoutes)
		r.Route("/stockOrders", params.LedgerHandler.MountStockOrderRoutes)
	}
	if params.OrdersHandler != nil {
		r.Route("/orders", params.OrdersHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
