package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/metric"

	"github.com/ferrogrim/stockpile/internal/domain/order"
	"github.com/ferrogrim/stockpile/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// LowStockThreshold is the default quantity below which a product shows
	// up in the low-stock report when the request does not override it.
	LowStockThreshold int
}

// Handler exposes the fulfillment service and catalog over JSON HTTP.
type Handler struct {
	cfg      Config
	orders   *order.Service
	products product.Repository

	ordersPlaced    metric.Int64Counter
	ordersCancelled metric.Int64Counter
}

// New constructs a Handler with the required domain dependencies. Domain
// counters are registered on mp; HTTP-level metrics stay with the otelhttp
// wrapper.
func New(cfg Config, orders *order.Service, products product.Repository, mp metric.MeterProvider) *Handler {
	meter := mp.Meter("stockpile/handler")
	placed, _ := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders placed, by outcome"))
	cancelled, _ := meter.Int64Counter("orders.cancelled",
		metric.WithDescription("Orders cancelled"))

	return &Handler{
		cfg:             cfg,
		orders:          orders,
		products:        products,
		ordersPlaced:    placed,
		ordersCancelled: cancelled,
	}
}

// Register mounts all API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", h.cancelOrder)

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("POST /api/products", h.createProduct)
	mux.HandleFunc("GET /api/products/low-stock", h.listLowStock)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.updateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.deleteProduct)
}
