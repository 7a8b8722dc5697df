package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ferrogrim/stockpile/internal/domain/order"
	"github.com/ferrogrim/stockpile/internal/domain/product"
)

// --- Mock implementations ---

type mockUserLookup struct {
	ids map[string]bool
}

func (m *mockUserLookup) Exists(_ context.Context, id string) (bool, error) {
	return m.ids[id], nil
}

type mockProductRepo struct {
	byID      map[string]*product.Product
	listErr   error
	deleteErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProductRepo) ListLowStock(_ context.Context, threshold int) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		if p.Quantity < threshold {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Create(_ context.Context, p *product.Product) error {
	for _, existing := range m.byID {
		if existing.ID == p.ID || existing.Name == p.Name {
			return product.ErrAlreadyExists
		}
	}
	clone := *p
	m.byID[p.ID] = &clone
	return nil
}

func (m *mockProductRepo) Update(_ context.Context, p *product.Product) error {
	if _, ok := m.byID[p.ID]; !ok {
		return product.ErrNotFound
	}
	clone := *p
	m.byID[p.ID] = &clone
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.byID[id]; !ok {
		return product.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockProductRepo) AdjustStock(_ context.Context, id string, delta int) error {
	p, ok := m.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.Quantity+delta < 0 {
		return product.ErrInsufficientStock
	}
	p.Quantity += delta
	return nil
}

type mockOrderRepo struct {
	byID map[string]*order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	if m.byID == nil {
		m.byID = make(map[string]*order.Order)
	}
	clone := *o
	m.byID[o.ID] = &clone
	return nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status order.Status) error {
	o, ok := m.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return order.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockOrderRepo) List(_ context.Context) ([]order.Order, error) {
	out := make([]order.Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) ListByPurchaser(_ context.Context, purchaserID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if o.PurchaserID == purchaserID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListByDateRange(_ context.Context, from, to time.Time) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if !o.CreatedAt.Before(from) && !o.CreatedAt.After(to) {
			out = append(out, *o)
		}
	}
	return out, nil
}

type mockLineRepo struct {
	byOrder map[string][]order.Line
}

func (m *mockLineRepo) SaveBatch(_ context.Context, lines []order.Line) error {
	if m.byOrder == nil {
		m.byOrder = make(map[string][]order.Line)
	}
	for _, l := range lines {
		m.byOrder[l.OrderID] = append(m.byOrder[l.OrderID], l)
	}
	return nil
}

func (m *mockLineRepo) GetByOrder(_ context.Context, orderID string) ([]order.Line, error) {
	return m.byOrder[orderID], nil
}

func (m *mockLineRepo) DeleteByOrder(_ context.Context, orderID string) error {
	delete(m.byOrder, orderID)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Helpers ---

func newTestMux(t *testing.T) (*http.ServeMux, *mockProductRepo) {
	t.Helper()

	products := &mockProductRepo{byID: map[string]*product.Product{
		"p1": {ID: "p1", Name: "Widget", Category: "tools", Price: decimal.RequireFromString("500.00"), Quantity: 10},
		"p2": {ID: "p2", Name: "Gadget", Category: "tools", Price: decimal.RequireFromString("20.00"), Quantity: 2},
	}}

	svc := order.NewService(
		&mockUserLookup{ids: map[string]bool{"cashier-1": true}},
		products,
		&mockOrderRepo{},
		&mockLineRepo{},
		passthroughTx{},
	)

	h := New(Config{LowStockThreshold: 5}, svc, products, noop.NewMeterProvider())
	mux := http.NewServeMux()
	h.Register(mux)
	return mux, products
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func placeTestOrder(t *testing.T, mux *http.ServeMux) string {
	t.Helper()

	rec, body := doJSON(t, mux, http.MethodPost, "/api/orders",
		`{"purchaserId": "cashier-1", "items": [{"productId": "p1", "quantity": 2}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

// --- Tests ---

func TestPlaceOrderEndpoint(t *testing.T) {
	mux, products := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/orders",
		`{"purchaserId": "cashier-1", "items": [{"productId": "p1", "quantity": 2}, {"productId": "p2", "quantity": 1}]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "cashier-1", body["purchaserId"])
	assert.Equal(t, string(order.StatusProcessing), body["status"])
	assert.InDelta(t, 1020.00, body["total"], 0.01)

	lines, ok := body["lines"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 2)

	first, ok := lines[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p1", first["productId"])
	assert.InDelta(t, 500.00, first["priceAtOrder"], 0.01)

	assert.Equal(t, 8, products.byID["p1"].Quantity)
	assert.Equal(t, 1, products.byID["p2"].Quantity)
}

func TestPlaceOrderEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "malformed JSON returns 400",
			body:     `{"purchaserId": `,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing purchaser returns 400",
			body:     `{"items": [{"productId": "p1", "quantity": 1}]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "zero quantity returns 400",
			body:     `{"purchaserId": "cashier-1", "items": [{"productId": "p1", "quantity": 0}]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown purchaser returns 422",
			body:     `{"purchaserId": "ghost", "items": [{"productId": "p1", "quantity": 1}]}`,
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "unknown product returns 422",
			body:     `{"purchaserId": "cashier-1", "items": [{"productId": "missing", "quantity": 1}]}`,
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "insufficient stock returns 409",
			body:     `{"purchaserId": "cashier-1", "items": [{"productId": "p2", "quantity": 50}]}`,
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newTestMux(t)

			rec, body := doJSON(t, mux, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.InDelta(t, float64(tt.wantCode), body["code"], 0)
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)
	id := placeTestOrder(t, mux)

	rec, body := doJSON(t, mux, http.MethodGet, "/api/orders/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, body["id"])

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOrderEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)
	id := placeTestOrder(t, mux)

	rec, _ := doJSON(t, mux, http.MethodDelete, "/api/orders/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/orders/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Cancelling again reports the order as gone.
	rec, _ = doJSON(t, mux, http.MethodDelete, "/api/orders/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)
	id := placeTestOrder(t, mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, id, orders[0]["id"])
}

func TestListOrdersEndpoint_ByPurchaser(t *testing.T) {
	mux, _ := newTestMux(t)
	placeTestOrder(t, mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders?purchaser=cashier-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Len(t, orders, 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders?purchaser=somebody-else", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Empty(t, orders)
}

func TestListOrdersEndpoint_DateRange(t *testing.T) {
	mux, _ := newTestMux(t)
	placeTestOrder(t, mux)

	from := time.Now().Add(-time.Hour).Format(time.RFC3339)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders?from="+from, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Len(t, orders, 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProductsEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var products []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 2)
}

func TestListLowStockEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	// Default threshold is 5: only p2 (quantity 2) qualifies.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/low-stock", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var products []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "p2", products[0]["id"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/low-stock?threshold=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 2)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/low-stock?threshold=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProductEndpoint(t *testing.T) {
	mux, products := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPost, "/api/products",
		`{"name": "Sprocket", "category": "tools", "price": 12.50, "quantity": 7}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "Sprocket", body["name"])
	assert.InDelta(t, 12.50, body["price"], 0.01)
	assert.InDelta(t, 7, body["quantity"], 0)

	stored, ok := products.byID[id]
	require.True(t, ok)
	assert.Equal(t, "Sprocket", stored.Name)
}

func TestCreateProductEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "malformed JSON returns 400",
			body:     `{"name": `,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing name returns 400",
			body:     `{"category": "tools", "price": 1.00, "quantity": 1}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "negative price returns 400",
			body:     `{"name": "Sprocket", "price": -1.00, "quantity": 1}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "negative quantity returns 400",
			body:     `{"name": "Sprocket", "price": 1.00, "quantity": -1}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "duplicate name returns 409",
			body:     `{"name": "Widget", "price": 1.00, "quantity": 1}`,
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newTestMux(t)

			rec, body := doJSON(t, mux, http.MethodPost, "/api/products", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestUpdateProductEndpoint(t *testing.T) {
	mux, products := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodPut, "/api/products/p1",
		`{"name": "Widget XL", "category": "tools", "price": 550.00, "quantity": 12}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", body["id"])
	assert.Equal(t, "Widget XL", body["name"])
	assert.InDelta(t, 550.00, body["price"], 0.01)

	assert.Equal(t, "Widget XL", products.byID["p1"].Name)
	assert.Equal(t, 12, products.byID["p1"].Quantity)

	rec, _ = doJSON(t, mux, http.MethodPut, "/api/products/missing",
		`{"name": "Ghost", "price": 1.00, "quantity": 1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodPut, "/api/products/p1", `{"name": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProductEndpoint(t *testing.T) {
	mux, products := newTestMux(t)

	rec, _ := doJSON(t, mux, http.MethodDelete, "/api/products/p1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, products.byID, "p1")

	rec, _ = doJSON(t, mux, http.MethodDelete, "/api/products/p1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProductEndpoint_InUse(t *testing.T) {
	mux, products := newTestMux(t)
	placeTestOrder(t, mux)

	products.deleteErr = product.ErrInUse
	rec, body := doJSON(t, mux, http.MethodDelete, "/api/products/p1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotEmpty(t, body["message"])
}

func TestGetProductEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec, body := doJSON(t, mux, http.MethodGet, "/api/products/p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Widget", body["name"])
	assert.InDelta(t, 500.00, body["price"], 0.01)
	assert.InDelta(t, 10, body["quantity"], 0)

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/products/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
