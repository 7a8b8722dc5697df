//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != seededCount {
		t.Fatalf("expected %d products, got %d", seededCount, len(products))
	}

	for _, p := range products {
		if p.ID == "" {
			t.Error("product id is empty")
		}
		if p.Name == "" {
			t.Error("product name is empty")
		}
		if p.Price <= 0 {
			t.Errorf("product %s price: got %v, want > 0", p.ID, p.Price)
		}
	}
}

func TestGetProduct(t *testing.T) {
	p := getProduct(t, productLaptop)

	if p.Name != "Laptop" {
		t.Errorf("name: got %q, want Laptop", p.Name)
	}
	if p.Category != "electronics" {
		t.Errorf("category: got %q, want electronics", p.Category)
	}
	if p.Price != 500 {
		t.Errorf("price: got %v, want 500", p.Price)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/99999999-9999-4999-8999-999999999999")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusNotFound {
		t.Errorf("error code: got %d, want 404", body.Code)
	}
}

func TestListLowStock(t *testing.T) {
	// Default threshold is 5: Monitor (2) and Desk Lamp (3) qualify; earlier
	// order tests only ever consume stock, so they cannot push a low product
	// back above the threshold.
	resp := doGet(t, "/api/products/low-stock")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	ids := make(map[string]bool, len(products))
	for _, p := range products {
		if p.Quantity >= 5 {
			t.Errorf("product %s has quantity %d, above threshold", p.ID, p.Quantity)
		}
		ids[p.ID] = true
	}
	if !ids[productMonitor] {
		t.Error("monitor missing from low-stock report")
	}
	if !ids[productLamp] {
		t.Error("desk lamp missing from low-stock report")
	}
}

func TestListLowStock_CustomThreshold(t *testing.T) {
	resp := doGet(t, "/api/products/low-stock?threshold=1000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != seededCount {
		t.Errorf("expected all %d products below threshold 1000, got %d", seededCount, len(products))
	}
}

func TestListLowStock_InvalidThreshold(t *testing.T) {
	resp := doGet(t, "/api/products/low-stock?threshold=lots")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestProductLifecycle(t *testing.T) {
	createResp := doPost(t, "/api/products", productRequest{
		Name:     "USB Hub",
		Category: "electronics",
		Price:    12.50,
		Quantity: 7,
	})
	if createResp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", createResp.StatusCode)
	}
	created := decodeJSON[productResponse](t, createResp)
	createResp.Body.Close()

	if !uuidPattern.MatchString(created.ID) {
		t.Errorf("product ID %q is not a valid UUID", created.ID)
	}
	if created.Name != "USB Hub" || created.Price != 12.50 || created.Quantity != 7 {
		t.Errorf("created product does not echo request: %+v", created)
	}
	if p := getProduct(t, created.ID); p.Name != "USB Hub" {
		t.Errorf("stored name: got %q, want USB Hub", p.Name)
	}

	updateResp := doPut(t, "/api/products/"+created.ID, productRequest{
		Name:     "USB Hub v2",
		Category: "electronics",
		Price:    15.00,
		Quantity: 4,
	})
	if updateResp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", updateResp.StatusCode)
	}
	updateResp.Body.Close()

	if p := getProduct(t, created.ID); p.Name != "USB Hub v2" || p.Price != 15 || p.Quantity != 4 {
		t.Errorf("updated product not persisted: %+v", p)
	}

	deleteResp := doDelete(t, "/api/products/"+created.ID)
	deleteResp.Body.Close()
	if deleteResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", deleteResp.StatusCode)
	}

	getResp := doGet(t, "/api/products/"+created.ID)
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getResp.StatusCode)
	}
}

func TestCreateProduct_DuplicateName(t *testing.T) {
	resp := doPost(t, "/api/products", productRequest{
		Name:     "Laptop", // seeded
		Price:    1.00,
		Quantity: 1,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestDeleteProduct_ReferencedByOrder(t *testing.T) {
	// Earlier order tests placed lines against the mouse, so the foreign key
	// on order_lines must block its deletion.
	resp := doDelete(t, "/api/products/"+productMouse)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	if p := getProduct(t, productMouse); p.ID != productMouse {
		t.Errorf("mouse missing after rejected delete")
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	resp := doPut(t, "/api/products/99999999-9999-4999-8999-999999999999", productRequest{
		Name:     "Ghost",
		Price:    1.00,
		Quantity: 1,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
