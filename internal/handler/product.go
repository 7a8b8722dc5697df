package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ferrogrim/stockpile/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeProducts(w, products)
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.cfg.LowStockThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "threshold must be a non-negative integer")
			return
		}
		threshold = n
	}

	products, err := h.products.ListLowStock(r.Context(), threshold)
	if err != nil {
		zctx.From(r.Context()).Error("list low stock products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeProducts(w, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("get product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, *p)
	})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProductRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if reason := validateProduct(p); reason != "" {
		writeError(w, http.StatusBadRequest, reason)
		return
	}
	p.ID = uuid.New().String()

	if err := h.products.Create(r.Context(), p); err != nil {
		if errors.Is(err, product.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "product already exists")
			return
		}
		zctx.From(r.Context()).Error("create product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeProduct(e, *p)
	})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProductRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if reason := validateProduct(p); reason != "" {
		writeError(w, http.StatusBadRequest, reason)
		return
	}
	p.ID = r.PathValue("id")

	if err := h.products.Update(r.Context(), p); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		zctx.From(r.Context()).Error("update product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeProduct(e, *p)
	})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	err := h.products.Delete(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, product.ErrInUse):
		writeError(w, http.StatusConflict, "product referenced by existing orders")
	default:
		zctx.From(r.Context()).Error("delete product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func validateProduct(p *product.Product) string {
	switch {
	case p.Name == "":
		return "name required"
	case p.Price.IsNegative():
		return "price must not be negative"
	case p.Quantity < 0:
		return "quantity must not be negative"
	}
	return ""
}

func decodeProductRequest(r *http.Request) (*product.Product, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var p product.Product
	d := jx.DecodeBytes(body)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.Name = v
			return nil
		case "category":
			v, err := d.Str()
			if err != nil {
				return err
			}
			p.Category = v
			return nil
		case "price":
			// Accepts both a JSON number and a quoted decimal string.
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			return p.Price.UnmarshalJSON(raw)
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			p.Quantity = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func writeProducts(w http.ResponseWriter, products []product.Product) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range products {
				encodeProduct(e, p)
			}
		})
	})
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("price", func(e *jx.Encoder) { e.Float64(p.Price.InexactFloat64()) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(p.Quantity) })
	})
}
