package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ferrogrim/stockpile/internal/domain/order"
)

// placeOrderRequest is the decoded body of POST /api/orders.
type placeOrderRequest struct {
	PurchaserID string
	Items       []order.LineRequest
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlaceOrderRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.orders.PlaceOrder(r.Context(), req.PurchaserID, req.Items)
	if err != nil {
		h.ordersPlaced.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("outcome", "rejected"),
		))
		respondDomainError(w, r, err)
		return
	}

	h.ordersPlaced.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("outcome", "accepted"),
	))
	trace.SpanFromContext(r.Context()).AddEvent("order placed",
		trace.WithAttributes(attribute.String("order.id", id)))

	o, err := h.orders.FindOrder(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.FindOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.CancelOrder(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.ordersCancelled.Add(r.Context(), 1)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var (
		orders []order.Order
		err    error
	)

	q := r.URL.Query()
	switch {
	case q.Get("purchaser") != "":
		orders, err = h.orders.ListOrdersByPurchaser(r.Context(), q.Get("purchaser"))
	case q.Get("from") != "" || q.Get("to") != "":
		var from, to time.Time
		from, to, err = parseDateRange(q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "from/to must be RFC 3339 timestamps")
			return
		}
		orders, err = h.orders.ListOrdersByDateRange(r.Context(), from, to)
	default:
		orders, err = h.orders.ListOrders(r.Context())
	}
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func parseDateRange(fromStr, toStr string) (from, to time.Time, err error) {
	if fromStr != "" {
		if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
			return from, to, err
		}
	}
	to = time.Now()
	if toStr != "" {
		if to, err = time.Parse(time.RFC3339, toStr); err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}

func decodePlaceOrderRequest(r *http.Request) (placeOrderRequest, error) {
	var req placeOrderRequest

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return req, err
	}

	d := jx.DecodeBytes(body)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "purchaserId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.PurchaserID = v
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var item order.LineRequest
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "productId":
						v, err := d.Str()
						if err != nil {
							return err
						}
						item.ProductID = v
						return nil
					case "quantity":
						v, err := d.Int()
						if err != nil {
							return err
						}
						item.Quantity = v
						return nil
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return req, err
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("purchaserId", func(e *jx.Encoder) { e.Str(o.PurchaserID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
		e.Field("total", func(e *jx.Encoder) { e.Float64(o.Total().InexactFloat64()) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					encodeLine(e, l)
				}
			})
		})
	})
}

func encodeLine(e *jx.Encoder, l order.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("priceAtOrder", func(e *jx.Encoder) { e.Float64(l.PriceAtOrder.InexactFloat64()) })
	})
}
