package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ferrogrim/stockpile/internal/domain/order"
)

// writeJSON encodes a body with fn and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {code, message} error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// respondDomainError maps typed domain errors onto HTTP statuses. Anything
// unrecognized is an infrastructure fault: it is logged and reported as an
// opaque 500 so internals never leak to callers.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr  *order.ValidationError
		nfErr *order.NotFoundError
		isErr *order.InsufficientStockError
	)

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &nfErr):
		if nfErr.Kind == order.KindOrder {
			writeError(w, http.StatusNotFound, nfErr.Error())
			return
		}
		// A missing purchaser or product makes the request unprocessable
		// rather than the route unresolvable.
		writeError(w, http.StatusUnprocessableEntity, nfErr.Error())
	case errors.As(err, &isErr):
		writeError(w, http.StatusConflict, isErr.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
