package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Recovery returns a middleware that recovers from panics, logs them with a
// stack trace, and responds with a JSON 500. When expose is true the panic
// value is included in the "error" field.
func Recovery(expose bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				zctx.From(r.Context()).Error("Panic recovered",
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)

				detail := ""
				if expose {
					detail = panicText(rec)
				}
				w.Header().Set("Connection", "close")
				WriteJSONError(w, http.StatusInternalServerError, "Internal server error.", detail)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func panicText(rec any) string {
	switch v := rec.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return "panic"
	}
}
