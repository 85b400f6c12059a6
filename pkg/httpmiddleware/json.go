package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// WriteJSONError writes {"success":false,"message":...} with the given
// status. A non-empty detail is added as "error".
func WriteJSONError(w http.ResponseWriter, status int, message, detail string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if detail != "" {
			e.Field("error", func(e *jx.Encoder) { e.Str(detail) })
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
