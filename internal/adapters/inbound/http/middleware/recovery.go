package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/architeacher/u2f-registrations/pkg/logger"
)

// Recovery turns a handler panic into a 500 response.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}

				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				var errMsg string
				switch v := rvr.(type) {
				case string:
					errMsg = v
				case error:
					errMsg = v.Error()
				default:
					errMsg = fmt.Sprintf("%v", v)
				}

				log.WithContext(r.Context()).Error().
					Str("error", errMsg).
					Str("stack", string(debug.Stack())).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Msg("panic recovered")

				WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
