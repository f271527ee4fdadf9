package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	webcontext "github.com/conduit-lang/locallibrary/internal/web/context"
	"go.uber.org/zap"
)

// RecoveryConfig holds configuration for the recovery middleware
type RecoveryConfig struct {
	// EnableStackTrace logs the stack of the panicking goroutine
	EnableStackTrace bool
	// ShowDetails writes the panic value into the response (debug only)
	ShowDetails bool
}

// Recovery turns a panicking handler into a 500 response. The panic is logged
// on the request logger.
func Recovery(config RecoveryConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				fields := []zap.Field{zap.String("panic", fmt.Sprint(v)), zap.String("path", r.URL.Path)}
				if config.EnableStackTrace {
					fields = append(fields, zap.ByteString("stack", debug.Stack()))
				}
				webcontext.Logger(r.Context()).Error("panic recovered", fields...)

				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				if config.ShowDetails {
					fmt.Fprintf(w, "Internal Server Error: %v\n", v)
					return
				}
				_, _ = w.Write([]byte("Internal Server Error\n"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
