package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/salespulse/api/responses"
	pkgerrors "github.com/angelmondragon/salespulse/pkg/errors"
	"github.com/angelmondragon/salespulse/pkg/logger"
)

// Recoverer turns a handler panic into a logged 500 envelope. When the
// handler already started the response only the log line is written.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if e, ok := p.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(p)
				}

				err := fmt.Errorf("panic: %v", p)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":           fmt.Sprint(p),
						"method":          r.Method,
						"path":            r.URL.Path,
						"headers_written": rec.status != 0,
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				if rec.status != 0 {
					return
				}
				responses.WriteError(ctx, nil, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
