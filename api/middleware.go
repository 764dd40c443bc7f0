package api

import (
	"net/http"

	"github.com/0xcafe-io/iz"
	"github.com/fatali-fataliyev/migasto/internal/contextutil"
	"github.com/fatali-fataliyev/migasto/logging"
	"github.com/google/uuid"
)

const TraceIDHeader = "X-Trace-Id"

// WithTraceID tags every request with a fresh trace id and echoes it back.
func WithTraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := uuid.NewString()
		w.Header().Set(TraceIDHeader, traceID)
		ctx := contextutil.WithTraceID(r.Context(), traceID)
		logging.Logger.Debugf("[TraceID=%s] | %s %s", traceID, r.Method, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without a valid bearer token before they
// reach next. The verified identity is put in the request context.
func (api *Api) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := api.Gate.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			logging.Logger.Debugf("[TraceID=%s] | authorization failed: %v", contextutil.TraceIDFromContext(r.Context()), err)
			iz.Bind(func(*iz.Request) iz.Responder {
				return errorJSON(err, "token inválido o expirado")
			})(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextutil.WithIdentity(r.Context(), identity)))
	})
}
