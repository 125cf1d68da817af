package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformlogging "github.com/gradnet-io/gradnet/platform/go/logging"
	"github.com/gradnet-io/gradnet/platform/go/requesttrace"
)

// RequestTrace populates the context with request-scoped AuditInfo so the
// tenancy pipeline and services can stamp audit entries. It should run after
// authentication middleware so the principal is available when present.
func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)

		info := requesttrace.FromRequest(r, requestID)
		ctx := requesttrace.IntoContext(r.Context(), info)

		if logger := platformlogging.FromRequest(r, nil); logger != nil {
			fields := []zap.Field{zap.String("actor_kind", string(info.ActorKind))}
			if info.ActorID != nil {
				fields = append(fields, zap.String("actor_id", info.ActorID.String()))
			}
			ctx = platformlogging.WithLogger(ctx, logger.With(fields...))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
