package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/hotel-booking/internal/domain/auth"
)

// APIKeyHeader carries the raw admin API key.
const APIKeyHeader = "X-API-Key"

// requireScope authenticates the request's API key and checks that it was
// granted scope. The key info is stored in the request context.
func (h *Handler) requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := h.keys.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				mapError(w, r, err)
				return
			}
			if !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}

			ctx := auth.WithKey(r.Context(), info)
			ctx = zctx.With(ctx, zap.String("api_key", info.Name))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
