package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

type clientKey struct{}

func clientFrom(ctx context.Context) (*auth.Client, bool) {
	c, ok := ctx.Value(clientKey{}).(*auth.Client)
	return c, ok
}

// authenticated rejects requests without a valid api_key header.
func (h *Handler) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, err := h.auth.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		case err != nil:
			zctx.From(r.Context()).Error("Authenticate failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		ctx := context.WithValue(r.Context(), clientKey{}, client)
		ctx = zctx.With(ctx, zap.String("client", client.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireScope rejects authenticated clients lacking scope.
func requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, ok := clientFrom(r.Context())
			if !ok || !client.HasScope(scope) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// userID is the shopper asserted by the client, empty for guests.
func (h *Handler) userID(r *http.Request) string {
	return r.Header.Get(h.userHeader)
}

func (h *Handler) user(r *http.Request) *promotion.User {
	if id := h.userID(r); id != "" {
		return &promotion.User{ID: id}
	}
	return nil
}
