package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/LeventeLantos/sms-remarketing/internal/apperr"
	"github.com/LeventeLantos/sms-remarketing/internal/model"
	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

const apiKeyHeader = "X-API-Key"

type clientKey struct{}

// authenticated resolves the caller from the X-API-Key header and passes
// it to next through the request context.
func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(apiKeyHeader))
		if key == "" {
			writeError(w, r, apperr.Unauthorized("missing API key"))
			return
		}

		c, err := h.clients.GetByAPIKey(r.Context(), key)
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, r, apperr.Unauthorized("invalid API key"))
			return
		}
		if err != nil {
			writeError(w, r, apperr.Internal("resolve API key", err))
			return
		}
		if !c.Active {
			writeError(w, r, apperr.Forbidden("client account is inactive"))
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), clientKey{}, c)))
	}
}

func clientFrom(ctx context.Context) *model.Client {
	c, _ := ctx.Value(clientKey{}).(*model.Client)
	return c
}
