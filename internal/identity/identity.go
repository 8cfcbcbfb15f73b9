// identity — проверенная личность пользователя в контексте запроса.
//
// Ядро не выпускает и не проверяет учётные данные: оно безусловно доверяет
// Principal, который положил в контекст транспортный слой (см. middleware.AuthBearer).
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Principal — аутентифицированный пользователь.
type Principal struct {
	UserID uuid.UUID
	Name   string
}

type ctxKey struct{}

// Into кладёт Principal в контекст.
func Into(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// From достаёт Principal из контекста. ok == false, если его нет или UserID пуст.
func From(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	if !ok || p.UserID == uuid.Nil {
		return Principal{}, false
	}

	return p, true
}
