package auth

import (
	"context"
)

// Principal — аутентифицированный вызывающий: subject из токена плюс
// вычисленный набор authority-токенов.
type Principal struct {
	Subject     string
	Username    string
	Authorities []string
}

func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

func (p *Principal) IsAdmin() bool { return p.HasAuthority(AuthorityAdmin) }

type principalKeyType struct{}

var principalKey principalKeyType

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext возвращает principal запроса или nil,
// если запрос неаутентифицирован.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
