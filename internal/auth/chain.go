package auth

import (
	"net/http"
	"strings"
)

// Resolver — одна стратегия разрешения учётных данных запроса.
// Тотальная функция: либо principal, либо nil; паник и ошибок наружу нет.
type Resolver interface {
	Name() string
	Resolve(r *http.Request) *Principal
}

// Chain — статически упорядоченный список стратегий, первый успех побеждает.
// Порядок — единственный источник правды о приоритетах аутентификации:
//
//	1. test   — только /api/test/**, точное совпадение статического токена
//	2. jwt    — bearer-токен Keycloak (подпись, издатель, срок)
//	3. —      — ни одна стратегия не сработала: запрос неаутентифицирован
//
// Стратегии не пересекаются: test смотрит только на тестовую поверхность,
// а статический токен не является валидным JWT.
type Chain struct {
	resolvers []Resolver
}

func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve прогоняет запрос по таблице стратегий.
func (c *Chain) Resolve(r *http.Request) *Principal {
	for _, res := range c.resolvers {
		if p := res.Resolve(r); p != nil {
			return p
		}
	}
	return nil
}

// BearerToken достаёт значение из заголовка Authorization: Bearer <...>.
// Пустая строка — заголовка нет или он в другом формате.
func BearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix))
}
