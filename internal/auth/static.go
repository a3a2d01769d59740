package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TestSurfacePrefix — поверхность, на которой действует статический токен.
const TestSurfacePrefix = "/api/test/"

// TestUsername — фиксированный subject тестового principal.
const TestUsername = "test"

// StaticTokenResolver — тестовая стратегия: статический bearer-токен,
// действующий только под /api/test/**. Выдаёт фиксированный principal
// с минимальной ролью USER.
type StaticTokenResolver struct {
	Token string
}

func (s *StaticTokenResolver) Name() string { return "test" }

func (s *StaticTokenResolver) Resolve(r *http.Request) *Principal {
	if s.Token == "" {
		return nil
	}
	if !strings.HasPrefix(r.URL.Path, TestSurfacePrefix) {
		return nil
	}
	token := BearerToken(r)
	if token == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
		return nil
	}
	return &Principal{
		Subject:     TestUsername,
		Username:    TestUsername,
		Authorities: []string{AuthorityUser},
	}
}
