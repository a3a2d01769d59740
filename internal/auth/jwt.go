package auth

import (
	"net/http"

	"github.com/deolexx/smart-home-secure/internal/keycloak"
	"github.com/deolexx/smart-home-secure/internal/logs"
)

// TokenVerifier проверяет bearer-токен и возвращает его claims.
type TokenVerifier interface {
	Verify(tokenString string) (*keycloak.Claims, error)
}

// JWTResolver — основная стратегия: bearer-токен Keycloak.
// Роли realm'а и клиентские роли сливаются в один набор authorities.
type JWTResolver struct {
	Verifier TokenVerifier
	ClientID string
}

func (j *JWTResolver) Name() string { return "jwt" }

func (j *JWTResolver) Resolve(r *http.Request) *Principal {
	token := BearerToken(r)
	if token == "" {
		return nil
	}
	claims, err := j.Verifier.Verify(token)
	if err != nil {
		logs.With("auth").Debugf("bearer token rejected: %v", err)
		return nil
	}
	return &Principal{
		Subject:     claims.Subject,
		Username:    claims.Username(),
		Authorities: MergeAuthorities(claims.RealmRoles(), claims.ClientRoles(j.ClientID)),
	}
}
