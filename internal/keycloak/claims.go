package keycloak

import (
	"github.com/golang-jwt/jwt/v4"
)

type RoleHolder struct {
	Roles []string `json:"roles"`
}

// Claims — интересующая хаб часть access-токена Keycloak.
// Роли приходят из двух источников: realm_access (роли realm'а)
// и resource_access.<client> (клиентские роли).
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string                `json:"preferred_username"`
	RealmAccess       RoleHolder            `json:"realm_access"`
	ResourceAccess    map[string]RoleHolder `json:"resource_access"`
}

// RealmRoles возвращает роли realm'а.
func (c *Claims) RealmRoles() []string {
	return c.RealmAccess.Roles
}

// ClientRoles возвращает роли, выданные в рамках конкретного клиента.
func (c *Claims) ClientRoles(clientID string) []string {
	if holder, ok := c.ResourceAccess[clientID]; ok {
		return holder.Roles
	}
	return nil
}

// Username — человекочитаемое имя: preferred_username либо subject.
func (c *Claims) Username() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}
