package auth

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/deolexx/smart-home-secure/internal/models"
)

// Middleware прогоняет запрос по цепочке стратегий и кладёт principal
// в контекст. Отказа здесь нет: неаутентифицированные запросы идут дальше,
// их отсекает RequireAuthority на защищённых маршрутах.
func Middleware(chain *Chain) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := chain.Resolve(r); p != nil {
				r = r.WithContext(ContextWithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthority — грубая проверка ролей на эндпойнте: без principal — 401,
// без пересечения с требуемыми authorities — 403. Тонкая проверка владения
// устройством живёт в DeviceStore.
func RequireAuthority(authorities ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				models.WriteProblem(w, http.StatusUnauthorized,
					"Unauthorized", "missing or invalid credentials", nil)
				return
			}
			for _, a := range authorities {
				if p.HasAuthority(a) {
					next.ServeHTTP(w, r)
					return
				}
			}
			models.WriteProblem(w, http.StatusForbidden,
				"Forbidden", "insufficient role", nil)
		})
	}
}
