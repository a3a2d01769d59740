package auth

import (
	"sort"
	"strings"
)

// Предопределённые authority-токены ролей хаба.
const (
	AuthorityAdmin = "ROLE_ADMIN"
	AuthorityUser  = "ROLE_USER"
)

// Authority переводит имя роли в authority-токен: "user" → "ROLE_USER".
// Единственное место, где живёт эта конвенция.
func Authority(role string) string {
	return "ROLE_" + strings.ToUpper(strings.TrimSpace(role))
}

// MergeAuthorities склеивает наборы ролей в один отсортированный список
// authority-токенов без дублей. Пустые имена ролей отбрасываются.
func MergeAuthorities(roleSets ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, roles := range roleSets {
		for _, role := range roles {
			if strings.TrimSpace(role) == "" {
				continue
			}
			a := Authority(role)
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}
