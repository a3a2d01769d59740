package audit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/deolexx/smart-home-secure/internal/auth"
	"github.com/deolexx/smart-home-secure/internal/logs"
	"github.com/deolexx/smart-home-secure/internal/models"
	"github.com/deolexx/smart-home-secure/internal/repo"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Middleware пишет ровно одну запись аудита на каждый входящий вызов,
// успешный или нет. Запись идёт после отправки ответа, в собственной
// транзакции и с фоновым контекстом: откат бизнес-операции или обрыв
// клиентского контекста аудит не отменяют. Сбой записи — только warn в лог.
func Middleware(store *repo.AuditStore) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			defer func() {
				save(store, r, sw.status, time.Since(start))
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

func save(store *repo.AuditStore, r *http.Request, status int, dur time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}
	entry := models.AuditLog{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		Status:     status,
		DurationMs: dur.Milliseconds(),
		ClientIP:   resolveClientIP(r),
		UserAgent:  r.UserAgent(),
	}
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		subject, username := p.Subject, p.Username
		entry.UserID = &subject
		entry.Username = &username
		if roles, err := json.Marshal(p.Authorities); err == nil {
			entry.Roles = roles
		}
	}
	if err := store.Save(context.Background(), &entry); err != nil {
		logs.With("audit").Warnf("failed to save audit log: %v", err)
	}
}

// resolveClientIP — первый адрес из X-Forwarded-For, иначе адрес пира.
func resolveClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); strings.TrimSpace(fwd) != "" {
		if comma := strings.Index(fwd, ","); comma >= 0 {
			return strings.TrimSpace(fwd[:comma])
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
