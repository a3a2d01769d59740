package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog — журнальная запись по каждому входящему HTTP-вызову.
// Append-only: пишется ровно один раз, независимо от исхода запроса,
// в собственной транзакции.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Кто вызывал (nil — неаутентифицированный запрос).
	UserID   *string        `gorm:"size:64" json:"user_id,omitempty"`
	Username *string        `gorm:"size:128" json:"username,omitempty"`
	Roles    datatypes.JSON `json:"roles,omitempty"` // массив authority-токенов

	Method     string `gorm:"size:16" json:"method"`
	Path       string `gorm:"size:512" json:"path"`
	Query      string `gorm:"size:1024" json:"query"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `gorm:"size:64" json:"client_ip"`
	UserAgent  string `gorm:"size:256" json:"user_agent"`
}

func (AuditLog) TableName() string { return "audit_logs" }
