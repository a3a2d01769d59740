package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deolexx/smart-home-secure/internal/models"
)

type AuditStore struct{ db *gorm.DB }

func NewAuditStore(db *gorm.DB) *AuditStore { return &AuditStore{db: db} }

// Save пишет запись аудита в отдельной транзакции. Вызывается уже после
// ответа клиенту, поэтому откат бизнес-операции на неё не влияет.
func (s *AuditStore) Save(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}
