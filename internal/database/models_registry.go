package database

import "reviewdesk/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Application{},
		&models.AuditEntry{},
	}
}
