package models

import "time"

// AuditEntry is the immutable record of one status transition.
type AuditEntry struct {
	ID            string            `gorm:"primaryKey;size:26" json:"id"`
	ApplicationID string            `gorm:"size:36;not null;index:idx_audit_application_ts,priority:1" json:"application_id"`
	FromStatus    ApplicationStatus `gorm:"type:varchar(32);not null" json:"from_status"`
	ToStatus      ApplicationStatus `gorm:"type:varchar(32);not null" json:"to_status"`
	ActorID       string            `gorm:"size:64;not null" json:"actor_id"`
	ActorRole     ActorRole         `gorm:"type:varchar(16);not null" json:"actor_role"`
	Notes         string            `gorm:"type:text" json:"notes"`
	ReviewCycle   int               `gorm:"not null;default:1" json:"review_cycle"`
	Timestamp     time.Time         `gorm:"not null;index:idx_audit_application_ts,priority:2" json:"timestamp"`
}

// TableName specifies the table name for GORM.
func (AuditEntry) TableName() string {
	return "application_audit_entries"
}

// NotificationKind classifies a notification intent.
type NotificationKind string

const (
	NotificationStatusChanged         NotificationKind = "status_changed"
	NotificationResubmissionRequested NotificationKind = "resubmission_requested"
	NotificationApproved              NotificationKind = "approved"
	NotificationRejected              NotificationKind = "rejected"
)

// NotificationIntent describes a notification to deliver. It is produced by
// the workflow and never persisted by it.
type NotificationIntent struct {
	RecipientID string                 `json:"recipient_id"`
	Kind        NotificationKind       `json:"kind"`
	Payload     map[string]interface{} `json:"payload"`
}
