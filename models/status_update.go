package models

import (
	"time"
)

// StatusUpdate is one immutable entry in a complaint's status history.
// Entries are only ever appended, in the same transaction as the status
// change they record; there is no update or delete path. The auto-increment
// ID doubles as the insertion-order tiebreaker when two entries share a
// CreatedAt timestamp.
type StatusUpdate struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ComplaintID string    `gorm:"not null;index" json:"complaint_id"`
	UpdatedByID uint      `gorm:"not null" json:"updated_by_id"`
	UpdatedBy   User      `gorm:"foreignKey:UpdatedByID" json:"updated_by"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `gorm:"not null" json:"new_status"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the StatusUpdate model
func (StatusUpdate) TableName() string {
	return "status_updates"
}
