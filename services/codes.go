package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/watertrack/complaints-api/models"
)

// codeAllocationAttempts bounds the retry loop around complaint creation.
// Each attempt recounts the year's complaints inside a fresh transaction, so
// a lost race against a concurrent create resolves on the next attempt.
const codeAllocationAttempts = 3

// FormatComplaintCode builds the human-facing complaint code
// PREFIX-YYYY-NNNNN. The ordinal is zero-padded to five digits and grows
// wider past 99999 rather than truncating.
func FormatComplaintCode(prefix string, year int, ordinal int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, ordinal)
}

// nextComplaintCode computes the code for the next complaint created in the
// year containing now. It must run inside the same transaction as the
// insert; the unique index on complaint_code catches the race where two
// transactions count the same year concurrently.
func nextComplaintCode(tx *gorm.DB, prefix string, now time.Time) (string, error) {
	startOfYear := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	startOfNextYear := startOfYear.AddDate(1, 0, 0)

	// Unscoped so soft-deleted complaints still hold their ordinal; codes
	// are unique for all time.
	var count int64
	err := tx.Unscoped().Model(&models.Complaint{}).
		Where("created_at >= ? AND created_at < ?", startOfYear, startOfNextYear).
		Count(&count).Error
	if err != nil {
		return "", fmt.Errorf("failed to count complaints for year %d: %w", now.Year(), err)
	}

	return FormatComplaintCode(prefix, now.Year(), count+1), nil
}
