package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Complaint categories
const (
	CategoryLeak         = "leak"
	CategoryNoWater      = "no_water"
	CategoryBilling      = "billing"
	CategoryWaterQuality = "water_quality"
	CategoryMeterIssue   = "meter_issue"
	CategoryPressure     = "pressure"
	CategoryOther        = "other"
)

// Complaint priorities
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Complaint statuses
const (
	StatusSubmitted  = "submitted"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// OverdueAfter is how long a complaint may stay open before it counts as overdue
const OverdueAfter = 48 * time.Hour

// CategoryLabels maps category values to their display labels
var CategoryLabels = map[string]string{
	CategoryLeak:         "Water Leak",
	CategoryNoWater:      "No Water Supply",
	CategoryBilling:      "Billing Issue",
	CategoryWaterQuality: "Water Quality",
	CategoryMeterIssue:   "Meter Issue",
	CategoryPressure:     "Low Water Pressure",
	CategoryOther:        "Other",
}

// PriorityLabels maps priority values to their display labels
var PriorityLabels = map[string]string{
	PriorityLow:      "Low",
	PriorityMedium:   "Medium",
	PriorityHigh:     "High",
	PriorityCritical: "Critical",
}

// StatusLabels maps status values to their display labels
var StatusLabels = map[string]string{
	StatusSubmitted:  "Submitted",
	StatusInProgress: "In Progress",
	StatusResolved:   "Resolved",
	StatusClosed:     "Closed",
}

// Complaint represents a customer-filed service complaint tracked through
// its lifecycle (submitted -> in_progress -> resolved -> closed)
type Complaint struct {
	ID            string `gorm:"primaryKey" json:"id"`
	ComplaintCode string `gorm:"uniqueIndex;not null" json:"complaint_code"` // human-facing, e.g. WTR-2024-00001

	CustomerID   uint  `gorm:"not null;index" json:"customer_id"`
	Customer     User  `gorm:"foreignKey:CustomerID" json:"customer"`
	AssignedToID *uint `gorm:"index" json:"assigned_to_id"` // nullable, staff member handling the complaint
	AssignedTo   *User `gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL" json:"assigned_to,omitempty"`

	Category string `gorm:"not null;index" json:"category"`
	Priority string `gorm:"not null;default:'medium'" json:"priority"`
	Status   string `gorm:"not null;default:'submitted';index" json:"status"`

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text;not null" json:"description"`

	Address        string  `gorm:"type:text;not null" json:"address"`
	GPSCoordinates *string `json:"gps_coordinates"`

	ImageS3Key *string `json:"image_s3_key"`                // nullable, S3 key for an uploaded photo
	ImageURL   *string `gorm:"-" json:"image_url,omitempty"` // computed field, presigned URL for the photo

	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at"` // set once, on the first transition into resolved

	CustomerRating   *int    `gorm:"check:customer_rating >= 1 AND customer_rating <= 5" json:"customer_rating"`
	CustomerFeedback *string `gorm:"type:text" json:"customer_feedback"`

	StatusUpdates []StatusUpdate `gorm:"foreignKey:ComplaintID;constraint:OnDelete:CASCADE" json:"status_updates,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Complaint model
func (Complaint) TableName() string {
	return "complaints"
}

// BeforeCreate assigns an opaque UUID if the complaint has none yet
func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// IsOpen reports whether the complaint is still being worked
func (c *Complaint) IsOpen() bool {
	return c.Status == StatusSubmitted || c.Status == StatusInProgress
}

// ResponseTime returns the hours between creation and resolution rounded to
// two decimal places, or nil while the complaint is unresolved
func (c *Complaint) ResponseTime() *float64 {
	if c.ResolvedAt == nil {
		return nil
	}
	hours := c.ResolvedAt.Sub(c.CreatedAt).Hours()
	rounded := math.Round(hours*100) / 100
	return &rounded
}

// IsOverdue reports whether an open complaint has been waiting strictly
// longer than OverdueAfter as of now. Resolved and closed complaints are
// never overdue, regardless of age.
func (c *Complaint) IsOverdue(now time.Time) bool {
	if !c.IsOpen() {
		return false
	}
	return now.Sub(c.CreatedAt) > OverdueAfter
}

// CategoryLabel returns the display label for the complaint's category
func (c *Complaint) CategoryLabel() string {
	if label, ok := CategoryLabels[c.Category]; ok {
		return label
	}
	return c.Category
}

// PriorityLabel returns the display label for the complaint's priority
func (c *Complaint) PriorityLabel() string {
	if label, ok := PriorityLabels[c.Priority]; ok {
		return label
	}
	return c.Priority
}

// StatusLabel returns the display label for the complaint's status
func (c *Complaint) StatusLabel() string {
	if label, ok := StatusLabels[c.Status]; ok {
		return label
	}
	return c.Status
}

// ValidCategory reports whether the given category value is known
func ValidCategory(category string) bool {
	_, ok := CategoryLabels[category]
	return ok
}

// ValidPriority reports whether the given priority value is known
func ValidPriority(priority string) bool {
	_, ok := PriorityLabels[priority]
	return ok
}

// ValidStatus reports whether the given status value is known
func ValidStatus(status string) bool {
	_, ok := StatusLabels[status]
	return ok
}
