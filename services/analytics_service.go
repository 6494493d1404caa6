package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/watertrack/complaints-api/models"
)

// Scope selects the subset of complaints an analytics call operates on.
// Zero-value fields are ignored.
type Scope struct {
	Statuses      []string
	Category      string
	AssignedToID  *uint
	CustomerID    *uint
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// apply narrows a complaints query to the scope
func (s Scope) apply(q *gorm.DB) *gorm.DB {
	if len(s.Statuses) > 0 {
		q = q.Where("status IN ?", s.Statuses)
	}
	if s.Category != "" {
		q = q.Where("category = ?", s.Category)
	}
	if s.AssignedToID != nil {
		q = q.Where("assigned_to_id = ?", *s.AssignedToID)
	}
	if s.CustomerID != nil {
		q = q.Where("customer_id = ?", *s.CustomerID)
	}
	if s.CreatedAfter != nil {
		q = q.Where("created_at >= ?", *s.CreatedAfter)
	}
	if s.CreatedBefore != nil {
		q = q.Where("created_at < ?", *s.CreatedBefore)
	}
	return q
}

// CategoryCount is one row of the category breakdown
type CategoryCount struct {
	Category   string  `json:"category"`
	Label      string  `json:"label"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// StaffPerformance summarizes one staff member's workload and outcomes
type StaffPerformance struct {
	StaffID           uint     `json:"staff_id"`
	Username          string   `json:"username"`
	TotalAssigned     int64    `json:"total_assigned"`
	ResolvedCount     int64    `json:"resolved_count"`
	PendingCount      int64    `json:"pending_count"`
	AvgResolutionTime *float64 `json:"avg_resolution_time"`
	AvgRating         *float64 `json:"avg_rating"`
	ResolutionRate    float64  `json:"resolution_rate"`
}

// MonthCounts reports activity since the start of the current calendar month
type MonthCounts struct {
	Created  int64 `json:"created"`
	Resolved int64 `json:"resolved"`
}

// DashboardStats is the composite read backing the public dashboard
type DashboardStats struct {
	TotalComplaints     int64              `json:"total_complaints"`
	StatusCounts        map[string]int64   `json:"status_counts"`
	CategoryBreakdown   []CategoryCount    `json:"category_breakdown"`
	AvgResolutionTime   *float64           `json:"avg_resolution_time"`
	ComplaintsThisMonth int64              `json:"complaints_this_month"`
	ResolvedThisMonth   int64              `json:"resolved_this_month"`
	OverdueCount        int                `json:"overdue_count"`
	RecentComplaints    []models.Complaint `json:"recent_complaints"`
}

// AnalyticsService computes dashboard and report metrics. It never mutates
// state; every method evaluates overdue/month arithmetic against a single
// clock snapshot taken at call entry.
type AnalyticsService struct {
	db  *gorm.DB
	loc *time.Location

	// Now supplies the snapshot clock, overridable in tests.
	Now func() time.Time
}

var analyticsServiceInstance *AnalyticsService

// InitAnalyticsService initializes the shared analytics service
func InitAnalyticsService(db *gorm.DB, loc *time.Location) *AnalyticsService {
	analyticsServiceInstance = NewAnalyticsService(db, loc)
	return analyticsServiceInstance
}

// GetAnalyticsService returns the initialized analytics service instance
func GetAnalyticsService() *AnalyticsService {
	return analyticsServiceInstance
}

// SetAnalyticsService sets the analytics service instance (primarily for testing)
func SetAnalyticsService(s *AnalyticsService) {
	analyticsServiceInstance = s
}

// NewAnalyticsService creates an analytics service bound to the given database
func NewAnalyticsService(db *gorm.DB, loc *time.Location) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{db: db, loc: loc, Now: time.Now}
}

// StatusBreakdown counts complaints per status within the scope. Statuses
// with no complaints are present with a zero count.
func (s *AnalyticsService) StatusBreakdown(scope Scope) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := scope.apply(s.db.Model(&models.Complaint{})).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute status breakdown: %w", err)
	}

	counts := map[string]int64{
		models.StatusSubmitted:  0,
		models.StatusInProgress: 0,
		models.StatusResolved:   0,
		models.StatusClosed:     0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// CategoryBreakdown counts complaints per category within the scope, most
// frequent first, with each count's share of the scope total as a
// percentage rounded to two decimals. Percentages are 0 when the scope is
// empty.
func (s *AnalyticsService) CategoryBreakdown(scope Scope) ([]CategoryCount, error) {
	type row struct {
		Category string
		Count    int64
	}
	var rows []row
	err := scope.apply(s.db.Model(&models.Complaint{})).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute category breakdown: %w", err)
	}

	var total int64
	for _, r := range rows {
		total += r.Count
	}

	breakdown := make([]CategoryCount, 0, len(rows))
	for _, r := range rows {
		entry := CategoryCount{
			Category: r.Category,
			Label:    r.Category,
			Count:    r.Count,
		}
		if label, ok := models.CategoryLabels[r.Category]; ok {
			entry.Label = label
		}
		if total > 0 {
			entry.Percentage = round2(float64(r.Count) / float64(total) * 100)
		}
		breakdown = append(breakdown, entry)
	}
	return breakdown, nil
}

// AverageResolutionTime returns the mean response time in hours over
// resolved/closed complaints in scope that carry a resolution timestamp.
// The result is nil, not zero, when no complaint qualifies.
func (s *AnalyticsService) AverageResolutionTime(scope Scope) (*float64, error) {
	var complaints []models.Complaint
	err := scope.apply(s.db.Model(&models.Complaint{})).
		Where("status IN ?", []string{models.StatusResolved, models.StatusClosed}).
		Where("resolved_at IS NOT NULL").
		Find(&complaints).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load resolved complaints: %w", err)
	}
	if len(complaints) == 0 {
		return nil, nil
	}

	var sum float64
	for i := range complaints {
		if rt := complaints[i].ResponseTime(); rt != nil {
			sum += *rt
		}
	}
	avg := round2(sum / float64(len(complaints)))
	return &avg, nil
}

// OverdueSet returns the open complaints in scope that have exceeded the
// overdue threshold, all judged against the same clock snapshot.
func (s *AnalyticsService) OverdueSet(scope Scope) ([]models.Complaint, error) {
	now := s.Now()
	var open []models.Complaint
	err := scope.apply(s.db.Model(&models.Complaint{})).
		Where("status IN ?", []string{models.StatusSubmitted, models.StatusInProgress}).
		Order("created_at ASC").
		Find(&open).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load open complaints: %w", err)
	}

	overdue := make([]models.Complaint, 0, len(open))
	for i := range open {
		if open[i].IsOverdue(now) {
			overdue = append(overdue, open[i])
		}
	}
	return overdue, nil
}

// StaffPerformanceFor summarizes the given staff member's assigned workload
func (s *AnalyticsService) StaffPerformanceFor(staffID uint) (*StaffPerformance, error) {
	var staff models.User
	if err := s.db.First(&staff, staffID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: staff %d", ErrNotFound, staffID)
		}
		return nil, err
	}
	if !staff.IsStaffMember() {
		return nil, fmt.Errorf("%w: user %q is not staff", ErrInvalidState, staff.Username)
	}

	scope := Scope{AssignedToID: &staffID}
	perf := &StaffPerformance{StaffID: staff.ID, Username: staff.Username}

	statusCounts, err := s.StatusBreakdown(scope)
	if err != nil {
		return nil, err
	}
	for _, count := range statusCounts {
		perf.TotalAssigned += count
	}
	perf.ResolvedCount = statusCounts[models.StatusResolved] + statusCounts[models.StatusClosed]
	perf.PendingCount = statusCounts[models.StatusSubmitted] + statusCounts[models.StatusInProgress]

	perf.AvgResolutionTime, err = s.AverageResolutionTime(scope)
	if err != nil {
		return nil, err
	}

	// Mean customer rating across the staff member's resolved/closed work
	var ratings []int
	err = scope.apply(s.db.Model(&models.Complaint{})).
		Where("status IN ?", []string{models.StatusResolved, models.StatusClosed}).
		Where("customer_rating IS NOT NULL").
		Pluck("customer_rating", &ratings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	if len(ratings) > 0 {
		var sum int
		for _, r := range ratings {
			sum += r
		}
		avg := round2(float64(sum) / float64(len(ratings)))
		perf.AvgRating = &avg
	}

	if perf.TotalAssigned > 0 {
		perf.ResolutionRate = round2(float64(perf.ResolvedCount) / float64(perf.TotalAssigned) * 100)
	}
	return perf, nil
}

// AllStaffPerformance reports every staff member, most assigned first
func (s *AnalyticsService) AllStaffPerformance() ([]StaffPerformance, error) {
	var staff []models.User
	if err := s.db.Where("role = ?", models.RoleStaff).Order("username").Find(&staff).Error; err != nil {
		return nil, fmt.Errorf("failed to load staff: %w", err)
	}

	reports := make([]StaffPerformance, 0, len(staff))
	for i := range staff {
		perf, err := s.StaffPerformanceFor(staff[i].ID)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *perf)
	}
	return reports, nil
}

// ThisMonthCounts reports complaints created and complaints resolved since
// the first instant of the current calendar month in the configured zone.
func (s *AnalyticsService) ThisMonthCounts(scope Scope) (*MonthCounts, error) {
	now := s.Now().In(s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)

	counts := &MonthCounts{}
	err := scope.apply(s.db.Model(&models.Complaint{})).
		Where("created_at >= ?", monthStart).
		Count(&counts.Created).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count this month's complaints: %w", err)
	}
	err = scope.apply(s.db.Model(&models.Complaint{})).
		Where("resolved_at >= ?", monthStart).
		Count(&counts.Resolved).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count this month's resolutions: %w", err)
	}
	return counts, nil
}

// DashboardStatsFor assembles the public dashboard numbers in one call
func (s *AnalyticsService) DashboardStatsFor(scope Scope) (*DashboardStats, error) {
	stats := &DashboardStats{}

	statusCounts, err := s.StatusBreakdown(scope)
	if err != nil {
		return nil, err
	}
	stats.StatusCounts = statusCounts
	for _, count := range statusCounts {
		stats.TotalComplaints += count
	}

	if stats.CategoryBreakdown, err = s.CategoryBreakdown(scope); err != nil {
		return nil, err
	}
	if stats.AvgResolutionTime, err = s.AverageResolutionTime(scope); err != nil {
		return nil, err
	}

	month, err := s.ThisMonthCounts(scope)
	if err != nil {
		return nil, err
	}
	stats.ComplaintsThisMonth = month.Created
	stats.ResolvedThisMonth = month.Resolved

	overdue, err := s.OverdueSet(scope)
	if err != nil {
		return nil, err
	}
	stats.OverdueCount = len(overdue)

	err = scope.apply(s.db.Model(&models.Complaint{})).
		Preload("Customer").
		Order("created_at DESC").
		Limit(5).
		Find(&stats.RecentComplaints).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent complaints: %w", err)
	}
	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
