package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/watertrack/complaints-api/models"
	"github.com/watertrack/complaints-api/services"
)

// publicDashboardCacheKey is where the Redis cache keeps the public stats
const publicDashboardCacheKey = "dashboard:public"

// PublicDashboard handles GET /api/v1/dashboard - overall statistics, no auth.
// Served from the Redis cache when available; dashboards tolerate slightly
// stale numbers.
func PublicDashboard(c *gin.Context) {
	cache := services.GetDashboardCache()

	var stats services.DashboardStats
	if cache.Get(c.Request.Context(), publicDashboardCacheKey, &stats) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    stats,
			"cached":  true,
		})
		return
	}

	fresh, err := services.GetAnalyticsService().DashboardStatsFor(services.Scope{})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if err := cache.Set(c.Request.Context(), publicDashboardCacheKey, fresh); err != nil {
		// Cache failures never block the dashboard
		zap.L().Warn("failed to cache public dashboard stats", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    fresh,
	})
}

// StaffDashboard handles GET /api/v1/staff/dashboard - the caller's assigned workload
func StaffDashboard(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsStaffMember() && !user.IsManager() {
		c.JSON(http.StatusForbidden, errorJSON("FORBIDDEN", "Staff access required"))
		return
	}

	analytics := services.GetAnalyticsService()
	scope := services.Scope{AssignedToID: &user.ID}

	statusCounts, err := analytics.StatusBreakdown(scope)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	overdue, err := analytics.OverdueSet(scope)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	assigned, err := services.GetComplaintService().ListForStaff(user.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"status_counts":       statusCounts,
			"overdue_complaints":  overdue,
			"assigned_complaints": assigned,
		},
	})
}

// UnassignedComplaints handles GET /api/v1/staff/unassigned - open complaints with no assignee
func UnassignedComplaints(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsStaffMember() && !user.IsManager() {
		c.JSON(http.StatusForbidden, errorJSON("FORBIDDEN", "Staff access required"))
		return
	}

	complaints, err := services.GetComplaintService().ListUnassigned()
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    complaints,
	})
}

// ManagerDashboard handles GET /api/v1/manager/dashboard - full aggregate view
func ManagerDashboard(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsManager() {
		c.JSON(http.StatusForbidden, errorJSON("FORBIDDEN", "Manager access required"))
		return
	}

	stats, err := services.GetAnalyticsService().DashboardStatsFor(services.Scope{})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// AllComplaints handles GET /api/v1/manager/complaints - filterable list of every complaint
func AllComplaints(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsManager() {
		c.JSON(http.StatusForbidden, errorJSON("FORBIDDEN", "Manager access required"))
		return
	}

	scope := services.Scope{}
	if status := c.Query("status"); status != "" {
		if !models.ValidStatus(status) {
			c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR", "Unknown status filter"))
			return
		}
		scope.Statuses = []string{status}
	}
	if category := c.Query("category"); category != "" {
		if !models.ValidCategory(category) {
			c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR", "Unknown category filter"))
			return
		}
		scope.Category = category
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		id, err := strconv.ParseUint(assignee, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR", "assigned_to must be a user ID"))
			return
		}
		staffID := uint(id)
		scope.AssignedToID = &staffID
	}

	complaints, err := services.GetComplaintService().List(scope)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    complaints,
	})
}

// StaffPerformanceReport handles GET /api/v1/manager/staff-performance.
// With ?staff_id it reports one staff member, otherwise all of them.
func StaffPerformanceReport(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsManager() {
		c.JSON(http.StatusForbidden, errorJSON("FORBIDDEN", "Manager access required"))
		return
	}

	analytics := services.GetAnalyticsService()

	if staffParam := c.Query("staff_id"); staffParam != "" {
		id, err := strconv.ParseUint(staffParam, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR", "staff_id must be a user ID"))
			return
		}
		perf, err := analytics.StaffPerformanceFor(uint(id))
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    perf,
		})
		return
	}

	reports, err := analytics.AllStaffPerformance()
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    reports,
	})
}
