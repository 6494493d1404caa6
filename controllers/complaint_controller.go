package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/watertrack/complaints-api/services"
)

// CreateComplaintRequest represents the request body for filing a complaint
type CreateComplaintRequest struct {
	Category       string  `json:"category" binding:"required"`
	Priority       string  `json:"priority" binding:"omitempty"`
	Title          string  `json:"title" binding:"required,max=200"`
	Description    string  `json:"description" binding:"required"`
	Address        string  `json:"address" binding:"required"`
	GPSCoordinates *string `json:"gps_coordinates" binding:"omitempty,max=50"`
	ImageS3Key     *string `json:"image_s3_key" binding:"omitempty"`
}

// UpdateStatusRequest represents the request body for a status transition
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes" binding:"required"`
}

// AssignRequest represents the request body for assigning a complaint
type AssignRequest struct {
	StaffID uint `json:"staff_id" binding:"required"`
}

// RateRequest represents the request body for rating a resolved complaint
type RateRequest struct {
	Rating   int    `json:"rating" binding:"required,min=1,max=5"`
	Feedback string `json:"feedback" binding:"omitempty"`
}

// CreateComplaint handles POST /api/v1/complaints - files a new complaint (customers only)
func CreateComplaint(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	complaint, err := services.GetComplaintService().Create(user, services.CreateComplaintInput{
		Category:       req.Category,
		Priority:       req.Priority,
		Title:          req.Title,
		Description:    req.Description,
		Address:        req.Address,
		GPSCoordinates: req.GPSCoordinates,
		ImageS3Key:     req.ImageS3Key,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	complaint.Customer = *user
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    complaint,
	})
}

// ListMyComplaints handles GET /api/v1/complaints - lists the caller's own complaints
func ListMyComplaints(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	complaints, err := services.GetComplaintService().ListForCustomer(user.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    complaints,
	})
}

// GetComplaint handles GET /api/v1/complaints/:code - complaint detail with status history
func GetComplaint(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	code := c.Param("code")
	svc := services.GetComplaintService()

	complaint, err := svc.GetByCode(code)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	// Customers may only see their own complaints; staff and managers see all
	if user.IsCustomer() && complaint.CustomerID != user.ID {
		c.JSON(http.StatusForbidden, errorJSON("FORBIDDEN", "You can only view your own complaints"))
		return
	}

	history, err := svc.History(code)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	attachImageURL(complaint)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"complaint":      complaint,
			"status_updates": history,
			"is_overdue":     complaint.IsOverdue(svc.Now()),
			"response_time":  complaint.ResponseTime(),
		},
	})
}

// UpdateComplaintStatus handles POST /api/v1/complaints/:code/status - transitions a complaint
func UpdateComplaintStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	complaint, err := services.GetComplaintService().Transition(c.Param("code"), user, req.Status, req.Notes)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    complaint,
	})
}

// AssignComplaint handles POST /api/v1/complaints/:code/assign - assigns a complaint to staff
func AssignComplaint(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	complaint, err := services.GetComplaintService().Assign(c.Param("code"), user, req.StaffID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    complaint,
	})
}

// RateComplaint handles POST /api/v1/complaints/:code/rating - records the customer's rating
func RateComplaint(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	complaint, err := services.GetComplaintService().Rate(c.Param("code"), user, req.Rating, req.Feedback)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    complaint,
	})
}
