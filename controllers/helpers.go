package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/watertrack/complaints-api/config"
	"github.com/watertrack/complaints-api/middleware"
	"github.com/watertrack/complaints-api/models"
	"github.com/watertrack/complaints-api/services"
)

// errorJSON builds the error response envelope used by every endpoint
func errorJSON(code, message string) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// currentUser resolves the authenticated user's profile from the JWT
// subject in the context. It writes the error response itself and returns
// ok=false when the actor cannot be resolved.
func currentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED", "Could not extract user information"))
		return nil, false
	}

	db := config.GetDB()
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, errorJSON("USER_NOT_FOUND", "User profile not found. Please create a profile first."))
		return nil, false
	}
	return &user, true
}

// handleServiceError maps the service error taxonomy onto HTTP statuses
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, errorJSON("NOT_FOUND", err.Error()))
	case errors.Is(err, services.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorJSON("FORBIDDEN", err.Error()))
	case errors.Is(err, services.ErrAlreadyAssigned):
		c.JSON(http.StatusConflict, errorJSON("ALREADY_ASSIGNED", err.Error()))
	case errors.Is(err, services.ErrAlreadyRated):
		c.JSON(http.StatusConflict, errorJSON("ALREADY_RATED", err.Error()))
	case errors.Is(err, services.ErrConflictRetryable):
		c.JSON(http.StatusConflict, errorJSON("CONFLICT_RETRY", err.Error()))
	case errors.Is(err, services.ErrInvalidState):
		c.JSON(http.StatusUnprocessableEntity, errorJSON("INVALID_STATE", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorJSON("INTERNAL_ERROR", "Something went wrong"))
	}
}

// attachImageURL fills the computed presigned photo URL on a complaint
func attachImageURL(complaint *models.Complaint) {
	if complaint.ImageS3Key == nil || *complaint.ImageS3Key == "" {
		return
	}
	imageService := services.GetImageService()
	if imageService == nil {
		return
	}
	if url, err := imageService.GetImageURL(*complaint.ImageS3Key); err == nil && url != "" {
		complaint.ImageURL = &url
	}
}
