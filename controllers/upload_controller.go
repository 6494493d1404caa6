package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/watertrack/complaints-api/services"
	"github.com/watertrack/complaints-api/utils"
)

// UploadImage handles POST /api/v1/uploads - stores a complaint photo and
// returns the opaque image reference to attach when filing the complaint.
func UploadImage(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("MISSING_FILE", "An 'image' file field is required"))
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		c.JSON(http.StatusServiceUnavailable, errorJSON("STORAGE_UNAVAILABLE", "Image storage is not configured"))
		return
	}

	key, err := imageService.UploadImage(fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			c.JSON(http.StatusBadRequest, errorJSON(uploadErr.Code, uploadErr.Message))
			return
		}
		c.JSON(http.StatusInternalServerError, errorJSON("UPLOAD_ERROR", "Failed to store image"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"image_s3_key": key,
		},
	})
}
