package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/watertrack/complaints-api/config"
	"github.com/watertrack/complaints-api/middleware"
	"github.com/watertrack/complaints-api/models"
	"github.com/watertrack/complaints-api/services"
)

// CreateUserRequest carries the optional contact fields for a new profile
type CreateUserRequest struct {
	PhoneNumber *string `json:"phone_number" binding:"omitempty,max=15"`
	Address     *string `json:"address" binding:"omitempty"`
}

// CreateUser handles POST /api/v1/users - creates a profile from Auth0 userinfo.
// Requires authentication; identity comes from Auth0, the role claim decides
// whether the profile is customer, staff or manager (customer by default).
func CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorJSON("UNAUTHORIZED", "Could not extract user ID from token"))
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorJSON("MISSING_TOKEN", "Access token not found"))
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR", "Invalid request data"))
		return
	}

	cfg := config.GetConfig()
	auth0Service := services.NewAuth0Service(cfg)
	userInfo, err := auth0Service.GetUserInfo(accessToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorJSON("AUTH0_ERROR", "Failed to fetch user information from Auth0"))
		return
	}

	if userInfo.Email == "" {
		c.JSON(http.StatusBadRequest, errorJSON("MISSING_EMAIL", "Email not provided by Auth0"))
		return
	}

	username := userInfo.Nickname
	if username == "" {
		username = strings.Split(userInfo.Email, "@")[0]
	}

	// The role claim decides the profile role; everyone defaults to customer
	role := models.RoleCustomer
	if claims, err := middleware.GetClaims(c); err == nil {
		if customClaims, ok := claims.CustomClaims.(*middleware.CustomClaims); ok && customClaims.Role != "" {
			switch customClaims.Role {
			case models.RoleCustomer, models.RoleStaff, models.RoleManager:
				role = customClaims.Role
			}
		}
	}

	db := config.GetDB()

	// Idempotent: re-posting with an existing profile returns it unchanged
	var existing models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&existing).Error; err == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    existing,
		})
		return
	}

	user := models.User{
		Auth0ID:     auth0ID,
		Username:    username,
		Email:       userInfo.Email,
		Role:        role,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	}
	if err := db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorJSON("DATABASE_ERROR", "Failed to create user profile"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    user,
	})
}

// GetCurrentUser handles GET /api/v1/users/me - returns the caller's profile
func GetCurrentUser(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}
