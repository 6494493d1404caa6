package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watertrack/complaints-api/config"
	"github.com/watertrack/complaints-api/middleware"
	"github.com/watertrack/complaints-api/models"
	"github.com/watertrack/complaints-api/services"
)

// setupMockAuth0Server simulates Auth0's /userinfo endpoint, keyed by token
func setupMockAuth0Server(userInfoMap map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < 8 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := authHeader[7:] // strip "Bearer "

		userInfo, exists := userInfoMap[token]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	}))
}

// mockJWTMiddleware sets up the context the way EnsureValidToken does
func mockJWTMiddleware(auth0ID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("validated_claims", &validator.ValidatedClaims{
			CustomClaims: &middleware.CustomClaims{Role: role},
		})
		c.Next()
	}
}

func TestCreateUserEndpoint(t *testing.T) {
	db := setupControllerTest(t)

	tests := []struct {
		name             string
		auth0ID          string
		email            string
		nickname         string
		role             string
		accessToken      string
		expectedStatus   int
		expectedCode     string
		expectedUsername string
	}{
		{
			name:             "Create customer profile successfully",
			auth0ID:          "auth0|123456",
			email:            "ama@example.com",
			nickname:         "ama",
			role:             "customer",
			accessToken:      "token-123456",
			expectedStatus:   http.StatusCreated,
			expectedUsername: "ama",
		},
		{
			name:             "Create staff profile from role claim",
			auth0ID:          "auth0|staff789",
			email:            "kwesi@example.com",
			nickname:         "kwesi",
			role:             "staff",
			accessToken:      "token-staff789",
			expectedStatus:   http.StatusCreated,
			expectedUsername: "kwesi",
		},
		{
			name:             "Default to customer when role claim is empty",
			auth0ID:          "auth0|norole",
			email:            "norole@example.com",
			nickname:         "norole",
			role:             "",
			accessToken:      "token-norole",
			expectedStatus:   http.StatusCreated,
			expectedUsername: "norole",
		},
		{
			name:             "Unknown role claim falls back to customer",
			auth0ID:          "auth0|superuser",
			email:            "root@example.com",
			nickname:         "root",
			role:             "superuser",
			accessToken:      "token-superuser",
			expectedStatus:   http.StatusCreated,
			expectedUsername: "root",
		},
		{
			name:             "Username falls back to email local part",
			auth0ID:          "auth0|nonick",
			email:            "esi.mensah@example.com",
			nickname:         "",
			role:             "customer",
			accessToken:      "token-nonick",
			expectedStatus:   http.StatusCreated,
			expectedUsername: "esi.mensah",
		},
		{
			name:           "Fail with missing email",
			auth0ID:        "auth0|noemail",
			email:          "",
			nickname:       "ghost",
			role:           "customer",
			accessToken:    "token-noemail",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "MISSING_EMAIL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db.Exec("DELETE FROM users")

			mockServer := setupMockAuth0Server(map[string]*services.Auth0UserInfo{
				tt.accessToken: {
					Sub:      tt.auth0ID,
					Email:    tt.email,
					Nickname: tt.nickname,
				},
			})
			defer mockServer.Close()

			originalConfig := config.GetConfig()
			defer config.SetConfig(originalConfig)
			// Full URL so the Auth0 client talks to the mock server over http
			config.SetConfig(&config.Config{Auth0Domain: mockServer.URL})

			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.POST("/users", mockJWTMiddleware(tt.auth0ID, tt.role), CreateUser)

			req := httptest.NewRequest(http.MethodPost, "/users", nil)
			req.Header.Set("Authorization", "Bearer "+tt.accessToken)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())

			response := decodeBody(t, w)
			if tt.expectedStatus == http.StatusCreated {
				assert.True(t, response["success"].(bool))
				data := response["data"].(map[string]interface{})
				assert.Equal(t, tt.email, data["email"])
				assert.Equal(t, tt.auth0ID, data["auth0_id"])
				assert.Equal(t, tt.expectedUsername, data["username"])
				switch tt.role {
				case "customer", "staff", "manager":
					assert.Equal(t, tt.role, data["role"])
				default:
					assert.Equal(t, "customer", data["role"])
				}
			} else {
				assert.False(t, response["success"].(bool))
				assert.Equal(t, tt.expectedCode, errorCode(response))
			}
		})
	}
}

func TestCreateUserIdempotent(t *testing.T) {
	db := setupControllerTest(t)
	existing := createTestUser(t, db, "auth0|existing", "ama", models.RoleCustomer)

	mockServer := setupMockAuth0Server(map[string]*services.Auth0UserInfo{
		"token-existing": {
			Sub:      existing.Auth0ID,
			Email:    "changed@example.com",
			Nickname: "changed",
		},
	})
	defer mockServer.Close()

	originalConfig := config.GetConfig()
	defer config.SetConfig(originalConfig)
	config.SetConfig(&config.Config{Auth0Domain: mockServer.URL})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/users", mockJWTMiddleware(existing.Auth0ID, "customer"), CreateUser)

	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req.Header.Set("Authorization", "Bearer token-existing")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// Re-posting returns the existing profile unchanged, not a duplicate
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, existing.Username, data["username"])
	assert.Equal(t, existing.Email, data["email"])

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGetCurrentUserEndpoint(t *testing.T) {
	db := setupControllerTest(t)
	user := createTestUser(t, db, "auth0|me", "ama", models.RoleCustomer)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/me", mockJWTMiddleware(user.Auth0ID, user.Role), GetCurrentUser)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, user.Username, data["username"])
	assert.Equal(t, user.Role, data["role"])
}
