package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/watertrack/complaints-api/config"
	"github.com/watertrack/complaints-api/models"
	"github.com/watertrack/complaints-api/services"
)

func setupControllerTest(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Complaint{}, &models.StatusUpdate{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	config.SetDB(db)
	svc := services.NewComplaintService(db, nil, "WTR")
	svc.Now = func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) }
	services.SetComplaintService(svc)
	services.SetAnalyticsService(services.NewAnalyticsService(db, time.UTC))
	services.SetDashboardCache(nil)
	services.SetImageService(nil)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, auth0ID, username, role string) *models.User {
	t.Helper()
	user := &models.User{
		Auth0ID:  auth0ID,
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// newTestRouter builds a router whose auth middleware is replaced by a stub
// that injects the given subject into the context.
func newTestRouter(auth0ID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if auth0ID != "" {
			c.Set("user_id", auth0ID)
		}
		c.Next()
	})

	v1 := router.Group("/api/v1")
	v1.GET("/dashboard", PublicDashboard)
	v1.POST("/complaints", CreateComplaint)
	v1.GET("/complaints", ListMyComplaints)
	v1.GET("/complaints/:code", GetComplaint)
	v1.POST("/complaints/:code/status", UpdateComplaintStatus)
	v1.POST("/complaints/:code/assign", AssignComplaint)
	v1.POST("/complaints/:code/rating", RateComplaint)
	v1.GET("/staff/dashboard", StaffDashboard)
	v1.GET("/staff/unassigned", UnassignedComplaints)
	v1.GET("/manager/dashboard", ManagerDashboard)
	v1.GET("/manager/complaints", AllComplaints)
	v1.GET("/manager/staff-performance", StaffPerformanceReport)
	v1.GET("/manager/export", ExportComplaints)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewBuffer(payload)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func errorCode(response map[string]interface{}) string {
	errObj, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestCreateComplaintEndpoint(t *testing.T) {
	db := setupControllerTest(t)
	customer := createTestUser(t, db, "auth0|customer1", "ama", models.RoleCustomer)
	createTestUser(t, db, "auth0|staff1", "kwesi", models.RoleStaff)

	tests := []struct {
		name           string
		auth0ID        string
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
		checkResponse  func(t *testing.T, response map[string]interface{})
	}{
		{
			name:    "Successfully file complaint as customer",
			auth0ID: customer.Auth0ID,
			requestBody: map[string]interface{}{
				"category":    "leak",
				"title":       "Pipe burst",
				"description": "Water everywhere on the street",
				"address":     "12 Harbour Road",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, response map[string]interface{}) {
				assert.True(t, response["success"].(bool))
				data := response["data"].(map[string]interface{})
				assert.Equal(t, "WTR-2024-00001", data["complaint_code"])
				assert.Equal(t, "submitted", data["status"])
				assert.Equal(t, "medium", data["priority"])
				assert.Equal(t, float64(customer.ID), data["customer_id"])
				assert.Nil(t, data["assigned_to_id"])
				assert.Nil(t, data["resolved_at"])

				customerData := data["customer"].(map[string]interface{})
				assert.Equal(t, customer.Username, customerData["username"])
			},
		},
		{
			name:    "Fail to file complaint as staff",
			auth0ID: "auth0|staff1",
			requestBody: map[string]interface{}{
				"category":    "leak",
				"title":       "Pipe burst",
				"description": "x",
				"address":     "y",
			},
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:    "Fail with missing title",
			auth0ID: customer.Auth0ID,
			requestBody: map[string]interface{}{
				"category":    "leak",
				"description": "x",
				"address":     "y",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:    "Fail with unknown category",
			auth0ID: customer.Auth0ID,
			requestBody: map[string]interface{}{
				"category":    "plumbing",
				"title":       "t",
				"description": "x",
				"address":     "y",
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "INVALID_STATE",
		},
		{
			name:    "Fail without a profile",
			auth0ID: "auth0|stranger",
			requestBody: map[string]interface{}{
				"category":    "leak",
				"title":       "t",
				"description": "x",
				"address":     "y",
			},
			expectedStatus: http.StatusNotFound,
			expectedError:  "USER_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.auth0ID)
			w := doJSON(router, http.MethodPost, "/api/v1/complaints", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, w.Code)

			response := decodeBody(t, w)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(response))
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, response)
			}
		})
	}
}

func TestGetComplaintEndpoint(t *testing.T) {
	db := setupControllerTest(t)
	customer := createTestUser(t, db, "auth0|customer1", "ama", models.RoleCustomer)
	other := createTestUser(t, db, "auth0|customer2", "afi", models.RoleCustomer)
	staff := createTestUser(t, db, "auth0|staff1", "kwesi", models.RoleStaff)

	svc := services.GetComplaintService()
	complaint, err := svc.Create(customer, services.CreateComplaintInput{
		Category: models.CategoryLeak, Title: "Pipe burst", Description: "d", Address: "a",
	})
	require.NoError(t, err)
	_, err = svc.Assign(complaint.ComplaintCode, staff, staff.ID)
	require.NoError(t, err)

	t.Run("owner sees complaint with history", func(t *testing.T) {
		router := newTestRouter(customer.Auth0ID)
		w := doJSON(router, http.MethodGet, "/api/v1/complaints/"+complaint.ComplaintCode, nil)
		require.Equal(t, http.StatusOK, w.Code)

		response := decodeBody(t, w)
		data := response["data"].(map[string]interface{})
		complaintData := data["complaint"].(map[string]interface{})
		assert.Equal(t, complaint.ComplaintCode, complaintData["complaint_code"])
		assert.Equal(t, "in_progress", complaintData["status"])

		updates := data["status_updates"].([]interface{})
		require.Len(t, updates, 1)
		first := updates[0].(map[string]interface{})
		assert.Equal(t, "submitted", first["old_status"])
		assert.Equal(t, "in_progress", first["new_status"])

		assert.Equal(t, false, data["is_overdue"])
	})

	t.Run("other customers are denied", func(t *testing.T) {
		router := newTestRouter(other.Auth0ID)
		w := doJSON(router, http.MethodGet, "/api/v1/complaints/"+complaint.ComplaintCode, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("staff may view any complaint", func(t *testing.T) {
		router := newTestRouter(staff.Auth0ID)
		w := doJSON(router, http.MethodGet, "/api/v1/complaints/"+complaint.ComplaintCode, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		router := newTestRouter(customer.Auth0ID)
		w := doJSON(router, http.MethodGet, "/api/v1/complaints/WTR-2024-99999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStatusAndAssignEndpoints(t *testing.T) {
	db := setupControllerTest(t)
	customer := createTestUser(t, db, "auth0|customer1", "ama", models.RoleCustomer)
	staff := createTestUser(t, db, "auth0|staff1", "kwesi", models.RoleStaff)
	staff2 := createTestUser(t, db, "auth0|staff2", "esi", models.RoleStaff)

	svc := services.GetComplaintService()
	complaint, err := svc.Create(customer, services.CreateComplaintInput{
		Category: models.CategoryNoWater, Title: "No water", Description: "d", Address: "a",
	})
	require.NoError(t, err)

	t.Run("staff self-assign moves complaint to in_progress", func(t *testing.T) {
		router := newTestRouter(staff.Auth0ID)
		w := doJSON(router, http.MethodPost, "/api/v1/complaints/"+complaint.ComplaintCode+"/assign",
			map[string]interface{}{"staff_id": staff.ID})
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "in_progress", data["status"])
		assert.Equal(t, float64(staff.ID), data["assigned_to_id"])
	})

	t.Run("second staff claiming gets a conflict", func(t *testing.T) {
		router := newTestRouter(staff2.Auth0ID)
		w := doJSON(router, http.MethodPost, "/api/v1/complaints/"+complaint.ComplaintCode+"/assign",
			map[string]interface{}{"staff_id": staff2.ID})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "ALREADY_ASSIGNED", errorCode(decodeBody(t, w)))
	})

	t.Run("assigned staff resolves with notes", func(t *testing.T) {
		router := newTestRouter(staff.Auth0ID)
		w := doJSON(router, http.MethodPost, "/api/v1/complaints/"+complaint.ComplaintCode+"/status",
			map[string]interface{}{"status": "resolved", "notes": "fixed"})
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, "resolved", data["status"])
		assert.NotNil(t, data["resolved_at"])
	})

	t.Run("unassigned staff cannot transition", func(t *testing.T) {
		router := newTestRouter(staff2.Auth0ID)
		w := doJSON(router, http.MethodPost, "/api/v1/complaints/"+complaint.ComplaintCode+"/status",
			map[string]interface{}{"status": "closed", "notes": "done"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("backward transition is unprocessable", func(t *testing.T) {
		router := newTestRouter(staff.Auth0ID)
		w := doJSON(router, http.MethodPost, "/api/v1/complaints/"+complaint.ComplaintCode+"/status",
			map[string]interface{}{"status": "submitted", "notes": "restart"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestRateComplaintEndpoint(t *testing.T) {
	db := setupControllerTest(t)
	customer := createTestUser(t, db, "auth0|customer1", "ama", models.RoleCustomer)
	staff := createTestUser(t, db, "auth0|staff1", "kwesi", models.RoleStaff)

	svc := services.GetComplaintService()
	complaint, err := svc.Create(customer, services.CreateComplaintInput{
		Category: models.CategoryLeak, Title: "Pipe burst", Description: "d", Address: "a",
	})
	require.NoError(t, err)
	_, err = svc.Assign(complaint.ComplaintCode, staff, staff.ID)
	require.NoError(t, err)
	_, err = svc.Transition(complaint.ComplaintCode, staff, models.StatusResolved, "fixed")
	require.NoError(t, err)

	router := newTestRouter(customer.Auth0ID)

	t.Run("customer rates resolved complaint", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/complaints/"+complaint.ComplaintCode+"/rating",
			map[string]interface{}{"rating": 5, "feedback": "great service"})
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]interface{})
		assert.Equal(t, float64(5), data["customer_rating"])
	})

	t.Run("second rating attempt conflicts", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/complaints/"+complaint.ComplaintCode+"/rating",
			map[string]interface{}{"rating": 1, "feedback": "never mind"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "ALREADY_RATED", errorCode(decodeBody(t, w)))
	})

	t.Run("out of range rating is rejected by validation", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/complaints/"+complaint.ComplaintCode+"/rating",
			map[string]interface{}{"rating": 9, "feedback": ""})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
