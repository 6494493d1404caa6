package controllers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/watertrack/complaints-api/services"
)

// ExportComplaints handles GET /api/v1/manager/export - downloads every
// complaint as CSV (default) or XLSX (?format=xlsx).
func ExportComplaints(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if !user.IsManager() {
		c.JSON(http.StatusForbidden, errorJSON("FORBIDDEN", "Manager access required"))
		return
	}

	svc := services.GetComplaintService()
	complaints, err := svc.List(services.Scope{})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	stamp := svc.Now().Format("20060102")
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		var buf bytes.Buffer
		if err := services.WriteComplaintsCSV(&buf, complaints); err != nil {
			c.JSON(http.StatusInternalServerError, errorJSON("EXPORT_ERROR", "Failed to build CSV export"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=complaints_%s.csv", stamp))
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
	case "xlsx":
		payload, err := services.BuildComplaintsXLSX(complaints)
		if err != nil {
			c.JSON(http.StatusInternalServerError, errorJSON("EXPORT_ERROR", "Failed to build XLSX export"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=complaints_%s.xlsx", stamp))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
	default:
		c.JSON(http.StatusBadRequest, errorJSON("VALIDATION_ERROR", "format must be csv or xlsx"))
	}
}
