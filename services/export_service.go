package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/watertrack/complaints-api/models"
)

// exportHeader is the column order of the manager export, shared by the CSV
// and XLSX writers.
var exportHeader = []string{
	"Complaint ID",
	"Title",
	"Category",
	"Priority",
	"Status",
	"Customer",
	"Assigned To",
	"Address",
	"Created At",
	"Resolved At",
	"Response Time (hrs)",
	"Rating",
}

const exportTimeLayout = "2006-01-02 15:04"

// exportRow flattens one complaint into export cells. Unset optional fields
// render as "N/A" and an unassigned complaint as "Unassigned".
func exportRow(c *models.Complaint) []string {
	assigned := "Unassigned"
	if c.AssignedTo != nil {
		assigned = c.AssignedTo.Username
	}

	resolvedAt := "N/A"
	if c.ResolvedAt != nil {
		resolvedAt = c.ResolvedAt.Format(exportTimeLayout)
	}

	responseTime := "N/A"
	if rt := c.ResponseTime(); rt != nil {
		responseTime = strconv.FormatFloat(*rt, 'f', 2, 64)
	}

	rating := "N/A"
	if c.CustomerRating != nil {
		rating = strconv.Itoa(*c.CustomerRating)
	}

	return []string{
		c.ComplaintCode,
		c.Title,
		c.CategoryLabel(),
		c.PriorityLabel(),
		c.StatusLabel(),
		c.Customer.Username,
		assigned,
		c.Address,
		c.CreatedAt.Format(exportTimeLayout),
		resolvedAt,
		responseTime,
		rating,
	}
}

// WriteComplaintsCSV writes the export header and one row per complaint
func WriteComplaintsCSV(w io.Writer, complaints []models.Complaint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range complaints {
		if err := cw.Write(exportRow(&complaints[i])); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildComplaintsXLSX renders the same export as an Excel workbook
func BuildComplaintsXLSX(complaints []models.Complaint) ([]byte, error) {
	f := excelize.NewFile()
	// Don't defer Close before WriteTo; the file must stay open for it.

	sheetName := "Complaints"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for col, header := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, err
		}
	}

	for i := range complaints {
		row := exportRow(&complaints[i])
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				f.Close()
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
