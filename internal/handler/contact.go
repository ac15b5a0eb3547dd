package handler

import (
	"fmt"
	"strings"
	"time"

	"wa-blaster/internal/helper"
	"wa-blaster/internal/model"
	"wa-blaster/internal/service"

	"github.com/labstack/echo/v4"
)

const sampleSize = 5

type ContactsInfo struct {
	Count   int                   `json:"count"`
	Sample  []string              `json:"sample"`
	Columns []string              `json:"columns"`
	Stats   helper.NormalizeStats `json:"stats"`
}

func contactsInfo(campaign *service.Campaign) ContactsInfo {
	numbers := campaign.Numbers()
	return ContactsInfo{
		Count:   len(numbers),
		Sample:  model.SampleNumbers(numbers, sampleSize),
		Columns: campaign.Columns(),
		Stats:   campaign.Stats(),
	}
}

// POST /api/contacts
// multipart: file (csv or xlsx), column (header holding the phone numbers)
func UploadContacts(campaign *service.Campaign) echo.HandlerFunc {
	return func(c echo.Context) error {
		column := strings.TrimSpace(c.FormValue("column"))
		if column == "" {
			return ErrorResponse(c, 400, "Column is required", "MISSING_COLUMN", "Form field 'column' names the phone number column")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return ErrorResponse(c, 400, "Contact file is required", "MISSING_FILE", err.Error())
		}
		src, err := fh.Open()
		if err != nil {
			return ErrorResponse(c, 400, "Failed to open uploaded file", "INVALID_FILE", err.Error())
		}
		defer src.Close()

		table, err := model.ReadContactsFile(fh.Filename, src)
		if err != nil {
			return ServiceError(c, "Failed to read contact file", err)
		}
		if table.Column(column) < 0 {
			return ErrorResponse(c, 400, "Column not found in contact file", "COLUMN_NOT_FOUND",
				fmt.Sprintf("available columns: %s", strings.Join(table.Columns, ", ")))
		}

		campaign.SetContacts(table, column)
		return SuccessResponse(c, 200, "Contacts normalized", contactsInfo(campaign))
	}
}

// GET /api/contacts/numbers
func GetContactNumbers(campaign *service.Campaign) echo.HandlerFunc {
	return func(c echo.Context) error {
		info := contactsInfo(campaign)
		return SuccessResponse(c, 200, "Contact numbers retrieved", map[string]interface{}{
			"count":   info.Count,
			"sample":  info.Sample,
			"columns": info.Columns,
			"stats":   info.Stats,
			"numbers": campaign.Numbers(),
		})
	}
}

// GET /api/contacts/export?format=csv|xlsx
func ExportContacts(campaign *service.Campaign) echo.HandlerFunc {
	return func(c echo.Context) error {
		format := strings.ToLower(c.QueryParam("format"))
		if format == "" {
			format = "xlsx"
		}
		if format != "csv" && format != "xlsx" {
			return ErrorResponse(c, 400, "Invalid format", "INVALID_FORMAT", "Use format=csv or format=xlsx")
		}

		table := campaign.Table()
		if table == nil {
			return ErrorResponse(c, 404, "No contacts uploaded", "NO_CONTACTS", "Upload a contact file first")
		}

		filename := fmt.Sprintf("contacts_%s.%s", time.Now().Format("20060102_150405"), format)
		c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

		if format == "csv" {
			c.Response().Header().Set("Content-Type", "text/csv")
			c.Response().WriteHeader(200)
			return model.WriteContactsCSV(c.Response().Writer, table)
		}

		c.Response().Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Response().WriteHeader(200)
		return model.WriteContactsXLSX(c.Response().Writer, table)
	}
}
