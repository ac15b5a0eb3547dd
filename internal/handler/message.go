package handler

import (
	"mime/multipart"
	"strings"

	"wa-blaster/internal/service"

	"github.com/labstack/echo/v4"
)

type AddMessageRequest struct {
	Message string `json:"message"`
}

// POST /api/messages
func AddMessage(campaign *service.Campaign) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req AddMessageRequest
		if err := c.Bind(&req); err != nil {
			return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
		if strings.TrimSpace(req.Message) == "" {
			return ErrorResponse(c, 400, "Message is required", "MISSING_MESSAGE", "")
		}

		campaign.Registry.AddMessage(req.Message)
		messages := campaign.Registry.Messages()
		return SuccessResponse(c, 201, "Message added", map[string]interface{}{
			"count":    len(messages),
			"messages": messages,
		})
	}
}

// GET /api/messages
func GetMessages(campaign *service.Campaign) echo.HandlerFunc {
	return func(c echo.Context) error {
		messages := campaign.Registry.Messages()
		return SuccessResponse(c, 200, "Messages retrieved", map[string]interface{}{
			"count":    len(messages),
			"messages": messages,
		})
	}
}

// POST /api/attachments
// multipart: files (one or more)
func UploadAttachments(campaign *service.Campaign, uploadDir string) echo.HandlerFunc {
	return func(c echo.Context) error {
		form, err := c.MultipartForm()
		if err != nil {
			return ErrorResponse(c, 400, "Invalid multipart form", "INVALID_REQUEST", err.Error())
		}
		headers := form.File["files"]
		if len(headers) == 0 {
			return ErrorResponse(c, 400, "No files uploaded", "MISSING_FILE", "Use form field 'files'")
		}

		files := make([]service.UploadFile, 0, len(headers))
		opened := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, f := range opened {
				f.Close()
			}
		}()
		for _, fh := range headers {
			src, err := fh.Open()
			if err != nil {
				return ErrorResponse(c, 400, "Failed to open uploaded file", "INVALID_FILE", err.Error())
			}
			opened = append(opened, src)
			files = append(files, service.UploadFile{Name: fh.Filename, Content: src})
		}

		saved, err := campaign.Registry.SaveAttachments(uploadDir, files)
		if err != nil {
			return ServiceError(c, "Failed to save attachments", err)
		}
		return SuccessResponse(c, 201, "Attachments saved", map[string]interface{}{
			"saved":       saved,
			"attachments": campaign.Registry.Attachments(),
		})
	}
}

// GET /api/attachments
func GetAttachments(campaign *service.Campaign) echo.HandlerFunc {
	return func(c echo.Context) error {
		attachments := campaign.Registry.Attachments()
		return SuccessResponse(c, 200, "Attachments retrieved", map[string]interface{}{
			"count":       len(attachments),
			"attachments": attachments,
		})
	}
}

// DELETE /api/campaign
// Files already written stay on disk; a running blast keeps its own snapshot.
func ResetCampaign(campaign *service.Campaign) echo.HandlerFunc {
	return func(c echo.Context) error {
		campaign.Reset()
		return SuccessResponse(c, 200, "Campaign cleared", nil)
	}
}
