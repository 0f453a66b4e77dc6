package handler

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"filebox/internal/service"
	"filebox/internal/storage"
)

// uploadFileRequest mirrors the wire contract: content travels base64-encoded
// inside a JSON body.
type uploadFileRequest struct {
	OriginalName string `json:"original_name"`
	FileData     string `json:"file_data"`
	MimeType     string `json:"mime_type"`
	FileSize     int64  `json:"file_size"`
}

// fileDownloadResponse is the full-content response for GET /files/:id.
type fileDownloadResponse struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	FileData     string `json:"file_data"`
	MimeType     string `json:"mime_type"`
	FileSize     int64  `json:"file_size"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers translate between the wire format and the service layer; all
// business rules live in the service.
func RegisterRoutes(app *fiber.App, db *sql.DB, fileSvc service.FileService, blobs storage.BlobStore) {
	// API docs: raw OpenAPI document plus a Swagger UI page
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	// /files/stats must be registered before /files/:id so "stats" is not
	// captured as an id parameter.
	app.Get("/files/stats", GetFileStats(fileSvc))
	app.Get("/files/:id", GetFileByID(fileSvc))
	app.Get("/files", ListFiles(fileSvc))
	app.Post("/files", UploadFile(fileSvc))

	// Direct-download route: metadata lookup here, blob streamed by the handler.
	app.Get("/file/:id", ServeFile(fileSvc, blobs))
}

// HealthCheck reports service health including DB connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// LivenessProbe is a simple liveness check with no dependencies.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadFile ingests a base64-encoded payload and returns the stored record
// with its public link.
func UploadFile(fileSvc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req uploadFileRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "malformed request body")
		}

		data, err := base64.StdEncoding.DecodeString(req.FileData)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAYLOAD", "file_data is not valid base64")
		}

		res, err := fileSvc.Upload(c.UserContext(), service.UploadInput{
			OriginalName: req.OriginalName,
			Data:         data,
			MimeType:     req.MimeType,
			DeclaredSize: req.FileSize,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNameRequired):
				return writeError(c, fiber.StatusBadRequest, "NAME_REQUIRED", "file name cannot be empty")
			case errors.Is(err, service.ErrSizeInvalid):
				return writeError(c, fiber.StatusBadRequest, "INVALID_SIZE", "file size must be positive and cannot exceed 200 MiB")
			case errors.Is(err, service.ErrSizeMismatch):
				return writeError(c, fiber.StatusBadRequest, "SIZE_MISMATCH", "decoded data does not match declared size")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GetFileStats returns the aggregate file count.
func GetFileStats(fileSvc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := fileSvc.Stats(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(stats)
	}
}

// GetFileByID returns a file's content base64-encoded along with its metadata.
func GetFileByID(fileSvc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		dl, err := fileSvc.GetContent(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		return c.JSON(fileDownloadResponse{
			ID:           dl.ID,
			OriginalName: dl.OriginalName,
			FileData:     base64.StdEncoding.EncodeToString(dl.Data),
			MimeType:     dl.MimeType,
			FileSize:     dl.Size,
		})
	}
}

// ServeFile streams a file's raw bytes using its catalog metadata. A row whose
// blob has been removed out of band serves a 404 rather than an error.
func ServeFile(fileSvc service.FileService, blobs storage.BlobStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		f, err := fileSvc.GetMetadata(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		rc, info, err := blobs.Get(c.UserContext(), f.StoragePath)
		if err != nil {
			if errors.Is(err, storage.ErrNotExist) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		mimeType := f.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		c.Set(fiber.HeaderContentType, mimeType)
		c.Set(fiber.HeaderContentDisposition, `inline; filename="`+f.OriginalName+`"`)
		return c.SendStream(rc, int(info.Size))
	}
}

// ListFiles returns a paginated listing of catalog rows.
func ListFiles(fileSvc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limitStr := c.Query("limit", "10")
		offsetStr := c.Query("offset", "0")
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := fileSvc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}
