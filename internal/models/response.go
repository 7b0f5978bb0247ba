package models

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ApiResponse is the envelope every JSON endpoint answers with.
type ApiResponse[T any] struct {
	Success    bool     `json:"success"`
	Data       T        `json:"data"`
	Message    string   `json:"message,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	StatusCode int      `json:"statusCode"`
}

// Page is a slice of results with its pagination window.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	HasMore  bool  `json:"has_more"`
}

// NewPage builds a Page from the window and total count.
func NewPage[T any](items []T, limit, offset int, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	page := 1
	if limit > 0 {
		page = offset/limit + 1
	}
	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: limit,
		Total:    total,
		HasMore:  int64(offset+len(items)) < total,
	}
}

// Respond writes a successful envelope with the given status.
func Respond[T any](c *fiber.Ctx, status int, data T, message ...string) error {
	resp := ApiResponse[T]{
		Success:    true,
		Data:       data,
		StatusCode: status,
	}
	if len(message) > 0 {
		resp.Message = message[0]
	}
	return c.Status(status).JSON(resp)
}

// RespondOK writes a 200 envelope.
func RespondOK[T any](c *fiber.Ctx, data T) error {
	return Respond(c, fiber.StatusOK, data)
}

// RespondWithError creates a standardized error envelope with an explicit status.
// Internal error details are never echoed to the client.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	resp := ApiResponse[any]{
		Success:    false,
		StatusCode: status,
	}

	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		resp.Message = appErr.Message
		resp.Errors = appErr.Fields
		if appErr.Code != CodeInternal {
			resp.Errors = append([]string{appErr.Code}, resp.Errors...)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		resp.Message = "Resource not found"
		resp.Errors = []string{CodeNotFound}
	case status >= fiber.StatusInternalServerError:
		resp.Message = "Internal server error"
	default:
		resp.Message = err.Error()
	}

	return c.Status(status).JSON(resp)
}

// HandleError maps err to its status code and writes the error envelope.
func HandleError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, StatusForError(err), err)
}
