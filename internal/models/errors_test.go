package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Post", 1), fiber.StatusNotFound},
		{"validation", NewValidationError("bad"), fiber.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{"forbidden", NewForbiddenError("no"), fiber.StatusForbidden},
		{"conflict", NewConflictError("dup"), fiber.StatusConflict},
		{"busy", NewBusyError("wait"), fiber.StatusConflict},
		{"internal", NewInternalError(errors.New("x")), fiber.StatusInternalServerError},
		{"wrapped app error", fmt.Errorf("svc: %w", NewForbiddenError("no")), fiber.StatusForbidden},
		{"gorm not found", fmt.Errorf("repo: %w", gorm.ErrRecordNotFound), fiber.StatusNotFound},
		{"fiber error", fiber.NewError(fiber.StatusRequestEntityTooLarge, "big"), fiber.StatusRequestEntityTooLarge},
		{"plain", errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInternalError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Internal server error: disk full", err.Error())
}

func envelope(t *testing.T, handler fiber.Handler) (int, ApiResponse[json.RawMessage]) {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out ApiResponse[json.RawMessage]
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestHandleError_Envelope(t *testing.T) {
	status, out := envelope(t, func(c *fiber.Ctx) error {
		return HandleError(c, NewValidationError("Validation failed", "title is required", "price_cents must be greater than 0"))
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, out.Success)
	assert.Equal(t, fiber.StatusBadRequest, out.StatusCode)
	assert.Equal(t, "Validation failed", out.Message)
	assert.Equal(t, []string{CodeValidation, "title is required", "price_cents must be greater than 0"}, out.Errors)
}

func TestHandleError_HidesInternalDetails(t *testing.T) {
	status, out := envelope(t, func(c *fiber.Ctx) error {
		return HandleError(c, errors.New("pq: password authentication failed"))
	})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", out.Message)
	assert.Empty(t, out.Errors)
}

func TestRespond_Envelope(t *testing.T) {
	status, out := envelope(t, func(c *fiber.Ctx) error {
		return Respond(c, fiber.StatusCreated, LikeState{ItemType: LikeItemPost, ItemID: 3, Liked: true, LikesCount: 1}, "Liked")
	})
	assert.Equal(t, fiber.StatusCreated, status)
	assert.True(t, out.Success)
	assert.Equal(t, "Liked", out.Message)
	assert.JSONEq(t, `{"item_type":"post","item_id":3,"liked":true,"likes_count":1}`, string(out.Data))
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2}, 2, 4, 7)
	assert.Equal(t, 3, p.Page)
	assert.True(t, p.HasMore)

	last := NewPage([]int{7}, 2, 6, 7)
	assert.False(t, last.HasMore)

	empty := NewPage[int](nil, 10, 0, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 1, empty.Page)
}

func TestLikeItemTypeAndCondition(t *testing.T) {
	assert.True(t, LikeItemTradeItem.Valid())
	assert.False(t, LikeItemType("game").Valid())
	assert.True(t, ValidCondition(ConditionLikeNew))
	assert.False(t, ValidCondition("mint"))
}
