package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"itemId", "item ID"},
		{"tradeItemId", "trade item ID"},
		{"conversationId", "conversation ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func paginationApp() *fiber.App {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})
	return app
}

func TestParsePagination(t *testing.T) {
	app := paginationApp()
	tests := []struct {
		name   string
		query  string
		limit  int
		offset int
	}{
		{"defaults", "", 10, 0},
		{"page and size", "?page=3&pageSize=20", 20, 40},
		{"page size is capped", "?page=1&pageSize=500", 50, 0},
		{"page below one", "?page=0&pageSize=5", 5, 0},
		{"limit and offset", "?limit=25&offset=75", 25, 75},
		{"negative offset", "?limit=5&offset=-3", 5, 0},
		{"zero limit falls back", "?limit=0", 10, 0},
		{"page wins over limit", "?page=2&limit=30", 10, 10},
		{"huge page is capped", "?page=9223372036854775807&pageSize=10", 10, maxOffset},
		{"huge page with odd size", "?page=4611686018427387904&pageSize=7", 7, (maxOffset / 7) * 7},
		{"huge offset is capped", "?limit=5&offset=9223372036854775807", 5, maxOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			var got struct {
				Limit  int `json:"limit"`
				Offset int `json:"offset"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tt.limit, got.Limit)
			assert.Equal(t, tt.offset, got.Offset)
		})
	}
}

func TestParseIDWritesEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/things/:thingId", func(c *fiber.Ctx) error {
		id, ok := parseID(c, "thingId")
		if !ok {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/things/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid thing ID", env.Message)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/things/0", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/things/42", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(bearerToken(c)) })

	cases := map[string]string{
		"Bearer abc.def":  "abc.def",
		"bearer  xyz ":    "xyz",
		"Basic dXNlcjpw":  "",
		"":                "",
		"BearerWithSpace": "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := make([]byte, 64)
		n, _ := resp.Body.Read(buf)
		assert.Equal(t, want, string(buf[:n]), "header %q", header)
	}
}
