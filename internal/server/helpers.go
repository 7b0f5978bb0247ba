package server

import (
	"strings"
	"unicode"

	"meeplehall/internal/models"
	"meeplehall/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPageSize = 10
	maxPageSize     = 50
	// maxOffset bounds deep paging so page*size cannot overflow.
	maxOffset = 1_000_000
)

// parsePagination reads either page/pageSize (1-based) or limit/offset.
// page/pageSize wins when both are present.
func parsePagination(c *fiber.Ctx) Pagination {
	if c.Query("page") != "" || c.Query("pageSize") != "" {
		size := clampPageSize(c.QueryInt("pageSize", defaultPageSize))
		page := c.QueryInt("page", 1)
		if page < 1 {
			page = 1
		}
		if page > maxOffset/size+1 {
			page = maxOffset/size + 1
		}
		return Pagination{Limit: size, Offset: (page - 1) * size}
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	if offset > maxOffset {
		offset = maxOffset
	}
	return Pagination{
		Limit:  clampPageSize(c.QueryInt("limit", defaultPageSize)),
		Offset: offset,
	}
}

func clampPageSize(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 envelope; callers check `if !ok { return nil }`.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "itemId" -> "Invalid item ID").
func parseID(c *fiber.Ctx, param string) (uint, bool) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, false
	}
	return uint(id), true
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// bindJSON parses the request body into v and runs its validate tags.
func bindJSON(c *fiber.Ctx, v any) error {
	if err := parseBody(c, v); err != nil {
		return err
	}
	return validation.Struct(v)
}

// parseBody parses the request body for inputs the service layer validates
// after applying its own defaults.
func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// currentUserID returns the id stored by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

func bearerToken(c *fiber.Ctx) string {
	scheme, token, ok := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// optionalUserID resolves the caller from a Bearer token without enforcing it.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	if id := currentUserID(c); id != 0 {
		return id
	}
	token := bearerToken(c)
	if token == "" {
		return 0
	}
	claims, err := s.authService.ParseAccessToken(token)
	if err != nil {
		return 0
	}
	if revoked, err := s.authService.IsRevoked(c.UserContext(), claims.JTI); err != nil || revoked {
		return 0
	}
	return claims.UserID
}
