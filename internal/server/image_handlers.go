package server

import (
	"io"
	"strings"

	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadImage handles POST /api/images
// @Summary Upload an image
// @Description Accepts JPEG, PNG, GIF or WebP in the multipart field "file". Identical uploads share one stored image.
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 201 {object} models.ApiResponse[models.Image]
// @Failure 400 {object} models.ApiResponse[any]
// @Failure 413 {object} models.ApiResponse[any]
// @Router /images [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded", "file is required"))
	}
	if file.Size > s.imageService.MaxUploadBytes() {
		return models.RespondWithError(c, fiber.StatusRequestEntityTooLarge, models.NewValidationError("Image is too large"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(io.LimitReader(src, s.imageService.MaxUploadBytes()+1))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	img, err := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      currentUserID(c),
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, img)
}

// GetImage handles GET /api/images/:hash
// @Summary Image metadata and rendition URLs
// @Tags images
// @Produce json
// @Param hash path string true "Content hash"
// @Success 200 {object} models.ApiResponse[models.Image]
// @Failure 404 {object} models.ApiResponse[any]
// @Router /images/{hash} [get]
func (s *Server) GetImage(c *fiber.Ctx) error {
	img, err := s.imageService.GetByHash(c.UserContext(), strings.TrimSpace(c.Params("hash")))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, img)
}

// ServeImage handles GET /media/i/:hash/:size.webp
func (s *Server) ServeImage(c *fiber.Ctx) error {
	rc, url, err := s.imageService.Open(c.UserContext(), strings.TrimSpace(c.Params("hash")), c.Params("size"))
	if err != nil {
		return models.HandleError(c, err)
	}
	if url != "" {
		return c.Redirect(url, fiber.StatusFound)
	}
	defer func() { _ = rc.Close() }()

	body, err := io.ReadAll(rc)
	if err != nil {
		return models.HandleError(c, models.NewInternalError(err))
	}
	// Renditions are addressed by content hash and never change.
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	c.Set(fiber.HeaderContentType, "image/webp")
	return c.Send(body)
}
