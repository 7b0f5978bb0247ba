package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"meeplehall/internal/models"
	"meeplehall/internal/repository"
	"meeplehall/internal/storage"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 10
	MasterMaxSize               = 2048
	WebPQuality                 = 75
	MasterSizeName              = "master"
)

// VariantSizes are the widths rendered for every upload, smallest first.
var VariantSizes = []int{256, 640, 1080}

type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

type ImageService struct {
	repo               repository.ImageRepository
	store              storage.Store
	maxUploadSizeBytes int64
}

func NewImageService(repo repository.ImageRepository, store storage.Store, maxUploadSizeMB int) *ImageService {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultImageMaxUploadSizeMB
	}
	return &ImageService{repo: repo, store: store, maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024}
}

// MaxUploadBytes is the largest accepted upload.
func (s *ImageService) MaxUploadBytes() int64 { return s.maxUploadSizeBytes }

// Upload validates, bounds, and re-encodes an image to webp with a fixed
// variant ladder. Identical bytes map to the same stored image.
func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (*models.Image, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detected := normalizeContentType(http.DetectContentType(in.Content))
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Invalid image type")
	}
	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	sourceMime := decodedFormatToMime(format)
	if sourceMime == "" {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMime) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	hash := ContentHash(in.Content)
	existing, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if existing != nil {
		return s.withURLs(existing), nil
	}

	master := resizeToFit(decoded, MasterMaxSize, MasterMaxSize)
	masterBytes, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var written []string
	put := func(key string, data []byte) error {
		if err := s.store.Put(ctx, key, data, "image/webp"); err != nil {
			return err
		}
		written = append(written, key)
		return nil
	}
	if err := put(ImageKey(hash, MasterSizeName), masterBytes); err != nil {
		return nil, models.NewInternalError(err)
	}

	mb := master.Bounds()
	record := &models.Image{
		Hash:      hash,
		OwnerID:   in.UserID,
		MimeType:  "image/webp",
		Width:     mb.Dx(),
		Height:    mb.Dy(),
		SizeBytes: int64(len(masterBytes)),
	}
	for _, size := range VariantSizes {
		v := resizeToFit(master, size, size)
		data, err := encodeWebP(v, WebPQuality)
		if err != nil {
			s.cleanup(written)
			return nil, models.NewInternalError(err)
		}
		key := ImageKey(hash, strconv.Itoa(size))
		if err := put(key, data); err != nil {
			s.cleanup(written)
			return nil, models.NewInternalError(err)
		}
		vb := v.Bounds()
		record.Variants = append(record.Variants, models.ImageVariant{SizePx: size, StorageKey: key, Width: vb.Dx(), Height: vb.Dy()})
	}

	if err := s.repo.Create(ctx, record); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeConflict {
			// Another request stored the same bytes first; its objects are identical to ours.
			if again, getErr := s.repo.GetByHash(ctx, hash); getErr == nil && again != nil {
				return s.withURLs(again), nil
			}
		}
		s.cleanup(written)
		return nil, models.NewInternalError(err)
	}
	return s.withURLs(record), nil
}

func (s *ImageService) cleanup(keys []string) {
	for _, k := range keys {
		_ = s.store.Delete(context.Background(), k)
	}
}

func (s *ImageService) GetByHash(ctx context.Context, hash string) (*models.Image, error) {
	if !IsValidImageHash(hash) {
		return nil, models.NewNotFoundError("Image", hash)
	}
	img, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if img == nil {
		return nil, models.NewNotFoundError("Image", hash)
	}
	return s.withURLs(img), nil
}

// Open returns the stored bytes of one rendition for serving, or the public
// URL to redirect to when the store serves objects directly.
func (s *ImageService) Open(ctx context.Context, hash, size string) (io.ReadCloser, string, error) {
	if !IsValidImageHash(hash) || !validSizeName(size) {
		return nil, "", models.NewNotFoundError("Image", hash)
	}
	key := ImageKey(hash, size)
	if url := s.store.PublicURL(key); url != "" {
		return nil, url, nil
	}
	rc, err := s.store.Open(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", models.NewNotFoundError("Image", hash)
	}
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	return rc, "", nil
}

func (s *ImageService) withURLs(img *models.Image) *models.Image {
	img.URL = s.url(img.Hash, MasterSizeName)
	for i := range img.Variants {
		img.Variants[i].URL = s.url(img.Hash, strconv.Itoa(img.Variants[i].SizePx))
	}
	return img
}

func (s *ImageService) url(hash, size string) string {
	if u := s.store.PublicURL(ImageKey(hash, size)); u != "" {
		return u
	}
	return "/media/i/" + hash + "/" + size + ".webp"
}

// ImageKey is the storage key of one rendition.
func ImageKey(hash, size string) string {
	return "images/" + hash + "/" + size + ".webp"
}

// ContentHash is the hex sha256 of the uploaded bytes.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func IsValidImageHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	for _, r := range hash {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

func validSizeName(size string) bool {
	if size == MasterSizeName {
		return true
	}
	for _, v := range VariantSizes {
		if strconv.Itoa(v) == size {
			return true
		}
	}
	return false
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}
	scale := float64(maxWidth) / float64(w)
	if sh := float64(maxHeight) / float64(h); sh < scale {
		scale = sh
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
