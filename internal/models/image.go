package models

import "time"

// Image is an uploaded picture, content-addressed by the sha256 of the original bytes.
type Image struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Hash      string         `gorm:"not null;size:64;uniqueIndex" json:"hash"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	MimeType  string         `gorm:"size:50" json:"mime_type"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	SizeBytes int64          `json:"size_bytes"`
	Variants  []ImageVariant `gorm:"foreignKey:ImageID" json:"variants"`
	URL       string         `gorm:"-" json:"url"`
	CreatedAt time.Time      `json:"created_at"`
}

// ImageVariant is one resized webp rendition of an Image.
type ImageVariant struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ImageID    uint   `gorm:"not null;uniqueIndex:idx_image_variant_size" json:"image_id"`
	SizePx     int    `gorm:"not null;uniqueIndex:idx_image_variant_size" json:"size_px"`
	StorageKey string `gorm:"not null" json:"storage_key"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	URL        string `gorm:"-" json:"url"`
}
