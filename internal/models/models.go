package models

import (
	"time"

	"github.com/google/uuid"
)

// UploadType classifies the content of an upload
type UploadType string

const (
	UploadTypeFile  UploadType = "file"
	UploadTypeImage UploadType = "image"
	UploadTypeText  UploadType = "text"
)

// Upload is a shared file and/or text, owned by a user or reachable through a share code.
type Upload struct {
	ID     uuid.UUID  `db:"id" json:"id"`
	UserID *uuid.UUID `db:"user_id" json:"user_id"` // nil for anonymous uploads

	Type         UploadType `db:"type" json:"type"`
	Filename     *string    `db:"filename" json:"filename"`           // Original name of the attached file
	URL          *string    `db:"url" json:"url"`                     // Public URL of the attached file
	TextContent  *string    `db:"text_content" json:"text_content"`   // Shared text, if any
	ThumbnailURL *string    `db:"thumbnail_url" json:"thumbnail_url"` // Same as URL for images

	Code      *string    `db:"code" json:"code"`             // 8-digit share code, anonymous only
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at"` // Anonymous only
	CreatedAt time.Time  `db:"created_at" json:"created_at"`

	ObjectKey *string `db:"object_key" json:"-"`        // Key in the object store
	FileSize  int64   `db:"file_size" json:"file_size"` // Bytes of the attached file, 0 for text
	MimeType  *string `db:"mime_type" json:"mime_type,omitempty"`
}

// IsAnonymous reports whether the upload has no owning user
func (u *Upload) IsAnonymous() bool {
	return u.UserID == nil
}

// Expired reports whether an anonymous upload is past its expiry at the given instant.
// Uploads without expiry never expire.
func (u *Upload) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && !u.ExpiresAt.After(now)
}

// User represents a registered account
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DashboardStats summarizes a user's uploads and storage usage
type DashboardStats struct {
	TotalUploads int64 `json:"total_uploads" db:"total_uploads"`
	TotalFiles   int64 `json:"total_files" db:"total_files"`
	TotalImages  int64 `json:"total_images" db:"total_images"`
	TotalTexts   int64 `json:"total_texts" db:"total_texts"`
	StorageUsed  int64 `json:"storage_used" db:"storage_used"`
	StorageQuota int64 `json:"storage_quota" db:"-"`

	StorageUsedHuman  string  `json:"storage_used_human" db:"-"`
	StorageQuotaHuman string  `json:"storage_quota_human" db:"-"`
	QuotaPercent      float64 `json:"quota_percent" db:"-"`

	Recent []*Upload `json:"recent" db:"-"`
}
