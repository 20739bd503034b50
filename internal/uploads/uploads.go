// Package uploads implements anonymous share-code uploads and the
// authenticated per-user upload dashboard.
package uploads

import (
	"io"
	"strings"

	"codedrop/internal/models"
)

// PageSize is the number of records returned per dashboard page
const PageSize = 10

// Content is a binary object submitted alongside an upload
type Content struct {
	Reader      io.Reader
	Filename    string
	Size        int64
	ContentType string // declared media type, may be empty
}

// AnonymousUploadRequest is submitted under a previously issued share code
type AnonymousUploadRequest struct {
	Code string
	Text string
	File *Content
}

// UserUploadRequest is submitted by an authenticated user
type UserUploadRequest struct {
	Text string
	File *Content
}

// Page is one slice of a user's uploads, newest first
type Page struct {
	Uploads  []*models.Upload `json:"uploads"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	HasMore  bool             `json:"has_more"`
}

// textContent returns nil for text that is empty after trimming whitespace.
// Non-empty text is kept verbatim.
func textContent(text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return &text
}
