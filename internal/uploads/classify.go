package uploads

import (
	"bytes"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"codedrop/internal/models"
)

const sniffLen = 3072

// detectContentType returns the media type of the content together with a
// reader yielding the full, unconsumed body. The declared type wins unless it
// is empty or the generic octet-stream, in which case the head is sniffed.
func detectContentType(c *Content) (string, io.Reader, error) {
	declared := strings.TrimSpace(c.ContentType)
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared, c.Reader, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(c.Reader, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, err
	}
	head = head[:n]

	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), c.Reader), nil
}

// classify maps a media type to an upload type
func classify(contentType string) models.UploadType {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return models.UploadTypeImage
	}
	return models.UploadTypeFile
}

// anonymousKey stores anonymous objects under the share code
func anonymousKey(code, filename string) string {
	return "anonymous/" + code + extension(filename)
}

// userKey stores user objects under the owner id and upload instant. The
// upload id prefix keeps keys of same-millisecond uploads apart.
func userKey(userID string, unixMillis int64, uploadID string, filename string) string {
	return userID + "/" + strconv.FormatInt(unixMillis, 10) + "-" + uploadID[:8] + extension(filename)
}

func extension(filename string) string {
	ext := filepath.Ext(filepath.Base(filename))
	if ext == "." || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
