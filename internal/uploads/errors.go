package uploads

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrFileTooLarge  = fmt.Errorf("%w: file exceeds maximum allowed size", ErrValidation)
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrStorage       = errors.New("object storage failure")
	ErrPersistence   = errors.New("record store failure")
	ErrNotFound      = errors.New("invalid code or file not found")
	ErrForbidden     = errors.New("upload belongs to another user")
	ErrCodeInUse     = errors.New("code is already in use")
)

// QuotaError carries the figures behind a quota rejection
type QuotaError struct {
	Used     int64
	Incoming int64
	Limit    int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded: %s used, %s requested, limit %s",
		humanize.IBytes(uint64(e.Used)),
		humanize.IBytes(uint64(e.Incoming)),
		humanize.IBytes(uint64(e.Limit)))
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}
