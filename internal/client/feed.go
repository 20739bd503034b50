package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"codedrop/internal/models"
)

// ErrBusy is returned when a feed action is invoked while a load is in flight
var ErrBusy = errors.New("a load is already in progress")

// Lister is the subset of the client a Feed needs
type Lister interface {
	ListUploads(ctx context.Context, page int) (*Page, error)
	DeleteUpload(ctx context.Context, id uuid.UUID) error
}

// Feed is the state of one dashboard view: loaded items, the last loaded
// page and whether more pages exist. Only one load runs at a time.
type Feed struct {
	lister Lister

	mu      sync.Mutex
	items   []*models.Upload
	page    int
	hasMore bool
	loading bool
}

func NewFeed(lister Lister) *Feed {
	return &Feed{
		lister: lister,
		page:   -1,
	}
}

// Refresh loads page 0 and replaces the items
func (f *Feed) Refresh(ctx context.Context) error {
	return f.load(ctx, 0, true)
}

// LoadMore appends the next page. It is a no-op once the last page is loaded.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if !f.loading && f.page >= 0 && !f.hasMore {
		f.mu.Unlock()
		return nil
	}
	next := f.page + 1
	f.mu.Unlock()

	return f.load(ctx, next, next == 0)
}

func (f *Feed) load(ctx context.Context, page int, replace bool) error {
	if !f.begin() {
		return ErrBusy
	}
	defer f.end()

	result, err := f.lister.ListUploads(ctx, page)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if replace {
		f.items = result.Uploads
	} else {
		// Offset paging can repeat a record when uploads arrive between pages
		f.items = lo.UniqBy(append(f.items, result.Uploads...), func(u *models.Upload) uuid.UUID {
			return u.ID
		})
	}
	f.page = page
	f.hasMore = result.HasMore
	return nil
}

// Remove deletes an upload on the server and drops it from the items
func (f *Feed) Remove(ctx context.Context, id uuid.UUID) error {
	if !f.begin() {
		return ErrBusy
	}
	defer f.end()

	if err := f.lister.DeleteUpload(ctx, id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = lo.Filter(f.items, func(u *models.Upload, _ int) bool {
		return u.ID != id
	})
	return nil
}

// Items returns a copy of the loaded uploads, newest first
func (f *Feed) Items() []*models.Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Upload(nil), f.items...)
}

// HasMore reports whether another page can be loaded
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page < 0 || f.hasMore
}

// Loading reports whether a load or removal is in flight
func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *Feed) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loading {
		return false
	}
	f.loading = true
	return true
}

func (f *Feed) end() {
	f.mu.Lock()
	f.loading = false
	f.mu.Unlock()
}
