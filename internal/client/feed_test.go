package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codedrop/internal/models"
)

type pagedLister struct {
	records []*models.Upload
	calls   []int
	deleted []uuid.UUID
	block   chan struct{}
	err     error
}

func (l *pagedLister) ListUploads(ctx context.Context, page int) (*Page, error) {
	l.calls = append(l.calls, page)
	if l.block != nil {
		<-l.block
	}
	if l.err != nil {
		return nil, l.err
	}

	start := page * 10
	if start > len(l.records) {
		start = len(l.records)
	}
	end := start + 10
	if end > len(l.records) {
		end = len(l.records)
	}
	items := l.records[start:end]
	return &Page{Uploads: items, Page: page, PageSize: 10, HasMore: len(items) == 10}, nil
}

func (l *pagedLister) DeleteUpload(ctx context.Context, id uuid.UUID) error {
	if l.err != nil {
		return l.err
	}
	l.deleted = append(l.deleted, id)
	return nil
}

func records(n int) []*models.Upload {
	out := make([]*models.Upload, n)
	for i := range out {
		out[i] = &models.Upload{ID: uuid.New(), Type: models.UploadTypeText}
	}
	return out
}

func TestFeed_Paging(t *testing.T) {
	lister := &pagedLister{records: records(23)}
	feed := NewFeed(lister)
	ctx := context.Background()

	assert.True(t, feed.HasMore())

	require.NoError(t, feed.Refresh(ctx))
	assert.Len(t, feed.Items(), 10)
	assert.True(t, feed.HasMore())

	require.NoError(t, feed.LoadMore(ctx))
	require.NoError(t, feed.LoadMore(ctx))
	assert.Len(t, feed.Items(), 23)
	assert.False(t, feed.HasMore())

	// No request once the last page is loaded
	require.NoError(t, feed.LoadMore(ctx))
	assert.Equal(t, []int{0, 1, 2}, lister.calls)

	require.NoError(t, feed.Refresh(ctx))
	assert.Len(t, feed.Items(), 10)
	assert.True(t, feed.HasMore())
}

func TestFeed_LoadMoreBeforeRefresh(t *testing.T) {
	lister := &pagedLister{records: records(3)}
	feed := NewFeed(lister)

	require.NoError(t, feed.LoadMore(context.Background()))
	assert.Equal(t, []int{0}, lister.calls)
	assert.Len(t, feed.Items(), 3)
	assert.False(t, feed.HasMore())
}

func TestFeed_ExactPageBoundary(t *testing.T) {
	lister := &pagedLister{records: records(10)}
	feed := NewFeed(lister)
	ctx := context.Background()

	require.NoError(t, feed.Refresh(ctx))
	assert.True(t, feed.HasMore())

	require.NoError(t, feed.LoadMore(ctx))
	assert.Len(t, feed.Items(), 10)
	assert.False(t, feed.HasMore())
}

func TestFeed_DeduplicatesShiftedPages(t *testing.T) {
	lister := &pagedLister{records: records(15)}
	feed := NewFeed(lister)
	ctx := context.Background()

	require.NoError(t, feed.Refresh(ctx))
	// A new upload shifts every record down by one
	lister.records = append(records(1), lister.records...)
	require.NoError(t, feed.LoadMore(ctx))

	assert.Len(t, feed.Items(), 15)
}

func TestFeed_Busy(t *testing.T) {
	lister := &pagedLister{records: records(5), block: make(chan struct{})}
	feed := NewFeed(lister)
	ctx := context.Background()

	done := make(chan error)
	go func() { done <- feed.Refresh(ctx) }()

	require.Eventually(t, feed.Loading, time.Second, time.Millisecond)
	assert.ErrorIs(t, feed.LoadMore(ctx), ErrBusy)
	assert.ErrorIs(t, feed.Refresh(ctx), ErrBusy)
	assert.ErrorIs(t, feed.Remove(ctx, uuid.New()), ErrBusy)

	close(lister.block)
	require.NoError(t, <-done)
	assert.False(t, feed.Loading())
	assert.Len(t, feed.Items(), 5)
}

func TestFeed_Remove(t *testing.T) {
	lister := &pagedLister{records: records(3)}
	feed := NewFeed(lister)
	ctx := context.Background()
	require.NoError(t, feed.Refresh(ctx))

	target := feed.Items()[1].ID
	require.NoError(t, feed.Remove(ctx, target))
	assert.Equal(t, []uuid.UUID{target}, lister.deleted)
	assert.Len(t, feed.Items(), 2)
	for _, u := range feed.Items() {
		assert.NotEqual(t, target, u.ID)
	}
}

func TestFeed_ErrorKeepsState(t *testing.T) {
	lister := &pagedLister{records: records(12)}
	feed := NewFeed(lister)
	ctx := context.Background()
	require.NoError(t, feed.Refresh(ctx))

	lister.err = errors.New("offline")
	assert.Error(t, feed.LoadMore(ctx))
	assert.Error(t, feed.Remove(ctx, feed.Items()[0].ID))
	assert.Len(t, feed.Items(), 10)
	assert.True(t, feed.HasMore())
	assert.False(t, feed.Loading())
}
