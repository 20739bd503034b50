package uploads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"codedrop/internal/models"
	"codedrop/internal/storage"
)

type memoryRepository struct {
	mu        sync.Mutex
	uploads   map[uuid.UUID]*models.Upload
	createErr error
	deleteErr error
	failIDs   map[uuid.UUID]bool // Delete fails for these ids
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{uploads: make(map[uuid.UUID]*models.Upload)}
}

func (m *memoryRepository) Create(ctx context.Context, upload *models.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	clone := *upload
	m.uploads[upload.ID] = &clone
	return nil
}

func (m *memoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upload, ok := m.uploads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return upload, nil
}

func (m *memoryRepository) GetByObjectKey(ctx context.Context, key string) (*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, upload := range m.uploads {
		if upload.ObjectKey != nil && *upload.ObjectKey == key {
			return upload, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepository) GetActiveByCode(ctx context.Context, code string, now time.Time) (*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Upload
	for _, upload := range m.uploads {
		if upload.Code == nil || *upload.Code != code || upload.ExpiresAt == nil || !upload.ExpiresAt.After(now) {
			continue
		}
		if found == nil || upload.CreatedAt.After(found.CreatedAt) {
			found = upload
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *memoryRepository) sortedForUser(userID uuid.UUID) []*models.Upload {
	var out []*models.Upload
	for _, upload := range m.uploads {
		if upload.UserID != nil && *upload.UserID == userID {
			out = append(out, upload)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *memoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedForUser(userID)
	if offset >= len(all) {
		return []*models.Upload{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memoryRepository) SumFileSize(ctx context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, upload := range m.sortedForUser(userID) {
		sum += upload.FileSize
	}
	return sum, nil
}

func (m *memoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if m.failIDs[id] {
		return errBoom
	}
	if _, ok := m.uploads[id]; !ok {
		return ErrNotFound
	}
	delete(m.uploads, id)
	return nil
}

func (m *memoryRepository) ListExpiredAnonymous(ctx context.Context, now time.Time, after *ExpiryCursor, limit int) ([]*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Upload
	for _, upload := range m.uploads {
		if upload.UserID == nil && upload.Expired(now) {
			out = append(out, upload)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return expiryBefore(out[i].ExpiresAt, out[i].ID, *out[j].ExpiresAt, out[j].ID)
	})
	if after != nil {
		start := 0
		for start < len(out) && !expiryBefore(&after.ExpiresAt, after.ID, *out[start].ExpiresAt, out[start].ID) {
			start++
		}
		out = out[start:]
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// expiryBefore orders by expiry, then id, like the purge query
func expiryBefore(a *time.Time, aID uuid.UUID, b time.Time, bID uuid.UUID) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return bytes.Compare(aID[:], bID[:]) < 0
}

type memoryObject struct {
	data        []byte
	contentType string
}

type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string]memoryObject
	uploadErr error
	deleteErr error
	uploads   int
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string]memoryObject)}
}

func (m *memoryStorage) Upload(ctx context.Context, r io.Reader, key, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.uploadErr != nil {
		return m.uploadErr
	}
	if _, ok := m.objects[key]; ok {
		return storage.ErrExists
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) GetURL(key string) string {
	return "http://localhost/f/" + key
}

func (m *memoryStorage) Stream(ctx context.Context, key string, w http.ResponseWriter) error {
	m.mu.Lock()
	obj, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}
	w.Header().Set("Content-Type", obj.contentType)
	_, err := io.Copy(w, bytes.NewReader(obj.data))
	return err
}

func (m *memoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryStorage) Close() error {
	return nil
}

func (m *memoryStorage) has(key string) bool {
	ok, _ := m.Exists(context.Background(), key)
	return ok
}

var errBoom = errors.New("boom")

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
