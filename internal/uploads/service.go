package uploads

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"codedrop/internal/config"
	"codedrop/internal/metrics"
	"codedrop/internal/models"
	"codedrop/internal/sharecode"
	"codedrop/internal/storage"
	"codedrop/internal/validation"
)

type Service interface {
	// NewCode issues a fresh share code for an anonymous upload
	NewCode() (string, error)
	CreateAnonymous(ctx context.Context, req AnonymousUploadRequest) (*models.Upload, error)
	CreateForUser(ctx context.Context, userID uuid.UUID, req UserUploadRequest) (*models.Upload, error)
	Resolve(ctx context.Context, code string) (*models.Upload, error)
	ListUserUploads(ctx context.Context, userID uuid.UUID, page int) (*Page, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	StreamObject(ctx context.Context, key string, w http.ResponseWriter) error
	PurgeExpired(ctx context.Context) (int, error)
}

type service struct {
	repo      Repository
	storage   storage.Provider
	codes     *sharecode.Generator
	maxSize   int64
	quota     int64
	expiresIn time.Duration
	batchSize int
	now       func() time.Time
}

func NewService(repo Repository, provider storage.Provider, cfg *config.Config) *service {
	return &service{
		repo:      repo,
		storage:   provider,
		codes:     sharecode.NewGenerator(),
		maxSize:   cfg.UploadMaxSize,
		quota:     cfg.StorageQuota,
		expiresIn: cfg.AnonymousExpiresIn,
		batchSize: 500,
		now:       time.Now,
	}
}

func (s *service) NewCode() (string, error) {
	return s.codes.Generate()
}

func (s *service) CreateAnonymous(ctx context.Context, req AnonymousUploadRequest) (*models.Upload, error) {
	if err := validation.ValidateShareCode(req.Code); err != nil {
		msg := "code is required"
		if formatted := validation.FormatError(err); len(formatted) > 0 && req.Code != "" {
			msg = formatted[0].Error
		}
		return nil, fmt.Errorf("%w: %s", ErrValidation, msg)
	}

	text := textContent(req.Text)
	if req.File == nil && text == nil {
		return nil, fmt.Errorf("%w: file or text is required", ErrValidation)
	}
	if err := s.checkSize(req.File); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.expiresIn)
	code := req.Code
	upload := &models.Upload{
		ID:          uuid.New(),
		Type:        models.UploadTypeText,
		TextContent: text,
		Code:        &code,
		ExpiresAt:   &expiresAt,
		CreatedAt:   now,
	}

	if req.File != nil {
		key := anonymousKey(code, req.File.Filename)
		if err := s.claimAnonymousKey(ctx, key); err != nil {
			return nil, err
		}
		if err := s.attach(ctx, upload, req.File, key); err != nil {
			if errors.Is(err, storage.ErrExists) {
				return nil, ErrCodeInUse
			}
			return nil, err
		}
	}

	if err := s.persist(ctx, upload); err != nil {
		return nil, err
	}

	metrics.UploadsCreated.WithLabelValues("anonymous", string(upload.Type)).Inc()
	log.Info().
		Str("code", code).
		Str("type", string(upload.Type)).
		Time("expires_at", expiresAt).
		Msg("anonymous upload stored")

	return upload, nil
}

func (s *service) CreateForUser(ctx context.Context, userID uuid.UUID, req UserUploadRequest) (*models.Upload, error) {
	text := textContent(req.Text)
	if req.File == nil && text == nil {
		return nil, fmt.Errorf("%w: file or text is required", ErrValidation)
	}
	if err := s.checkSize(req.File); err != nil {
		return nil, err
	}

	if req.File != nil {
		if err := s.checkQuota(ctx, userID, req.File.Size); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	owner := userID
	upload := &models.Upload{
		ID:          uuid.New(),
		UserID:      &owner,
		Type:        models.UploadTypeText,
		TextContent: text,
		CreatedAt:   now,
	}

	if req.File != nil {
		key := userKey(userID.String(), now.UnixMilli(), upload.ID.String(), req.File.Filename)
		if err := s.attach(ctx, upload, req.File, key); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, upload); err != nil {
		return nil, err
	}

	metrics.UploadsCreated.WithLabelValues("user", string(upload.Type)).Inc()
	log.Info().
		Str("user_id", userID.String()).
		Str("upload_id", upload.ID.String()).
		Str("type", string(upload.Type)).
		Int64("size", upload.FileSize).
		Msg("user upload stored")

	return upload, nil
}

// claimAnonymousKey makes sure key holds no live share. An object left by an
// expired record is removed together with that record. An object without a
// record may belong to an upload still in progress and is left alone.
func (s *service) claimAnonymousKey(ctx context.Context, key string) error {
	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !exists {
		return nil
	}

	previous, err := s.repo.GetByObjectKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return ErrCodeInUse
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !previous.Expired(s.now()) {
		return ErrCodeInUse
	}

	s.removeObject(ctx, previous)
	if err := s.repo.Delete(ctx, previous.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	log.Info().
		Str("key", key).
		Str("upload_id", previous.ID.String()).
		Msg("reclaimed key of expired anonymous upload")
	return nil
}

func (s *service) checkSize(c *Content) error {
	if c == nil {
		return nil
	}
	if c.Size > s.maxSize {
		return fmt.Errorf("%w (max %d bytes)", ErrFileTooLarge, s.maxSize)
	}
	return nil
}

// checkQuota rejects an upload when used + incoming exceeds the quota.
// Landing exactly on the quota is accepted.
func (s *service) checkQuota(ctx context.Context, userID uuid.UUID, incoming int64) error {
	used, err := s.repo.SumFileSize(ctx, userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Msg("failed to compute storage usage")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if used+incoming > s.quota {
		metrics.QuotaRejections.Inc()
		log.Warn().
			Str("user_id", userID.String()).
			Int64("used", used).
			Int64("incoming", incoming).
			Int64("quota", s.quota).
			Msg("upload rejected by storage quota")
		return &QuotaError{Used: used, Incoming: incoming, Limit: s.quota}
	}
	return nil
}

// attach writes the object and fills the file fields of upload
func (s *service) attach(ctx context.Context, upload *models.Upload, c *Content, key string) error {
	contentType, body, err := detectContentType(c)
	if err != nil {
		return fmt.Errorf("%w: reading file: %v", ErrStorage, err)
	}

	if err := s.storage.Upload(ctx, body, key, contentType); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("failed to write object")
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	url := s.storage.GetURL(key)
	filename := c.Filename
	upload.Type = classify(contentType)
	upload.Filename = &filename
	upload.URL = &url
	upload.ObjectKey = &key
	upload.FileSize = c.Size
	upload.MimeType = &contentType
	if upload.Type == models.UploadTypeImage {
		upload.ThumbnailURL = &url
	}

	owner := "anonymous"
	if upload.UserID != nil {
		owner = "user"
	}
	metrics.UploadBytes.WithLabelValues(owner).Add(float64(c.Size))
	return nil
}

// persist inserts the record and removes the already written object when the
// insert fails
func (s *service) persist(ctx context.Context, upload *models.Upload) error {
	err := s.repo.Create(ctx, upload)
	if err == nil {
		return nil
	}

	log.Error().
		Err(err).
		Str("upload_id", upload.ID.String()).
		Msg("failed to insert upload record")

	if upload.ObjectKey != nil {
		if delErr := s.storage.Delete(ctx, *upload.ObjectKey); delErr != nil {
			log.Warn().
				Err(delErr).
				Str("key", *upload.ObjectKey).
				Msg("failed to remove orphaned object")
		}
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func (s *service) Resolve(ctx context.Context, code string) (*models.Upload, error) {
	code = strings.TrimSpace(code)
	if !sharecode.Valid(code) {
		metrics.CodeLookups.WithLabelValues("miss").Inc()
		return nil, ErrNotFound
	}

	upload, err := s.repo.GetActiveByCode(ctx, code, s.now())
	if errors.Is(err, ErrNotFound) {
		metrics.CodeLookups.WithLabelValues("miss").Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("code", code).
			Msg("failed to resolve share code")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	metrics.CodeLookups.WithLabelValues("hit").Inc()
	return upload, nil
}

func (s *service) ListUserUploads(ctx context.Context, userID uuid.UUID, page int) (*Page, error) {
	if page < 0 {
		return nil, fmt.Errorf("%w: page must not be negative", ErrValidation)
	}

	uploads, err := s.repo.ListByUser(ctx, userID, PageSize, page*PageSize)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Int("page", page).
			Msg("failed to list uploads")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return &Page{
		Uploads:  uploads,
		Page:     page,
		PageSize: PageSize,
		HasMore:  len(uploads) == PageSize,
	}, nil
}

func (s *service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	upload, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if upload.UserID == nil || *upload.UserID != userID {
		return ErrForbidden
	}

	s.removeObject(ctx, upload)

	if err := s.repo.Delete(ctx, id); err != nil {
		log.Error().
			Err(err).
			Str("upload_id", id.String()).
			Msg("failed to delete upload record")
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	metrics.UploadsDeleted.Inc()
	return nil
}

// removeObject deletes the upload's object; failures are logged only
func (s *service) removeObject(ctx context.Context, upload *models.Upload) {
	if upload.ObjectKey == nil {
		return
	}
	err := s.storage.Delete(ctx, *upload.ObjectKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Warn().
			Err(err).
			Str("key", *upload.ObjectKey).
			Msg("failed to delete object, removing record anyway")
	}
}

// StreamObject serves an object that belongs to a live record. Objects of
// expired anonymous uploads are reported as not found.
func (s *service) StreamObject(ctx context.Context, key string, w http.ResponseWriter) error {
	key, err := storage.CleanKey(key)
	if err != nil {
		return ErrNotFound
	}

	upload, err := s.repo.GetByObjectKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if upload.Expired(s.now()) {
		return ErrNotFound
	}

	setObjectHeaders(w.Header(), upload)
	if err := s.storage.Stream(ctx, key, w); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// setObjectHeaders keeps uploaded content from running as a page on this
// origin. Only raster images are displayed inline.
func setObjectHeaders(h http.Header, upload *models.Upload) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "sandbox")

	if inlineSafe(upload) {
		h.Set("Content-Disposition", "inline")
		return
	}

	disposition := "attachment"
	if upload.Filename != nil {
		if formatted := mime.FormatMediaType("attachment", map[string]string{"filename": *upload.Filename}); formatted != "" {
			disposition = formatted
		}
	}
	h.Set("Content-Disposition", disposition)
}

func inlineSafe(upload *models.Upload) bool {
	if upload.Type != models.UploadTypeImage || upload.MimeType == nil {
		return false
	}
	return !strings.HasPrefix(*upload.MimeType, "image/svg")
}

// PurgeExpired removes every expired anonymous upload together with its object
// and returns how many records were deleted. Rows that fail to delete are
// skipped so they never hide later ones.
func (s *service) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()

	var (
		purged int
		failed int
		after  *ExpiryCursor
	)
	for {
		expired, err := s.repo.ListExpiredAnonymous(ctx, now, after, s.batchSize)
		if err != nil {
			return purged, fmt.Errorf("%w: %v", ErrPersistence, err)
		}

		batchPurged := 0
		for _, upload := range expired {
			s.removeObject(ctx, upload)
			if err := s.repo.Delete(ctx, upload.ID); err != nil && !errors.Is(err, ErrNotFound) {
				log.Error().
					Err(err).
					Str("upload_id", upload.ID.String()).
					Msg("failed to purge expired upload")
				failed++
				continue
			}
			batchPurged++
		}
		purged += batchPurged
		metrics.UploadsPurged.Add(float64(batchPurged))

		if len(expired) < s.batchSize {
			break
		}
		last := expired[len(expired)-1]
		after = &ExpiryCursor{ExpiresAt: *last.ExpiresAt, ID: last.ID}

		if err := ctx.Err(); err != nil {
			return purged, err
		}
	}

	if failed > 0 {
		log.Warn().
			Int("failed", failed).
			Int("purged", purged).
			Msg("some expired uploads could not be purged")
	}
	return purged, nil
}
