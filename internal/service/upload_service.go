package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/catchsmart/catchsmart/internal/domain"
	"github.com/catchsmart/catchsmart/internal/extract"
	"github.com/catchsmart/catchsmart/internal/photostore"
	"github.com/catchsmart/catchsmart/internal/vision"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// ImageResolver finds a product image for an item. It never fails; a miss is
// reported with ok == false.
type ImageResolver interface {
	FindImage(ctx context.Context, item domain.ExtractedItem) (url string, ok bool)
}

// uploadRepository is the subset of store.UploadStore that UploadService requires.
type uploadRepository interface {
	Create(ctx context.Context, upload *domain.Upload) (*domain.Upload, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Upload, error)
}

// itemRepository is the subset of store.ItemStore that UploadService requires.
type itemRepository interface {
	Search(ctx context.Context, userID, query string) ([]*domain.StoredItem, error)
}

type Options struct {
	VisionTimeout     time.Duration
	SearchTimeout     time.Duration
	SearchConcurrency int
}

// ProcessResult is the outcome of one successful pipeline run.
type ProcessResult struct {
	ImageURL string
	Vision   *domain.VisionResult
}

type UploadService struct {
	photoStg  photostore.PhotoStore
	annotator vision.Annotator
	resolver  ImageResolver
	uploads   uploadRepository
	items     itemRepository
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// NewUploadService wires the pipeline. resolver may be nil, in which case
// items are returned without product images.
func NewUploadService(
	photoStg photostore.PhotoStore,
	annotator vision.Annotator,
	resolver ImageResolver,
	uploads uploadRepository,
	items itemRepository,
	opts Options,
	logger *slog.Logger,
) *UploadService {
	if opts.SearchConcurrency <= 0 {
		opts.SearchConcurrency = 1
	}
	return &UploadService{
		photoStg:  photoStg,
		annotator: annotator,
		resolver:  resolver,
		uploads:   uploads,
		items:     items,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Process stores the image, annotates and classifies it, extracts items and
// enriches them with product images. Only authentication, a missing file and
// storage failures abort the run.
func (s *UploadService) Process(ctx context.Context, user *domain.User, img *domain.UploadedImage) (*ProcessResult, error) {
	if user == nil || user.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	if img == nil || len(img.Data) == 0 {
		return nil, domain.ErrNoFile
	}
	log := s.logger.With("user_id", user.ID, "filename", img.OriginalFilename)
	log.Info("upload started", "mime_type", img.MimeType, "bytes", len(img.Data))

	key := StorageKey(user.ID, img.OriginalFilename, s.now())
	path, err := s.photoStg.Put(ctx, key, img.MimeType, bytes.NewReader(img.Data), int64(len(img.Data)))
	if errors.Is(err, photostore.ErrExists) {
		// Same user, filename and millisecond: disambiguate and try once more.
		key = retryStorageKey(user.ID, img.OriginalFilename, s.now())
		log.Warn("storage key taken, retrying", "stage", "store", "key", key)
		path, err = s.photoStg.Put(ctx, key, img.MimeType, bytes.NewReader(img.Data), int64(len(img.Data)))
	}
	if err != nil {
		log.Error("failed to store photo", "stage", "store", "error", err)
		if errors.Is(err, photostore.ErrBucketNotFound) {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorageMisconfigured, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	imageURL := s.photoStg.PublicURL(path)
	log.Debug("photo stored", "stage", "store", "path", path)

	annotations := s.annotate(ctx, log, img)

	result := extract.Extract(annotations.FullText, annotations.Labels, annotations.Logos)
	log.Info("extraction complete", "stage", "extract", "type", result.Type, "items", len(result.Items))
	if result.Type == domain.DocumentLure && len(result.Items) == 0 {
		return nil, domain.ErrExtractionEmpty
	}

	s.enrich(ctx, result.Items)
	s.record(ctx, log, user, path, imageURL, result)

	log.Info("upload complete")
	return &ProcessResult{ImageURL: imageURL, Vision: result}, nil
}

// annotate calls the vision backend, falling back to mock annotations on any
// failure including timeout.
func (s *UploadService) annotate(ctx context.Context, log *slog.Logger, img *domain.UploadedImage) *vision.Annotations {
	if s.opts.VisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.VisionTimeout)
		defer cancel()
	}

	annotations, err := s.annotator.Annotate(ctx, img.Data, img.MimeType)
	if err != nil {
		log.Warn("vision backend failed, using mock annotations", "stage", "annotate", "error", err)
		return vision.MockAnnotations()
	}
	if annotations == nil {
		log.Warn("vision backend returned nothing, using mock annotations", "stage", "annotate")
		return vision.MockAnnotations()
	}
	return annotations
}

// enrich resolves product images for items that lack one. Resolutions run
// concurrently up to SearchConcurrency; each item is independent.
func (s *UploadService) enrich(ctx context.Context, items []domain.ExtractedItem) {
	if s.resolver == nil {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(s.opts.SearchConcurrency)
	for i := range items {
		if items[i].ImageURL != "" {
			continue
		}
		g.Go(func() error {
			searchCtx := ctx
			if s.opts.SearchTimeout > 0 {
				var cancel context.CancelFunc
				searchCtx, cancel = context.WithTimeout(ctx, s.opts.SearchTimeout)
				defer cancel()
			}
			if url, ok := s.resolver.FindImage(searchCtx, items[i]); ok {
				items[i].ImageURL = url
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *UploadService) record(ctx context.Context, log *slog.Logger, user *domain.User, path, imageURL string, result *domain.VisionResult) {
	if s.uploads == nil {
		return
	}
	_, err := s.uploads.Create(ctx, &domain.Upload{
		UserID:      user.ID,
		StoragePath: path,
		ImageURL:    imageURL,
		Type:        result.Type,
		RawText:     result.RawText,
		Items:       result.Items,
	})
	if err != nil {
		log.Error("failed to record upload history", "stage", "record", "error", err)
	}
}

// ListUploads returns the caller's recent uploads. limit is clamped to
// [1, MaxHistoryLimit]; zero or negative selects DefaultHistoryLimit.
func (s *UploadService) ListUploads(ctx context.Context, user *domain.User, limit int) ([]*domain.Upload, error) {
	if user == nil || user.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	uploads, err := s.uploads.ListByUser(ctx, user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	if uploads == nil {
		uploads = []*domain.Upload{}
	}
	return uploads, nil
}

// SearchItems finds previously extracted items by name.
func (s *UploadService) SearchItems(ctx context.Context, user *domain.User, query string) ([]*domain.StoredItem, error) {
	if user == nil || user.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	if query == "" {
		return []*domain.StoredItem{}, nil
	}

	items, err := s.items.Search(ctx, user.ID, query)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.StoredItem{}
	}
	return items, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// StorageKey builds "<user>/<unix-millis>-<filename>" with every character
// outside [a-zA-Z0-9.-] replaced by an underscore.
func StorageKey(userID, filename string, now time.Time) string {
	if filename == "" {
		filename = "upload"
	}
	return fmt.Sprintf("%s/%d-%s",
		unsafeKeyChars.ReplaceAllString(userID, "_"),
		now.UnixMilli(),
		unsafeKeyChars.ReplaceAllString(filename, "_"))
}

// retryStorageKey is StorageKey with a short random token before the
// filename: "<user>/<unix-millis>-<token>-<filename>".
func retryStorageKey(userID, filename string, now time.Time) string {
	if filename == "" {
		filename = "upload"
	}
	return StorageKey(userID, uuid.NewString()[:8]+"-"+filename, now)
}
