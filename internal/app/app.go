package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/VaibhavMttl21/ItemManager/pkg/domain"
	"github.com/VaibhavMttl21/ItemManager/pkg/mailer"
	"github.com/VaibhavMttl21/ItemManager/pkg/storage"
	"github.com/VaibhavMttl21/ItemManager/pkg/store"
)

const (
	// DefaultMaxFileBytes caps each submitted image at 5 MiB.
	DefaultMaxFileBytes int64 = 5 << 20
	// DefaultMaxImages caps the additional-image count per submission.
	DefaultMaxImages = 10

	coverField  = "coverImage"
	imagesField = "images"
)

// allowedImageExts is the accepted set for both the file extension and the
// client-declared media type. Declared metadata is trusted as submitted;
// content bytes are not sniffed.
var allowedImageExts = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// FileStager is the transient local storage used while a pipeline run is in
// flight. Satisfied by *storage.Stager.
type FileStager interface {
	Stage(role, originalName string, r io.Reader) (string, error)
	Remove(path string) error
}

// Config wires the collaborators for the core application.
type Config struct {
	Store             store.Store
	Objects           storage.ObjectStore
	Stager            FileStager
	Notifier          mailer.Notifier
	MaxFileBytes      int64
	MaxImages         int
	UploadConcurrency int
}

// App drives the item pipelines over injected collaborators.
type App struct {
	store             store.Store
	objects           storage.ObjectStore
	stager            FileStager
	notifier          mailer.Notifier
	maxFileBytes      int64
	maxImages         int
	uploadConcurrency int
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Stager == nil {
		return nil, fmt.Errorf("stager is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	maxFileBytes := cfg.MaxFileBytes
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	maxImages := cfg.MaxImages
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}
	concurrency := cfg.UploadConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &App{
		store:             cfg.Store,
		objects:           cfg.Objects,
		stager:            cfg.Stager,
		notifier:          cfg.Notifier,
		maxFileBytes:      maxFileBytes,
		maxImages:         maxImages,
		uploadConcurrency: concurrency,
	}, nil
}

// FileUpload is one submitted image file.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// CreateItemInput is a parsed multipart submission.
type CreateItemInput struct {
	Name        string
	Type        string
	Description string
	Cover       *FileUpload
	Images      []FileUpload
}

// CreateItem runs the creation pipeline: validate, stage locally, upload the
// cover, upload the remaining images as a bounded concurrent batch, persist.
// Staged files are removed on every exit path. If any stage after the cover
// upload fails, remote objects uploaded so far are best-effort deleted so no
// orphan remains and no item is ever visible in a partial state.
func (a *App) CreateItem(ctx context.Context, in CreateItemInput) (domain.Item, error) {
	itemType, err := a.validate(in)
	if err != nil {
		return domain.Item{}, err
	}

	var staged []string
	defer func() {
		for _, path := range staged {
			if err := a.stager.Remove(path); err != nil {
				slog.Warn("remove staged upload", "path", path, "err", err)
			}
		}
	}()

	coverPath, err := a.stager.Stage(coverField, in.Cover.Name, in.Cover.Reader)
	if err != nil {
		return domain.Item{}, fmt.Errorf("stage cover image: %w", err)
	}
	staged = append(staged, coverPath)

	imagePaths := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		path, err := a.stager.Stage(imagesField, img.Name, img.Reader)
		if err != nil {
			return domain.Item{}, fmt.Errorf("stage image: %w", err)
		}
		staged = append(staged, path)
		imagePaths = append(imagePaths, path)
	}

	coverURL, err := a.objects.Upload(ctx, coverPath)
	if err != nil {
		return domain.Item{}, fmt.Errorf("upload cover image: %w: %v", ErrUploadFailed, err)
	}

	var mu sync.Mutex
	uploaded := []string{coverURL}
	imageURLs := make([]string, len(imagePaths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.uploadConcurrency)
	for i, path := range imagePaths {
		i, path := i, path
		g.Go(func() error {
			url, err := a.objects.Upload(gctx, path)
			if err != nil {
				return err
			}
			// Slot by submission index, not completion order.
			imageURLs[i] = url
			mu.Lock()
			uploaded = append(uploaded, url)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.discardRemote(uploaded)
		return domain.Item{}, fmt.Errorf("upload images: %w: %v", ErrUploadFailed, err)
	}

	item := domain.Item{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Type:        itemType,
		Description: strings.TrimSpace(in.Description),
		CoverImage:  coverURL,
		Images:      imageURLs,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.SaveItem(item); err != nil {
		a.discardRemote(uploaded)
		return domain.Item{}, fmt.Errorf("save item: %w", err)
	}
	return item, nil
}

// ListItems returns every item, newest first.
func (a *App) ListItems(ctx context.Context) ([]domain.Item, error) {
	_ = ctx
	return a.store.ListItems()
}

// GetItem returns one item or ErrItemNotFound.
func (a *App) GetItem(ctx context.Context, id string) (domain.Item, error) {
	_ = ctx
	item, ok, err := a.store.GetItem(id)
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}
	if !ok {
		return domain.Item{}, ErrItemNotFound
	}
	return item, nil
}

// SendEnquiry looks up the item and dispatches the enquiry notification.
// The notifier is never invoked for an unknown ID.
func (a *App) SendEnquiry(ctx context.Context, id string) error {
	item, err := a.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if err := a.notifier.SendEnquiry(ctx, item); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func (a *App) validate(in CreateItemInput) (domain.ItemType, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Type) == "" || strings.TrimSpace(in.Description) == "" {
		return "", invalid("name, type, and description are required")
	}
	itemType, ok := domain.ParseItemType(strings.TrimSpace(in.Type))
	if !ok {
		return "", invalid("unknown item type")
	}
	if in.Cover == nil {
		return "", invalid("cover image is required")
	}
	if len(in.Images) > a.maxImages {
		return "", invalid(fmt.Sprintf("at most %d additional images are allowed", a.maxImages))
	}
	if err := a.checkFile(*in.Cover); err != nil {
		return "", err
	}
	for _, img := range in.Images {
		if err := a.checkFile(img); err != nil {
			return "", err
		}
	}
	return itemType, nil
}

func (a *App) checkFile(f FileUpload) error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !allowedImageExts[ext] {
		return invalid("only image files are allowed")
	}
	mediaType := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	if !allowedMediaTypes[mediaType] {
		return invalid("only image files are allowed")
	}
	if f.Size > a.maxFileBytes {
		return invalid("file too large")
	}
	return nil
}

// discardRemote best-effort deletes objects uploaded by an aborted run.
func (a *App) discardRemote(urls []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, url := range urls {
		if err := a.objects.Delete(ctx, url); err != nil {
			slog.Warn("discard uploaded object", "url", url, "err", err)
		}
	}
}
