package use_case

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/newsupernova0617/convert-for-you/internal/converter"
	"github.com/newsupernova0617/convert-for-you/internal/entities"
	"github.com/newsupernova0617/convert-for-you/internal/formats"
	"github.com/newsupernova0617/convert-for-you/internal/metrics"
	"github.com/newsupernova0617/convert-for-you/internal/pool"
	"github.com/newsupernova0617/convert-for-you/internal/r2"
	"github.com/newsupernova0617/convert-for-you/internal/sanitize"
)

var ErrNotFound = errors.New("file not found")

// InputError is a caller mistake: unknown format, missing source key.
// Rejected before any I/O and surfaced as a 4xx.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func inputErrorf(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// MetadataStore is the slice of the metadata store the coordinator needs.
type MetadataStore interface {
	Insert(ctx context.Context, a entities.Artifact) error
	GetActive(ctx context.Context, id string) (entities.Artifact, error)
	Get(ctx context.Context, id string) (entities.Artifact, error)
	MarkDeleted(ctx context.Context, id string, deletedAt time.Time) error
	MarkFailed(ctx context.Context, id string) error
}

// BlobStore is the durable object store holding sources and artifacts.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, payload []byte) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// TaskPool runs conversion tasks with bounded concurrency.
type TaskPool interface {
	Submit(ctx context.Context, t pool.Task) (pool.Result, error)
}

// RowCache fronts the download gate's metadata lookups.
type RowCache interface {
	StorageKey(ctx context.Context, id string) (string, error)
	StoreStorageKey(ctx context.Context, id, storageKey string, ttl time.Duration) error
	Remove(ctx context.Context, id string) error
}

// UseCase sequences the conversion pipeline: fetch source, convert in the
// pool, upload the result, record metadata, clean up the source. The
// upload always happens before the metadata insert so an active row can
// never point at a blob that does not exist; the inverse failure (an
// orphaned blob with no row) is accepted as inert wasted storage.
type UseCase struct {
	storage  MetadataStore
	blobs    BlobStore
	pool     TaskPool
	registry *converter.Registry
	cache    RowCache
	probe    *converter.CapabilityProbe

	ttl         time.Duration
	rowCacheTTL time.Duration

	// test seams
	now   func() time.Time
	newID func() string
	key   func(originalName, folder string) string
}

// New wires the coordinator. cache is optional: pass an untyped nil to
// run without the row cache. A concrete-typed nil pointer is not treated
// as absent and will be dereferenced on the first download.
func New(storage MetadataStore, blobs BlobStore, taskPool TaskPool, registry *converter.Registry, cache RowCache, probe *converter.CapabilityProbe, ttl, rowCacheTTL time.Duration) *UseCase {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &UseCase{
		storage:     storage,
		blobs:       blobs,
		pool:        taskPool,
		registry:    registry,
		cache:       cache,
		probe:       probe,
		ttl:         ttl,
		rowCacheTTL: rowCacheTTL,
		now:         time.Now,
		newID:       entities.NewArtifactID,
		key:         r2.GenerateKey,
	}
}

// ConvertRequest identifies the source blob(s) and the target format.
// Merge takes several source keys; everything else takes one.
type ConvertRequest struct {
	SourceKeys   []string
	Format       formats.Format
	OriginalName string
	Names        []string
	Ranges       []formats.PageRange
	Options      *formats.Options
}

// ConvertResult is what the HTTP layer returns to the caller.
type ConvertResult struct {
	FileID      string
	StoragePath string
	FileName    string
}

// Convert runs one commit end to end. Failures before the metadata insert
// leave no visible state; the best-effort source deletion afterwards is
// logged and swallowed because the commit is already complete.
func (c *UseCase) Convert(ctx context.Context, req ConvertRequest) (ConvertResult, error) {
	// Pure validation first: nothing below this block may run for an
	// unknown format or a bad source reference.
	if !formats.Supported(req.Format) {
		return ConvertResult{}, inputErrorf("unsupported format: %s", req.Format)
	}
	if len(req.SourceKeys) == 0 {
		return ConvertResult{}, inputErrorf("a source file reference is required")
	}
	for _, k := range req.SourceKeys {
		if !sanitize.ValidKeyPath(k) {
			return ConvertResult{}, inputErrorf("invalid source file reference")
		}
	}

	if req.Format == formats.FormatExcel && c.probe != nil && !c.probe.EnsureExcelExport(ctx) {
		return ConvertResult{}, &converter.Error{
			Code:    converter.CodeNoExportFilter,
			Message: "PDF to Excel export is not available on this host",
		}
	}

	// 1. Fetch the source bytes. Any failure aborts with no side effects.
	buffers := make([][]byte, 0, len(req.SourceKeys))
	for _, k := range req.SourceKeys {
		b, _, err := c.blobs.Download(ctx, k)
		if err != nil {
			return ConvertResult{}, fmt.Errorf("fetch source %q: %w", k, err)
		}
		buffers = append(buffers, b)
	}

	payload := formats.Payload{Names: req.Names, Ranges: req.Ranges, Options: req.Options}
	if len(buffers) == 1 {
		payload.Buffer = buffers[0]
	} else {
		payload.Buffers = buffers
	}
	desc, err := formats.Route(req.Format, payload)
	if err != nil {
		if errors.Is(err, formats.ErrUnknownFormat) || errors.Is(err, formats.ErrBadPayload) {
			return ConvertResult{}, &InputError{Msg: err.Error()}
		}
		return ConvertResult{}, err
	}

	// 2. Convert in the pool. A tagged failure aborts; nothing has been
	// written yet.
	start := c.now()
	res, err := c.pool.Submit(ctx, pool.Task{
		Format: string(req.Format),
		Run: func(tctx context.Context) ([]byte, error) {
			return c.registry.Convert(tctx, desc)
		},
	})
	metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Conversions.WithLabelValues(string(req.Format), "error").Inc()
		return ConvertResult{}, fmt.Errorf("submit conversion: %w", err)
	}
	if !res.OK {
		metrics.Conversions.WithLabelValues(string(req.Format), "failure").Inc()
		return ConvertResult{}, &converter.Error{Code: res.ErrCode, Message: res.ErrMessage}
	}

	// 3. New identity and storage key.
	id := c.newID()
	fileName := displayName(req.OriginalName, req.Format)
	storageKey := c.key(fileName, r2.FolderConverted)

	// 4. Upload before the metadata insert. A row must never go active
	// for a blob that is not durably stored.
	if err := c.blobs.Upload(ctx, storageKey, "application/octet-stream", res.Output); err != nil {
		metrics.Conversions.WithLabelValues(string(req.Format), "error").Inc()
		return ConvertResult{}, fmt.Errorf("upload artifact: %w", err)
	}

	// 5. Record the row. If this fails the uploaded blob is orphaned;
	// that leak is accepted and only reported.
	now := c.now()
	artifact := entities.Artifact{
		ID:         id,
		StorageKey: storageKey,
		Kind:       entities.KindConverted,
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.ttl),
		Status:     entities.StatusActive,
	}
	if err := c.storage.Insert(ctx, artifact); err != nil {
		log.Printf("[convert] metadata insert failed, blob %s orphaned: %v", storageKey, err)
		sentry.CaptureException(err)
		metrics.Conversions.WithLabelValues(string(req.Format), "error").Inc()
		return ConvertResult{}, fmt.Errorf("record artifact: %w", err)
	}

	// 6. Best-effort source cleanup; the commit is already complete.
	for _, k := range req.SourceKeys {
		if err := c.blobs.Delete(ctx, k); err != nil {
			log.Printf("[convert] source cleanup failed for %s: %v", k, err)
			sentry.CaptureException(err)
		}
	}

	metrics.Conversions.WithLabelValues(string(req.Format), "success").Inc()
	return ConvertResult{FileID: id, StoragePath: storageKey, FileName: fileName}, nil
}

// DownloadResult carries the served blob and its display name.
type DownloadResult struct {
	Data        []byte
	ContentType string
	FileName    string
}

// Download serves a blob only while its row is active. The row cache
// short-circuits repeat lookups; entries are invalidated on transitions
// and capped so they cannot outlive the artifact TTL.
func (c *UseCase) Download(ctx context.Context, id string) (DownloadResult, error) {
	if c.cache != nil {
		if key, err := c.cache.StorageKey(ctx, id); err == nil {
			data, contentType, derr := c.blobs.Download(ctx, key)
			if derr == nil {
				metrics.Downloads.WithLabelValues("hit").Inc()
				return DownloadResult{Data: data, ContentType: contentType, FileName: r2.FilenameFromKey(key)}, nil
			}
			// Stale entry; fall through to the store.
			_ = c.cache.Remove(ctx, id)
		}
	}

	artifact, err := c.storage.GetActive(ctx, id)
	if err != nil {
		metrics.Downloads.WithLabelValues("miss").Inc()
		return DownloadResult{}, ErrNotFound
	}

	data, contentType, err := c.blobs.Download(ctx, artifact.StorageKey)
	if err != nil {
		metrics.Downloads.WithLabelValues("error").Inc()
		return DownloadResult{}, fmt.Errorf("fetch artifact %s: %w", id, err)
	}

	if c.cache != nil {
		ttl := c.rowCacheTTL
		if remaining := time.Until(artifact.ExpiresAt); remaining < ttl {
			ttl = remaining
		}
		if err := c.cache.StoreStorageKey(ctx, id, artifact.StorageKey, ttl); err != nil {
			log.Printf("[download] cache store %s: %v", id, err)
		}
	}

	metrics.Downloads.WithLabelValues("hit").Inc()
	return DownloadResult{Data: data, ContentType: contentType, FileName: r2.FilenameFromKey(artifact.StorageKey)}, nil
}

// UploadResult describes a stored source file.
type UploadResult struct {
	FileName    string
	StoragePath string
	Size        int
}

// Upload stores a raw source file under the uploads folder. No metadata
// row is written; sources live only until their conversion commits.
func (c *UseCase) Upload(ctx context.Context, originalName, contentType string, data []byte) (UploadResult, error) {
	if len(data) == 0 {
		return UploadResult{}, inputErrorf("uploaded file is empty")
	}
	name := sanitize.Filename(originalName)
	key := c.key(name, r2.FolderUploads)
	if err := c.blobs.Upload(ctx, key, contentType, data); err != nil {
		return UploadResult{}, fmt.Errorf("store upload: %w", err)
	}
	return UploadResult{FileName: name, StoragePath: key, Size: len(data)}, nil
}

// AdminDelete retires an active artifact immediately: the same
// active -> deleted transition the sweeper performs, just synchronous.
func (c *UseCase) AdminDelete(ctx context.Context, id string) error {
	artifact, err := c.storage.GetActive(ctx, id)
	if err != nil {
		return ErrNotFound
	}

	if err := c.blobs.Delete(ctx, artifact.StorageKey); err != nil {
		sentry.CaptureException(err)
		if merr := c.storage.MarkFailed(ctx, id); merr != nil {
			log.Printf("[admin] mark failed for %s: %v", id, merr)
		}
		c.invalidate(ctx, id)
		return fmt.Errorf("delete blob for %s: %w", id, err)
	}

	if err := c.storage.MarkDeleted(ctx, id, c.now()); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *UseCase) invalidate(ctx context.Context, id string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Remove(ctx, id); err != nil {
		log.Printf("[admin] cache invalidate %s: %v", id, err)
	}
}

// displayName derives the user-facing output filename: sanitized original
// base name plus a conversion suffix and the format's extension.
func displayName(originalName string, f formats.Format) string {
	name := sanitize.Filename(originalName)
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	ext := formats.Ext(f)
	if ext == "" {
		ext = ".bin"
	}
	return name + "_converted" + ext
}
