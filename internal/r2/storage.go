package r2

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math/rand"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	conf "github.com/newsupernova0617/convert-for-you/internal/config"
)

// Folder prefixes for generated keys.
const (
	FolderUploads   = "uploads"
	FolderConverted = "converted"
)

// Storage is the R2 blob client. R2 speaks the S3 API, so the AWS SDK
// client is pointed at the account endpoint.
type Storage struct {
	AccountID string
	Bucket    string
	Region    string // usually "auto" for R2

	MaxRetries     int
	RetryBaseDelay time.Duration

	client   *s3.Client
	uploader *manager.Uploader
}

func NewStorage(cfg *conf.R2Config) (*Storage, error) {
	s := &Storage{
		AccountID:      cfg.AccountID,
		Bucket:         cfg.BucketName,
		Region:         "auto",
		MaxRetries:     3,
		RetryBaseDelay: 300 * time.Millisecond,
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretKey, "",
		)),
		config.WithRegion(s.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}
	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	s.uploader = manager.NewUploader(s.client)

	log.Printf("[r2] client initialized (bucket=%s)", cfg.BucketName)
	return s, nil
}

// Upload puts the payload under key, retrying transient failures with
// jittered backoff. It returns only after the object is durably stored;
// the commit protocol depends on that ordering.
func (s *Storage) Upload(ctx context.Context, key string, contentType string, payload []byte) error {
	var err error
	for attempt := 1; ; attempt++ {
		_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(payload),
			ContentType: aws.String(contentType),
		})
		if err == nil {
			return nil
		}
		if attempt > s.MaxRetries || ctx.Err() != nil {
			break
		}

		backoff := s.backoffDelay(attempt)
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return fmt.Errorf("failed to upload %q: %w", key, err)
}

// backoffDelay doubles per attempt with +/-5% random jitter.
func (s *Storage) backoffDelay(attempt int) time.Duration {
	delay := s.RetryBaseDelay << (attempt - 1)
	jitter := delay / 10
	return delay - (jitter / 2) + time.Duration(rand.Int63n(int64(jitter)+1))
}

// Download fetches the object and its content type.
func (s *Storage) Download(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %q: %w", key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, "", fmt.Errorf("failed to read body for %q: %w", key, err)
	}

	contentType := "application/octet-stream"
	if out.ContentType != nil {
		contentType = *out.ContentType
	}
	return buf.Bytes(), contentType, nil
}

// Delete removes the object. Used both for the best-effort source cleanup
// after a commit and by the expiry sweeper.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

const keySuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateKey builds a collision-resistant storage key under folder:
// millisecond timestamp, random suffix, and the original extension.
func GenerateKey(originalName, folder string) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = keySuffixAlphabet[rand.Intn(len(keySuffixAlphabet))]
	}
	ext := strings.ToLower(path.Ext(originalName))
	return folder + "/" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + string(suffix) + ext
}

// FilenameFromKey returns the final path segment of a storage key, which
// is the display name served on download.
func FilenameFromKey(key string) string {
	return path.Base(key)
}
