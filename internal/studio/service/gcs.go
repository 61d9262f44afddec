package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"garment-studio/internal/common/config"
	"garment-studio/internal/common/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ============================================================
// GCS Uploader
// ============================================================

type GCSUploader struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

// NewGCSUploader создаёт клиент; при заданном EmulatorHost ходит в
// эмулятор без авторизации.
func NewGCSUploader(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*GCSUploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET")
	}

	var opts []option.ClientOption
	emulator := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	if emulator != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulator)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	publicBase := cfg.BucketPublicURL
	if publicBase == "" {
		publicBase = "https://storage.googleapis.com/" + cfg.Bucket
		if emulator != "" {
			publicBase = emulator + "/" + cfg.Bucket
		}
	}

	log.Info("object storage initialized", "mode", "gcs", "bucket", cfg.Bucket, "emulator_host", emulator, "public_base_url", publicBase)
	return &GCSUploader{
		log:           log.With("service", "GCSUploader"),
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(publicBase, "/"),
	}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, userID, category string, data []byte) (string, error) {
	contentType, ext, err := DetectImageType(data)
	if err != nil {
		return "", err
	}
	key := objectKey(userID, category, ext)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	u.log.Debug("object uploaded", "key", key, "bytes", len(data))
	return u.publicBaseURL + "/" + key, nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}
