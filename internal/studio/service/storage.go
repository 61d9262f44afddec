package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ============================================================
// Object Storage Upload
// ============================================================

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmptyFile       = errors.New("file is empty")
)

// Uploader кладёт картинку в хранилище и возвращает её публичный URL.
type Uploader interface {
	Upload(ctx context.Context, userID, category string, data []byte) (string, error)
}

var imageExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// DetectImageType определяет тип по содержимому, а не по имени файла.
func DetectImageType(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", ErrEmptyFile
	}
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if strings.HasPrefix(ct, "text/") && looksLikeSVG(data) {
		ct = "image/svg+xml"
	}
	ext, ok := imageExtensions[ct]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	return ct, ext, nil
}

func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(strings.ToLower(string(head)), "<svg")
}

// objectKey — <user>/<category>/<uuid><ext>.
func objectKey(userID, category, ext string) string {
	return path.Join(userID, category, uuid.NewString()+ext)
}

// ============================================================
// File Storage
// ============================================================

// FileStorage хранит файлы пользователей на диске: root/<user>/<category>/.
// Файлы раздаются статикой под publicBaseURL.
type FileStorage struct {
	root          string
	publicBaseURL string
}

func NewFileStorage(root, publicBaseURL string) *FileStorage {
	return &FileStorage{
		root:          root,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

func (s *FileStorage) Root() string {
	return s.root
}

func (s *FileStorage) UserDir(userID string) string {
	return filepath.Join(s.root, userID)
}

func (s *FileStorage) CategoryDir(userID, category string) string {
	return filepath.Join(s.UserDir(userID), category)
}

func (s *FileStorage) EnsureDir(userID, category string) error {
	dir := s.CategoryDir(userID, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s dir: %w", category, err)
	}
	return nil
}

func (s *FileStorage) Upload(ctx context.Context, userID, category string, data []byte) (string, error) {
	_, ext, err := DetectImageType(data)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.EnsureDir(userID, category); err != nil {
		return "", err
	}

	key := objectKey(userID, category, ext)
	if err := os.WriteFile(filepath.Join(s.root, filepath.FromSlash(key)), data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return s.publicBaseURL + "/" + key, nil
}
