package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidPath is returned for object names that resolve outside the storage root.
var ErrInvalidPath = errors.New("invalid object path")

// LocalStorageClient implements StorageClient on the local filesystem.
// Files are served through signed URLs checked by VerifySignedURL.
type LocalStorageClient struct {
	basePath  string
	baseURL   string
	secretKey string
}

func NewLocalStorageClient(basePath, baseURL, secretKey string) (*LocalStorageClient, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(absBase, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	if secretKey == "" {
		secretKey = "default-local-storage-key"
	}
	if baseURL == "" {
		baseURL = "internal://storage"
	}

	return &LocalStorageClient{
		basePath:  absBase,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
	}, nil
}

// Resolve maps an object name to a path inside the storage root.
func (l *LocalStorageClient) Resolve(objectName string) (string, error) {
	clean := filepath.Clean(strings.TrimPrefix(objectName, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidPath
	}
	full := filepath.Join(l.basePath, clean)
	if !strings.HasPrefix(full, l.basePath+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}

// UploadFile writes to a temporary file first so readers never observe a
// partially written object.
func (l *LocalStorageClient) UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error) {
	fullPath, err := l.Resolve(objectName)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write data to file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	return &UploadResult{
		ObjectName: objectName,
		PublicURL:  fmt.Sprintf("%s/%s", l.baseURL, objectName),
		Size:       size,
	}, nil
}

func (l *LocalStorageClient) DeleteFile(ctx context.Context, objectName string) error {
	fullPath, err := l.Resolve(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}
	l.cleanEmptyDirs(filepath.Dir(fullPath))
	return nil
}

// cleanEmptyDirs removes empty parent directories up to basePath
func (l *LocalStorageClient) cleanEmptyDirs(dir string) {
	for dir != l.basePath && strings.HasPrefix(dir, l.basePath) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

func (l *LocalStorageClient) ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath, err := l.Resolve(objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", fullPath, err)
	}
	return file, nil
}

// GetSignedURL returns {baseURL}/{object}?expires=<unix>&signature=<hmac>.
func (l *LocalStorageClient) GetSignedURL(objectName string, expiry time.Duration) (string, error) {
	expiresAt := time.Now().Add(expiry).Unix()
	signature := l.sign(fmt.Sprintf("%s:%d", objectName, expiresAt))
	return fmt.Sprintf("%s/%s?expires=%d&signature=%s", l.baseURL, objectName, expiresAt, signature), nil
}

func (l *LocalStorageClient) sign(message string) string {
	h := hmac.New(sha256.New, []byte(l.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignedURL verifies that a signed URL is valid and not expired
func (l *LocalStorageClient) VerifySignedURL(objectName string, expiresAt int64, signature string) bool {
	if time.Now().Unix() > expiresAt {
		return false
	}
	expected := l.sign(fmt.Sprintf("%s:%d", objectName, expiresAt))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ServesPublicURLs reports whether uploaded files are reachable over HTTP.
func (l *LocalStorageClient) ServesPublicURLs() bool {
	return l.baseURL != "internal://storage"
}

// Close is a no-op for local storage.
func (l *LocalStorageClient) Close() error {
	return nil
}

var _ StorageClient = (*LocalStorageClient)(nil)
