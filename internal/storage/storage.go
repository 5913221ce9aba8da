package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StorageClient is the interface for file storage operations.
// Both GCS and local storage implement it.
type StorageClient interface {
	UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error)
	DeleteFile(ctx context.Context, objectName string) error
	ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error)
	GetSignedURL(objectName string, expiry time.Duration) (string, error)
	Close() error
}

// UploadResult contains the result of an upload operation
type UploadResult struct {
	ObjectName string `json:"object_name"`
	PublicURL  string `json:"public_url"`
	Size       int64  `json:"size"`
}

// SubmissionFileObjectName builds the key for a file attached to a submission:
// form-submissions/{formID}/{fieldName}-{fileName}-{uuid}
func SubmissionFileObjectName(formID, fieldName, fileName string) string {
	return fmt.Sprintf("form-submissions/%s/%s-%s-%s", formID, sanitizeName(fieldName), sanitizeName(fileName), uuid.New().String())
}

// ReceiptObjectName builds the key of a submission's PDF receipt.
func ReceiptObjectName(formID, submissionID string) string {
	return fmt.Sprintf("form-submissions/%s/receipts/%s.pdf", formID, submissionID)
}

// sanitizeName reduces a client-supplied name to a single path segment so it
// cannot escape the form prefix.
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "file"
	}
	return name
}
