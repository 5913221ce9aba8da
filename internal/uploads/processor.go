// Package uploads validates and stores files attached to form submissions.
package uploads

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"heysheet/internal/models"
	"heysheet/internal/storage"
)

// File is a file value submitted for a form field.
type File struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Entry is one submitted (name, value) pair in submission order. Exactly one
// of Value and File is meaningful.
type Entry struct {
	Name  string
	Value any
	File  *File
}

// ValidationError identifies the upload rule a submission violated.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	RuleDisabled = "uploads_disabled"
	RuleMaxFiles = "max_files"
	RuleFileType = "file_type"
	RuleFileSize = "file_size"
)

// Params groups the inputs of Process.
type Params struct {
	Entries   []Entry
	Policy    models.UploadPolicy
	PlanLimit models.PlanLimit
	FormID    string
}

// Result is the field map handed to persistence and the storage objects
// written for it.
type Result struct {
	Data    map[string]any
	Objects []string
}

type Processor struct {
	storage storage.StorageClient
}

func NewProcessor(storageClient storage.StorageClient) *Processor {
	return &Processor{storage: storageClient}
}

// Process returns the submitted field map with every file replaced by its
// stored URL, and the names of the stored objects. Every file is validated in submission order before any upload
// starts, so the file count and the first reported violation do not depend
// on upload completion order. Any failure aborts the whole operation and
// removes objects already stored for this call.
func (p *Processor) Process(ctx context.Context, params Params) (*Result, error) {
	result := make(map[string]any, len(params.Entries))

	type pending struct {
		name string
		file *File
	}
	var files []pending

	fileCount := 0
	for _, entry := range params.Entries {
		if entry.File == nil {
			result[entry.Name] = entry.Value
			continue
		}
		if !params.Policy.Enabled {
			return nil, &ValidationError{Rule: RuleDisabled, Message: "File uploads are not enabled for this form"}
		}
		fileCount++
		if params.Policy.MaxFiles > 0 && fileCount > params.Policy.MaxFiles {
			return nil, &ValidationError{Rule: RuleMaxFiles, Message: fmt.Sprintf("Maximum of %d files allowed", params.Policy.MaxFiles)}
		}
		if err := validateFile(entry.File, params.Policy.AllowedFileTypes, params.PlanLimit); err != nil {
			return nil, err
		}
		files = append(files, pending{name: entry.Name, file: entry.File})
	}

	if len(files) == 0 {
		return &Result{Data: result}, nil
	}

	var (
		mu       sync.Mutex
		uploaded []string
		urls     = make([]string, len(files))
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			objectName := storage.SubmissionFileObjectName(params.FormID, f.name, f.file.FileName)
			url, err := p.upload(gctx, f.file, objectName)
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.name, err)
			}
			mu.Lock()
			uploaded = append(uploaded, objectName)
			mu.Unlock()
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.Discard(uploaded)
		return nil, err
	}

	// Later entries win for repeated field names, matching scalar handling.
	for i, f := range files {
		result[f.name] = urls[i]
	}
	return &Result{Data: result, Objects: uploaded}, nil
}

func (p *Processor) upload(ctx context.Context, file *File, objectName string) (string, error) {
	reader, err := file.Open()
	if err != nil {
		return "", err
	}
	defer reader.Close()

	res, err := p.storage.UploadFile(ctx, reader, objectName, file.ContentType)
	if err != nil {
		return "", err
	}
	return res.PublicURL, nil
}

// Discard removes stored objects whose submission was not persisted.
func (p *Processor) Discard(objectNames []string) {
	for _, name := range objectNames {
		if err := p.storage.DeleteFile(context.Background(), name); err != nil {
			log.Printf("uploads: failed to remove orphaned object %s: %v", name, err)
		}
	}
}

func validateFile(file *File, allowedTypes []string, limit models.PlanLimit) error {
	if !typeAllowed(file.ContentType, allowedTypes) {
		return &ValidationError{Rule: RuleFileType, Message: fmt.Sprintf("File type %s is not allowed", file.ContentType)}
	}
	if limit.MaxFileSizeMB > 0 && file.Size > int64(limit.MaxFileSizeMB)*1024*1024 {
		return &ValidationError{Rule: RuleFileSize, Message: fmt.Sprintf("File %s exceeds the maximum size of %dMB", file.FileName, limit.MaxFileSizeMB)}
	}
	return nil
}

// typeAllowed matches "type/*" entries by main type and others exactly.
// An empty allow-list allows everything.
func typeAllowed(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if prefix, ok := strings.CutSuffix(entry, "/*"); ok {
			if strings.HasPrefix(contentType, prefix+"/") {
				return true
			}
			continue
		}
		if entry == contentType {
			return true
		}
	}
	return false
}
