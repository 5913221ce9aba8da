package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"heysheet/internal/models"
	"heysheet/internal/storage"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string // field name prefix whose upload fails
	delay   func(objectName string) time.Duration
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*storage.UploadResult, error) {
	if m.delay != nil {
		time.Sleep(m.delay(objectName))
	}
	if m.failOn != "" && strings.Contains(objectName, "/"+m.failOn+"-") {
		return nil, errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[objectName] = data
	m.mu.Unlock()
	return &storage.UploadResult{ObjectName: objectName, PublicURL: "https://files.test/" + objectName, Size: int64(len(data))}, nil
}

func (m *memoryStorage) DeleteFile(ctx context.Context, objectName string) error {
	m.mu.Lock()
	delete(m.objects, objectName)
	m.mu.Unlock()
	return nil
}

func (m *memoryStorage) ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("not found: %s", objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStorage) GetSignedURL(objectName string, expiry time.Duration) (string, error) {
	return "https://files.test/" + objectName, nil
}

func (m *memoryStorage) Close() error { return nil }

func (m *memoryStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func fileEntry(name, fileName, contentType, body string) Entry {
	return Entry{Name: name, File: &File{
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}}
}

func enabledPolicy(maxFiles int, types ...string) models.UploadPolicy {
	return models.UploadPolicy{Enabled: true, MaxFiles: maxFiles, AllowedFileTypes: types}
}

func TestProcessStoresFilesAndPassesScalars(t *testing.T) {
	store := newMemoryStorage()
	p := NewProcessor(store)

	out, err := p.Process(context.Background(), Params{
		Entries: []Entry{
			{Name: "name", Value: "Ada"},
			fileEntry("avatar", "me.png", "image/png", "png-bytes"),
			fileEntry("cv", "cv.pdf", "application/pdf", "pdf-bytes"),
		},
		Policy:    enabledPolicy(5),
		PlanLimit: models.PlanLimit{MaxFileSizeMB: 5},
		FormID:    "form-1",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Data["name"] != "Ada" {
		t.Fatalf("scalar not passed through: %v", out.Data["name"])
	}
	avatar, _ := out.Data["avatar"].(string)
	if !strings.HasPrefix(avatar, "https://files.test/form-submissions/form-1/avatar-me.png-") {
		t.Fatalf("unexpected avatar url %q", avatar)
	}
	if store.count() != 2 || len(out.Objects) != 2 {
		t.Fatalf("expected 2 stored objects, got %d (%v)", store.count(), out.Objects)
	}

	p.Discard(out.Objects)
	if store.count() != 0 {
		t.Fatalf("expected discarded objects to be removed, %d left", store.count())
	}
}

func TestProcessMaxFilesIsDeterministic(t *testing.T) {
	for run := 0; run < 20; run++ {
		store := newMemoryStorage()
		// Vary completion order between runs.
		store.delay = func(objectName string) time.Duration {
			return time.Duration((len(objectName)+run)%3) * time.Millisecond
		}
		p := NewProcessor(store)

		_, err := p.Process(context.Background(), Params{
			Entries: []Entry{
				fileEntry("a", "a.png", "image/png", "1"),
				fileEntry("b", "b.png", "image/png", "2"),
				fileEntry("c", "c.png", "image/png", "3"),
			},
			Policy: enabledPolicy(2),
			FormID: "form-1",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Rule != RuleMaxFiles {
			t.Fatalf("run %d: expected max files error, got %v", run, err)
		}
		if vErr.Message != "Maximum of 2 files allowed" {
			t.Fatalf("unexpected message %q", vErr.Message)
		}
		if store.count() != 0 {
			t.Fatalf("run %d: no file may be stored when the count is exceeded", run)
		}
	}
}

func TestProcessFileTypes(t *testing.T) {
	p := NewProcessor(newMemoryStorage())
	params := func(contentType string) Params {
		return Params{
			Entries: []Entry{fileEntry("doc", "x", contentType, "data")},
			Policy:  enabledPolicy(2, "image/*", "text/csv"),
			FormID:  "form-1",
		}
	}

	for _, ok := range []string{"image/png", "image/jpeg", "text/csv"} {
		if _, err := p.Process(context.Background(), params(ok)); err != nil {
			t.Fatalf("%s should be allowed: %v", ok, err)
		}
	}
	for _, bad := range []string{"application/pdf", "text/plain", "imagex/png"} {
		_, err := p.Process(context.Background(), params(bad))
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Rule != RuleFileType {
			t.Fatalf("%s should be rejected, got %v", bad, err)
		}
	}
}

func TestProcessEmptyAllowListAcceptsAnyType(t *testing.T) {
	p := NewProcessor(newMemoryStorage())
	_, err := p.Process(context.Background(), Params{
		Entries: []Entry{fileEntry("doc", "x.bin", "application/octet-stream", "data")},
		Policy:  enabledPolicy(1),
		FormID:  "form-1",
	})
	if err != nil {
		t.Fatalf("expected any type to be accepted: %v", err)
	}
}

func TestProcessRejectsOversizedFile(t *testing.T) {
	p := NewProcessor(newMemoryStorage())
	big := fileEntry("doc", "big.pdf", "application/pdf", "")
	big.File.Size = 2*1024*1024 + 1

	_, err := p.Process(context.Background(), Params{
		Entries:   []Entry{big},
		Policy:    enabledPolicy(1),
		PlanLimit: models.PlanLimit{MaxFileSizeMB: 2},
		FormID:    "form-1",
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Rule != RuleFileSize {
		t.Fatalf("expected size error, got %v", err)
	}
	if !strings.Contains(vErr.Message, "2MB") {
		t.Fatalf("message should name the limit: %q", vErr.Message)
	}
}

func TestProcessRejectsWhenUploadsDisabled(t *testing.T) {
	p := NewProcessor(newMemoryStorage())
	_, err := p.Process(context.Background(), Params{
		Entries: []Entry{{Name: "name", Value: "Ada"}, fileEntry("doc", "a.txt", "text/plain", "x")},
		Policy:  models.UploadPolicy{Enabled: false, MaxFiles: 5},
		FormID:  "form-1",
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Rule != RuleDisabled {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestProcessScalarsOnlyIgnorePolicy(t *testing.T) {
	p := NewProcessor(newMemoryStorage())
	out, err := p.Process(context.Background(), Params{
		Entries: []Entry{{Name: "name", Value: "Ada"}},
		Policy:  models.UploadPolicy{Enabled: false},
	})
	if err != nil || out.Data["name"] != "Ada" || len(out.Objects) != 0 {
		t.Fatalf("unexpected result %v %v", out, err)
	}
}

func TestProcessUploadFailureRemovesStoredObjects(t *testing.T) {
	store := newMemoryStorage()
	store.failOn = "broken"
	store.delay = func(objectName string) time.Duration {
		if strings.Contains(objectName, "/broken-") {
			return 5 * time.Millisecond
		}
		return 0
	}
	p := NewProcessor(store)

	_, err := p.Process(context.Background(), Params{
		Entries: []Entry{
			fileEntry("ok", "a.txt", "text/plain", "x"),
			fileEntry("broken", "b.txt", "text/plain", "y"),
		},
		Policy: enabledPolicy(5),
		FormID: "form-1",
	})
	if err == nil {
		t.Fatalf("expected upload error")
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		t.Fatalf("storage failures are not validation errors")
	}
	if store.count() != 0 {
		t.Fatalf("expected orphaned objects to be removed, %d left", store.count())
	}
}
