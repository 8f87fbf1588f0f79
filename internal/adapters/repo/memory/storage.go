package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/slabworks/visualizer/internal/domain"
)

// FileStorage keeps uploaded objects in a map. PublicURL mirrors the
// bucket-style URLs the real backend serves.
type FileStorage struct {
	mu      sync.RWMutex
	objects map[string]storedObject

	BaseURL string
}

type storedObject struct {
	contentType string
	data        []byte
	updatedAt   time.Time
}

func NewFileStorage() *FileStorage {
	return &FileStorage{objects: map[string]storedObject{}, BaseURL: "https://storage.local"}
}

func (f *FileStorage) Upload(_ context.Context, path, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.objects[path] = storedObject{contentType: contentType, data: cp, updatedAt: time.Now()}
	return f.PublicURL(path), nil
}

func (f *FileStorage) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[path]; !ok {
		return domain.ErrNotFound
	}
	delete(f.objects, path)
	return nil
}

func (f *FileStorage) List(_ context.Context, prefix string) ([]domain.StorageObject, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	cut := strings.TrimSuffix(prefix, "/") + "/"
	var out []domain.StorageObject
	for path, obj := range f.objects {
		if !strings.HasPrefix(path, cut) {
			continue
		}
		out = append(out, domain.StorageObject{
			Name:      strings.TrimPrefix(path, cut),
			Size:      int64(len(obj.data)),
			UpdatedAt: obj.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FileStorage) PublicURL(path string) string {
	return strings.TrimSuffix(f.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Object returns the stored bytes, for test assertions.
func (f *FileStorage) Object(path string) ([]byte, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	obj, ok := f.objects[path]
	return obj.data, ok
}
