// Package archive stores rendered end-of-day reports in object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrEmptyKey = errors.New("archive key is required")

type ReportArchive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// DailyReportKey names the object for a shop's report on date (YYYY-MM-DD).
func DailyReportKey(shopID string, date string) string {
	return fmt.Sprintf("daily/%s/%s.txt", shopID, date)
}

// MemoryArchive keeps objects in process memory. It backs development setups
// without object storage.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte)}
}

func (a *MemoryArchive) Put(_ context.Context, key string, body []byte, _ string) error {
	if key == "" {
		return ErrEmptyKey
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = append([]byte(nil), body...)
	return nil
}

func (a *MemoryArchive) Object(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	body, ok := a.objects[key]
	return body, ok
}
