package store

import (
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/model"
)

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recordingPublisher) Publish(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}

func (r *recordingPublisher) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func ptr[T any](v T) *T {
	return &v
}

func productInput(code string, price float64) *model.ProductInput {
	return &model.ProductInput{
		Title:       ptr("A"),
		Description: ptr("d"),
		Price:       ptr(price),
		Image:       ptr("i"),
		Code:        ptr(code),
		Stock:       ptr(5),
	}
}

func newTestProductStore(t *testing.T, opts ...Option) (*FileProductStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	return NewFileProductStore(path, zap.NewNop(), opts...), path
}
