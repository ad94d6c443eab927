package provider

import (
	"context"
	"sync"
)

// OptionsRepository persists the provider/customization options
// document. Save must replace the whole document atomically.
type OptionsRepository interface {
	Load(ctx context.Context) (*Options, error)
	Save(ctx context.Context, options *Options) error
}

// InMemoryOptionsRepository implements OptionsRepository in memory,
// for tests and ephemeral configurations.
type InMemoryOptionsRepository struct {
	mutex   sync.RWMutex
	options *Options
}

// NewInMemoryOptionsRepository creates an empty in-memory repository.
func NewInMemoryOptionsRepository() *InMemoryOptionsRepository {
	return &InMemoryOptionsRepository{options: &Options{}}
}

func (r *InMemoryOptionsRepository) Load(ctx context.Context) (*Options, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.options.Clone(), nil
}

func (r *InMemoryOptionsRepository) Save(ctx context.Context, options *Options) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.options = options.Clone()
	return nil
}
