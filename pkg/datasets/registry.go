package datasets

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownDataset = errors.New("unknown dataset")

// Options configure a dataset instance. MaxSamples truncates the dataset
// when positive; Seed drives shuffling and synthetic generation (zero means
// the package default).
type Options struct {
	MaxSamples int
	Seed       int64
}

const defaultSeed = 42

func (o Options) seed() int64 {
	if o.Seed == 0 {
		return defaultSeed
	}
	return o.Seed
}

type Factory func(Options) Dataset

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a dataset available by id. It panics on duplicate ids; all
// registration happens from init functions.
func Register(id string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("datasets: id %q already registered", id))
	}
	registry[id] = factory
}

// Open instantiates a fresh dataset by id.
func Open(id string, opts Options) (Dataset, error) {
	registryMu.RLock()
	factory, ok := registry[id]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, id)
	}
	return factory(opts), nil
}

// Lookup returns the metadata for a dataset id without loading any data.
func Lookup(id string) (Metadata, error) {
	ds, err := Open(id, Options{})
	if err != nil {
		return Metadata{}, err
	}
	return ds.Meta(), nil
}

// List returns metadata for every registered dataset, sorted by id.
func List() []Metadata {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Metadata, 0, len(registry))
	for _, factory := range registry {
		out = append(out, factory(Options{}).Meta())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
