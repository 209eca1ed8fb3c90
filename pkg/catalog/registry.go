package catalog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlpstudio/platform/pkg/nn"
)

var ErrModelNotFound = errors.New("model not found")

// ModelDefinition maps a model id to its dataset and layer specification.
type ModelDefinition struct {
	ModelID     string         `json:"model_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	DatasetID   string         `json:"dataset_id"`
	Layers      []nn.LayerSpec `json:"layers"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Registry struct {
	mu        sync.RWMutex
	models    map[string]ModelDefinition
	templates []Template
}

// NewRegistry returns a registry seeded with the embedded templates.
func NewRegistry() (*Registry, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	r := &Registry{models: make(map[string]ModelDefinition), templates: templates}
	for _, t := range templates {
		r.Register(ModelDefinition{
			ModelID:     t.ID,
			Name:        t.Name,
			Description: t.Description,
			DatasetID:   t.DatasetID,
			Layers:      t.Layers,
		})
	}
	return r, nil
}

// Register stores a definition and returns it with defaults applied: a
// generated id when none is given, a dataset-derived name, and a creation
// timestamp. The layer slice is copied.
func (r *Registry) Register(def ModelDefinition) ModelDefinition {
	if def.ModelID == "" {
		def.ModelID = uuid.New().String()
	}
	if def.Name == "" {
		def.Name = def.DatasetID + "_model"
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}
	layers := make([]nn.LayerSpec, len(def.Layers))
	copy(layers, def.Layers)
	def.Layers = layers

	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[def.ModelID] = def
	return def
}

func (r *Registry) Get(modelID string) (ModelDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	definition, ok := r.models[modelID]
	if !ok {
		return ModelDefinition{}, fmt.Errorf("%w: %q", ErrModelNotFound, modelID)
	}
	return definition, nil
}

// Templates returns the prebuilt template catalog.
func (r *Registry) Templates() []Template {
	return r.templates
}
