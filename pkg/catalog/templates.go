// Package catalog holds the model definition store: registered model ids
// mapped to a dataset and an ordered layer specification, seeded from the
// embedded template catalog.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mlpstudio/platform/pkg/nn"
)

//go:embed templates.yaml
var templatesYAML []byte

// Template is a prebuilt architecture shipped with the service.
type Template struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	DatasetID   string         `yaml:"dataset_id" json:"dataset_id"`
	Layers      []nn.LayerSpec `yaml:"layers" json:"layers"`
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadTemplates parses the embedded catalog.
func LoadTemplates() ([]Template, error) {
	var file templateFile
	if err := yaml.Unmarshal(templatesYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, errors.New("template catalog is empty")
	}
	return file.Templates, nil
}
