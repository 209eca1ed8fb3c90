// Package nn implements the dynamic MLP factory: layer spec validation,
// dense forward/backward passes, losses, and optimizers.
package nn

import "fmt"

const (
	TaskClassification = "classification"
	TaskRegression     = "regression"
)

type LayerKind string

const (
	LayerInput  LayerKind = "input"
	LayerHidden LayerKind = "hidden"
	LayerOutput LayerKind = "output"
)

// LayerSpec describes one layer of the MLP. The ordered sequence of specs
// must start with exactly one input layer and end with exactly one output
// layer; everything in between is hidden.
type LayerSpec struct {
	Kind       LayerKind `json:"type" yaml:"type"`
	Width      int       `json:"neurons" yaml:"neurons"`
	Activation string    `json:"activation,omitempty" yaml:"activation,omitempty"`
}

// ConfigError marks an invalid layer specification or task configuration.
// Callers match it with errors.As to distinguish rejection from runtime
// failure.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

var supportedActivations = map[string]bool{
	"":        true,
	"linear":  true,
	"relu":    true,
	"sigmoid": true,
	"tanh":    true,
	"softmax": true,
}

// ValidateSpec checks every structural invariant of a layer specification
// against the declared input/output dimensionality and task type. It returns
// a *ConfigError describing the first violation found.
func ValidateSpec(spec []LayerSpec, inputDim, outputDim int, task string) error {
	if task != TaskClassification && task != TaskRegression {
		return configErrorf("invalid task type %q: expected %q or %q", task, TaskClassification, TaskRegression)
	}
	if inputDim <= 0 {
		return configErrorf("input dimension must be > 0 (got %d)", inputDim)
	}
	if outputDim <= 0 {
		return configErrorf("output dimension must be > 0 (got %d)", outputDim)
	}
	if len(spec) < 2 {
		return configErrorf("layer spec must contain at least an input and an output layer (got %d layers)", len(spec))
	}

	for idx, layer := range spec {
		switch layer.Kind {
		case LayerInput, LayerHidden, LayerOutput:
		default:
			return configErrorf("invalid layer type %q at index %d: expected input, hidden, or output", layer.Kind, idx)
		}
		if layer.Width <= 0 {
			return configErrorf("layer at index %d must have neurons > 0 (got %d)", idx, layer.Width)
		}
		if !supportedActivations[layer.Activation] {
			return configErrorf("unsupported activation %q at index %d", layer.Activation, idx)
		}
	}

	first, last := spec[0], spec[len(spec)-1]
	if first.Kind != LayerInput {
		return configErrorf("first layer must be of type input (got %q)", first.Kind)
	}
	if last.Kind != LayerOutput {
		return configErrorf("last layer must be of type output (got %q)", last.Kind)
	}
	for idx, layer := range spec[1 : len(spec)-1] {
		if layer.Kind != LayerHidden {
			return configErrorf("all intermediate layers must be hidden: layer at index %d is %q", idx+1, layer.Kind)
		}
	}

	if first.Width != inputDim {
		return configErrorf("input layer neurons must match input dimension: got %d, want %d", first.Width, inputDim)
	}
	if last.Width != outputDim {
		return configErrorf("output layer neurons must match output dimension: got %d, want %d", last.Width, outputDim)
	}

	// The network always emits raw scores so the loss can apply its own
	// normalization; a final softmax is accepted for classification but
	// ignored at build time.
	final := last.Activation
	switch task {
	case TaskClassification:
		if final != "" && final != "linear" && final != "softmax" {
			return configErrorf("final layer activation for classification must be linear, softmax, or omitted (got %q)", final)
		}
	case TaskRegression:
		if final != "" && final != "linear" {
			return configErrorf("final layer activation for regression must be linear or omitted (got %q)", final)
		}
	}

	return nil
}
