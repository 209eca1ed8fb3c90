// Package datasets provides the curated datasets available for training,
// each with preconfigured hyperparameters and preprocessing that is reused
// verbatim at prediction time.
package datasets

const (
	TaskClassification = "classification"
	TaskRegression     = "regression"
)

// Metadata describes a dataset independent of any loaded instance.
type Metadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TaskType    string `json:"task_type"`
	NumFeatures int    `json:"num_features"`
	NumSamples  int    `json:"num_samples"`
	NumClasses  int    `json:"num_classes"`
	Description string `json:"description"`
}

// Hyperparameters are the dataset's suggested training defaults; callers may
// override any of them per run.
type Hyperparameters struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
	Optimizer    string  `json:"optimizer"`
}

// Split holds preprocessed train/test data. Classification targets are class
// indices stored as float64; regression targets are scalar values.
type Split struct {
	XTrain [][]float64
	YTrain []float64
	XTest  [][]float64
	YTest  []float64
}

// Dataset is one loadable dataset instance. Load fits any preprocessing
// (e.g. feature scaling) on the train split; Transform applies that same
// preprocessing to a single raw input for inference. A Dataset instance is
// therefore stateful and must be retained by whoever intends to call
// Transform later.
type Dataset interface {
	Meta() Metadata
	Hyperparameters() Hyperparameters
	Load(testSize float64) (Split, error)
	Transform(inputs []float64) ([]float64, error)
}
