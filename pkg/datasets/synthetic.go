package datasets

import (
	"fmt"
	"math/rand"
)

func init() {
	Register("synthetic", func(opts Options) Dataset {
		return &syntheticDataset{opts: opts}
	})
}

// syntheticDataset is a non-linear 2D binary classification problem (XOR
// quadrants with uniform noise), useful for exercising training without any
// real data dependency.
type syntheticDataset struct {
	opts   Options
	scaler StandardScaler
}

const syntheticSamples = 1000

func (d *syntheticDataset) Meta() Metadata {
	return Metadata{
		ID:          "synthetic",
		Name:        "Synthetic (XOR)",
		TaskType:    TaskClassification,
		NumFeatures: 2,
		NumSamples:  syntheticSamples,
		NumClasses:  2,
		Description: "Synthetic non-linear 2D XOR classification.",
	}
}

func (d *syntheticDataset) Hyperparameters() Hyperparameters {
	return Hyperparameters{Epochs: 100, LearningRate: 0.01, BatchSize: 64, Optimizer: "adam"}
}

func (d *syntheticDataset) Load(testSize float64) (Split, error) {
	n := syntheticSamples
	if d.opts.MaxSamples > 0 {
		n = d.opts.MaxSamples
	}
	if n < 100 {
		n = 100
	}
	X, y := generateXOR(n, d.opts.seed())

	XTrain, yTrain, XTest, yTest := trainTestSplit(X, y, testSize, d.opts.seed())
	XTrain = d.scaler.FitTransform(XTrain)
	XTest = d.scaler.Transform(XTest)

	return Split{XTrain: XTrain, YTrain: yTrain, XTest: XTest, YTest: yTest}, nil
}

func (d *syntheticDataset) Transform(inputs []float64) ([]float64, error) {
	if len(inputs) != 2 {
		return nil, fmt.Errorf("synthetic expects 2 features, got %d", len(inputs))
	}
	return d.scaler.TransformRow(inputs), nil
}

func generateXOR(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := rng.Float64()*2 - 1
		x1 := rng.Float64()*2 - 1
		X[i] = []float64{x0, x1}
		if (x0 > 0) != (x1 > 0) {
			y[i] = 1
		}
	}
	return X, y
}
