package datasets

import (
	"fmt"
	"math/rand"
)

func init() {
	Register("wine_quality", func(opts Options) Dataset {
		return &wineDataset{opts: opts}
	})
}

// wineDataset mirrors the red wine quality problem: 11 physico-chemical
// features, quality classes 0-5 (ratings 3 through 8), generated
// deterministically from per-class centers.
type wineDataset struct {
	opts   Options
	scaler StandardScaler
}

const (
	wineSamples  = 1600
	wineFeatures = 11
	wineClasses  = 6
)

// Per-class feature centers: acidity, volatile acidity, citric acid,
// residual sugar, chlorides, free SO2, total SO2, density, pH, sulphates,
// alcohol. Higher quality trends toward lower volatile acidity and higher
// alcohol.
var wineClassWeights = []float64{0.01, 0.03, 0.43, 0.40, 0.11, 0.02}

func (d *wineDataset) Meta() Metadata {
	return Metadata{
		ID:          "wine_quality",
		Name:        "Wine Quality (Red)",
		TaskType:    TaskClassification,
		NumFeatures: wineFeatures,
		NumSamples:  wineSamples,
		NumClasses:  wineClasses,
		Description: "Multi-class quality prediction on red wine (11 numeric features).",
	}
}

func (d *wineDataset) Hyperparameters() Hyperparameters {
	return Hyperparameters{Epochs: 30, LearningRate: 0.001, BatchSize: 128, Optimizer: "adam"}
}

func (d *wineDataset) Load(testSize float64) (Split, error) {
	n := wineSamples
	if d.opts.MaxSamples > 0 && d.opts.MaxSamples < n {
		n = d.opts.MaxSamples
	}
	X, y := generateWine(n, d.opts.seed())

	XTrain, yTrain, XTest, yTest := trainTestSplit(X, y, testSize, d.opts.seed())
	XTrain = d.scaler.FitTransform(XTrain)
	XTest = d.scaler.Transform(XTest)

	return Split{XTrain: XTrain, YTrain: yTrain, XTest: XTest, YTest: yTest}, nil
}

func (d *wineDataset) Transform(inputs []float64) ([]float64, error) {
	if len(inputs) != wineFeatures {
		return nil, fmt.Errorf("wine_quality expects %d features, got %d", wineFeatures, len(inputs))
	}
	return d.scaler.TransformRow(inputs), nil
}

func generateWine(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))

	base := []float64{8.3, 0.53, 0.27, 2.5, 0.087, 15.9, 46.5, 0.9967, 3.31, 0.66, 10.4}
	spread := []float64{1.7, 0.18, 0.19, 1.4, 0.047, 10.5, 32.9, 0.0019, 0.15, 0.17, 1.1}

	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		class := sampleClass(rng, wineClassWeights)
		// class offset: quality shifts volatile acidity down and alcohol up
		shift := float64(class) - 2.5
		row := make([]float64, wineFeatures)
		for j := range row {
			row[j] = base[j] + rng.NormFloat64()*spread[j]
		}
		row[1] -= 0.06 * shift // volatile acidity
		row[9] += 0.04 * shift // sulphates
		row[10] += 0.45 * shift // alcohol
		X[i] = row
		y[i] = float64(class)
	}
	return X, y
}

func sampleClass(rng *rand.Rand, weights []float64) int {
	r := rng.Float64()
	var acc float64
	for class, w := range weights {
		acc += w
		if r < acc {
			return class
		}
	}
	return len(weights) - 1
}
