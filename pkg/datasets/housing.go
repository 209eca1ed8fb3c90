package datasets

import (
	"fmt"
	"math"
	"math/rand"
)

func init() {
	Register("california_housing", func(opts Options) Dataset {
		return &housingDataset{opts: opts}
	})
}

// housingDataset mirrors the shape of the California Housing regression
// problem (8 numeric features, scalar median-value target) with a
// deterministic generated sample, so the service stays self-contained.
type housingDataset struct {
	opts   Options
	scaler StandardScaler
}

const housingSamples = 20000

func (d *housingDataset) Meta() Metadata {
	return Metadata{
		ID:          "california_housing",
		Name:        "California Housing",
		TaskType:    TaskRegression,
		NumFeatures: 8,
		NumSamples:  housingSamples,
		NumClasses:  1,
		Description: "Predict median house values from 8 numeric features (regression).",
	}
}

func (d *housingDataset) Hyperparameters() Hyperparameters {
	return Hyperparameters{Epochs: 20, LearningRate: 0.001, BatchSize: 512, Optimizer: "adam"}
}

func (d *housingDataset) Load(testSize float64) (Split, error) {
	n := housingSamples
	if d.opts.MaxSamples > 0 && d.opts.MaxSamples < n {
		n = d.opts.MaxSamples
	}
	X, y := generateHousing(n, d.opts.seed())

	XTrain, yTrain, XTest, yTest := trainTestSplit(X, y, testSize, d.opts.seed())
	XTrain = d.scaler.FitTransform(XTrain)
	XTest = d.scaler.Transform(XTest)

	return Split{XTrain: XTrain, YTrain: yTrain, XTest: XTest, YTest: yTest}, nil
}

func (d *housingDataset) Transform(inputs []float64) ([]float64, error) {
	if len(inputs) != 8 {
		return nil, fmt.Errorf("california_housing expects 8 features, got %d", len(inputs))
	}
	return d.scaler.TransformRow(inputs), nil
}

// generateHousing draws features roughly matching the marginal ranges of the
// original census data (median income, house age, rooms, bedrooms,
// population, occupancy, latitude, longitude) and a value target that is a
// noisy nonlinear function of them.
func generateHousing(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		income := math.Abs(rng.NormFloat64()*1.9 + 3.8)
		age := 1 + rng.Float64()*51
		rooms := math.Abs(rng.NormFloat64()*2.4 + 5.4)
		bedrooms := math.Abs(rng.NormFloat64()*0.4 + 1.1)
		population := math.Abs(rng.NormFloat64()*1100 + 1400)
		occupancy := math.Abs(rng.NormFloat64()*1.1 + 3.0)
		latitude := 32.5 + rng.Float64()*9.5
		longitude := -124.3 + rng.Float64()*10.0

		value := 0.45*income +
			0.02*rooms -
			0.11*occupancy +
			0.004*age -
			0.09*math.Abs(latitude-34.0) +
			0.35*math.Sin(income) +
			rng.NormFloat64()*0.25
		if value < 0.15 {
			value = 0.15
		}
		if value > 5.0 {
			value = 5.0
		}

		X[i] = []float64{income, age, rooms, bedrooms, population, occupancy, latitude, longitude}
		y[i] = value
	}
	return X, y
}
