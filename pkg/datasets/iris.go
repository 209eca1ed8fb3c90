package datasets

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"
)

//go:embed iris.csv
var irisCSV []byte

var irisSpecies = map[string]float64{
	"setosa":     0,
	"versicolor": 1,
	"virginica":  2,
}

func init() {
	Register("iris", func(opts Options) Dataset {
		return &irisDataset{opts: opts}
	})
}

type irisDataset struct {
	opts   Options
	scaler StandardScaler
	fitted bool
}

func (d *irisDataset) Meta() Metadata {
	return Metadata{
		ID:          "iris",
		Name:        "Iris",
		TaskType:    TaskClassification,
		NumFeatures: 4,
		NumSamples:  150,
		NumClasses:  3,
		Description: "Simple 3-class classification on flower measurements (4 features).",
	}
}

func (d *irisDataset) Hyperparameters() Hyperparameters {
	return Hyperparameters{Epochs: 50, LearningRate: 0.01, BatchSize: 32, Optimizer: "adam"}
}

func (d *irisDataset) Load(testSize float64) (Split, error) {
	X, y, err := parseIris()
	if err != nil {
		return Split{}, err
	}
	X, y = truncate(X, y, d.opts.MaxSamples)

	XTrain, yTrain, XTest, yTest := trainTestSplit(X, y, testSize, d.opts.seed())
	XTrain = d.scaler.FitTransform(XTrain)
	XTest = d.scaler.Transform(XTest)
	d.fitted = true

	return Split{XTrain: XTrain, YTrain: yTrain, XTest: XTest, YTest: yTest}, nil
}

func (d *irisDataset) Transform(inputs []float64) ([]float64, error) {
	if len(inputs) != 4 {
		return nil, fmt.Errorf("iris expects 4 features, got %d", len(inputs))
	}
	return d.scaler.TransformRow(inputs), nil
}

func parseIris() ([][]float64, []float64, error) {
	reader := csv.NewReader(bytes.NewReader(irisCSV))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse iris data: %w", err)
	}

	var X [][]float64
	var y []float64
	for i, record := range records[1:] { // skip header
		row := make([]float64, 4)
		for j := 0; j < 4; j++ {
			row[j], err = strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("iris row %d: %w", i+1, err)
			}
		}
		label, ok := irisSpecies[record[4]]
		if !ok {
			return nil, nil, fmt.Errorf("iris row %d: unknown species %q", i+1, record[4])
		}
		X = append(X, row)
		y = append(y, label)
	}
	return X, y, nil
}
