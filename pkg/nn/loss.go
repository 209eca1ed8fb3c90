package nn

import "math"

// Loss computes the mean batch loss and its gradient with respect to the
// network's raw outputs. Targets are class indices for classification and
// scalar values for regression.
type Loss interface {
	Compute(outputs [][]float64, targets []float64) float64
	Gradient(outputs [][]float64, targets []float64) [][]float64
	Name() string
}

// CrossEntropyLoss operates on raw logits and folds the softmax into both
// the loss and its gradient, matching the convention that the network never
// normalizes its own outputs.
type CrossEntropyLoss struct{}

func CrossEntropy() Loss { return &CrossEntropyLoss{} }

func (c *CrossEntropyLoss) Compute(outputs [][]float64, targets []float64) float64 {
	const eps = 1e-15
	var sum float64
	for i, row := range outputs {
		probs := Softmax(row)
		target := int(targets[i])
		if target < 0 || target >= len(probs) {
			return math.NaN()
		}
		sum -= math.Log(math.Max(probs[target], eps))
	}
	return sum / float64(len(outputs))
}

func (c *CrossEntropyLoss) Gradient(outputs [][]float64, targets []float64) [][]float64 {
	grad := make([][]float64, len(outputs))
	scale := 1.0 / float64(len(outputs))
	for i, row := range outputs {
		probs := Softmax(row)
		g := make([]float64, len(row))
		target := int(targets[i])
		for j, p := range probs {
			g[j] = p * scale
		}
		if target >= 0 && target < len(g) {
			g[target] -= scale
		}
		grad[i] = g
	}
	return grad
}

func (c *CrossEntropyLoss) Name() string { return "cross_entropy" }

// MSELoss for single-output regression.
type MSELoss struct{}

func MSE() Loss { return &MSELoss{} }

func (m *MSELoss) Compute(outputs [][]float64, targets []float64) float64 {
	var sum float64
	for i, row := range outputs {
		diff := row[0] - targets[i]
		sum += diff * diff
	}
	return sum / float64(len(outputs))
}

func (m *MSELoss) Gradient(outputs [][]float64, targets []float64) [][]float64 {
	grad := make([][]float64, len(outputs))
	scale := 2.0 / float64(len(outputs))
	for i, row := range outputs {
		g := make([]float64, len(row))
		g[0] = scale * (row[0] - targets[i])
		grad[i] = g
	}
	return grad
}

func (m *MSELoss) Name() string { return "mse" }

// LossFor selects the loss by task type: cross-entropy for classification,
// mean squared error for regression.
func LossFor(task string) Loss {
	if task == TaskClassification {
		return CrossEntropy()
	}
	return MSE()
}
