package datasets

import "math/rand"

// trainTestSplit shuffles the data with the given seed and splits off the
// requested test fraction. At least one sample lands on each side when the
// input allows it.
func trainTestSplit(X [][]float64, y []float64, testSize float64, seed int64) (XTrain [][]float64, yTrain []float64, XTest [][]float64, yTest []float64) {
	n := len(X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	nTest := int(float64(n) * testSize)
	if nTest < 1 && n > 1 {
		nTest = 1
	}
	if nTest >= n {
		nTest = n - 1
	}

	for i, k := range idx {
		if i < nTest {
			XTest = append(XTest, X[k])
			yTest = append(yTest, y[k])
		} else {
			XTrain = append(XTrain, X[k])
			yTrain = append(yTrain, y[k])
		}
	}
	return XTrain, yTrain, XTest, yTest
}

func truncate(X [][]float64, y []float64, maxSamples int) ([][]float64, []float64) {
	if maxSamples > 0 && maxSamples < len(X) {
		return X[:maxSamples], y[:maxSamples]
	}
	return X, y
}
