package nn

import "math"

func applyActivation(name string, z []float64) []float64 {
	out := make([]float64, len(z))
	switch name {
	case "relu":
		for i, v := range z {
			if v > 0 {
				out[i] = v
			}
		}
	case "sigmoid":
		for i, v := range z {
			out[i] = sigmoid(v)
		}
	case "tanh":
		for i, v := range z {
			out[i] = math.Tanh(v)
		}
	case "softmax":
		return Softmax(z)
	default: // "" or "linear"
		copy(out, z)
	}
	return out
}

// activationGrad computes dL/dz from dL/da using the cached pre-activation z
// and activation output a.
func activationGrad(name string, z, a, grad []float64) []float64 {
	out := make([]float64, len(grad))
	switch name {
	case "relu":
		for i, g := range grad {
			if z[i] > 0 {
				out[i] = g
			}
		}
	case "sigmoid":
		for i, g := range grad {
			out[i] = g * a[i] * (1 - a[i])
		}
	case "tanh":
		for i, g := range grad {
			out[i] = g * (1 - a[i]*a[i])
		}
	case "softmax":
		// Full Jacobian: dz_i = a_i * (g_i - sum_j g_j a_j).
		var dot float64
		for j, g := range grad {
			dot += g * a[j]
		}
		for i, g := range grad {
			out[i] = a[i] * (g - dot)
		}
	default:
		copy(out, grad)
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Softmax converts raw scores into a probability distribution. Shifting by
// the row max keeps the exponentials finite.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	maxVal := math.Inf(-1)
	for _, v := range logits {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index of the largest score.
func Argmax(scores []float64) int {
	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return best
}
