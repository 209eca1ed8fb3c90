package nn

import (
	"errors"
	"math"
	"testing"
)

func validClassifierSpec() []LayerSpec {
	return []LayerSpec{
		{Kind: LayerInput, Width: 4},
		{Kind: LayerHidden, Width: 8, Activation: "relu"},
		{Kind: LayerOutput, Width: 3, Activation: "softmax"},
	}
}

func TestValidateSpecRejectsEachViolation(t *testing.T) {
	cases := []struct {
		name string
		spec []LayerSpec
		task string
	}{
		{
			name: "too few layers",
			spec: []LayerSpec{{Kind: LayerInput, Width: 4}},
			task: TaskClassification,
		},
		{
			name: "first layer not input",
			spec: []LayerSpec{
				{Kind: LayerHidden, Width: 4},
				{Kind: LayerOutput, Width: 3},
			},
			task: TaskClassification,
		},
		{
			name: "last layer not output",
			spec: []LayerSpec{
				{Kind: LayerInput, Width: 4},
				{Kind: LayerHidden, Width: 3},
			},
			task: TaskClassification,
		},
		{
			name: "intermediate layer not hidden",
			spec: []LayerSpec{
				{Kind: LayerInput, Width: 4},
				{Kind: LayerInput, Width: 8},
				{Kind: LayerOutput, Width: 3},
			},
			task: TaskClassification,
		},
		{
			name: "zero neurons",
			spec: []LayerSpec{
				{Kind: LayerInput, Width: 4},
				{Kind: LayerHidden, Width: 0},
				{Kind: LayerOutput, Width: 3},
			},
			task: TaskClassification,
		},
		{
			name: "unknown activation",
			spec: []LayerSpec{
				{Kind: LayerInput, Width: 4},
				{Kind: LayerHidden, Width: 8, Activation: "swish"},
				{Kind: LayerOutput, Width: 3},
			},
			task: TaskClassification,
		},
		{
			name: "input width mismatch",
			spec: []LayerSpec{
				{Kind: LayerInput, Width: 5},
				{Kind: LayerHidden, Width: 8, Activation: "relu"},
				{Kind: LayerOutput, Width: 3},
			},
			task: TaskClassification,
		},
		{
			name: "output width mismatch",
			spec: []LayerSpec{
				{Kind: LayerInput, Width: 4},
				{Kind: LayerHidden, Width: 8, Activation: "relu"},
				{Kind: LayerOutput, Width: 2},
			},
			task: TaskClassification,
		},
		{
			name: "sigmoid on classification output",
			spec: []LayerSpec{
				{Kind: LayerInput, Width: 4},
				{Kind: LayerHidden, Width: 8, Activation: "relu"},
				{Kind: LayerOutput, Width: 3, Activation: "sigmoid"},
			},
			task: TaskClassification,
		},
		{
			name: "softmax on regression output",
			spec: []LayerSpec{
				{Kind: LayerInput, Width: 4},
				{Kind: LayerHidden, Width: 8, Activation: "relu"},
				{Kind: LayerOutput, Width: 3, Activation: "softmax"},
			},
			task: TaskRegression,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSpec(tc.spec, 4, 3, tc.task)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var configErr *ConfigError
			if !errors.As(err, &configErr) {
				t.Fatalf("expected *ConfigError, got %T: %v", err, err)
			}
		})
	}
}

func TestValidateSpecAcceptsValidSpec(t *testing.T) {
	if err := ValidateSpec(validClassifierSpec(), 4, 3, TaskClassification); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildRejectsInvalidTask(t *testing.T) {
	if _, err := Build(validClassifierSpec(), 4, 3, "clustering", 1); err == nil {
		t.Fatal("expected error for unknown task type")
	}
}

func TestNetworkShapes(t *testing.T) {
	net, err := Build(validClassifierSpec(), 4, 3, TaskClassification, 1)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if net.InputDim() != 4 || net.OutputDim() != 3 {
		t.Fatalf("unexpected dims: in=%d out=%d", net.InputDim(), net.OutputDim())
	}

	out := net.Forward([][]float64{{0.1, 0.2, 0.3, 0.4}, {1, 0, -1, 0.5}}, false)
	if len(out) != 2 || len(out[0]) != 3 {
		t.Fatalf("unexpected output shape: %dx%d", len(out), len(out[0]))
	}
}

// A two-layer network trained on XOR should drive cross-entropy loss down;
// this exercises forward, backward, and the optimizer end to end.
func TestNetworkLearnsXOR(t *testing.T) {
	spec := []LayerSpec{
		{Kind: LayerInput, Width: 2},
		{Kind: LayerHidden, Width: 8, Activation: "tanh"},
		{Kind: LayerOutput, Width: 2},
	}
	net, err := Build(spec, 2, 2, TaskClassification, 7)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	inputs := [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	targets := []float64{0, 1, 1, 0}
	loss := CrossEntropy()
	optimizer := NewAdam(0.05)

	initial := loss.Compute(net.Forward(inputs, false), targets)
	for i := 0; i < 500; i++ {
		outputs := net.Forward(inputs, true)
		net.Backward(loss.Gradient(outputs, targets))
		optimizer.Step(net.Parameters(), net.Gradients())
	}
	final := loss.Compute(net.Forward(inputs, false), targets)

	if math.IsNaN(final) {
		t.Fatal("training produced NaN loss")
	}
	if final >= initial {
		t.Fatalf("loss did not decrease: initial=%f final=%f", initial, final)
	}
	for i, in := range inputs {
		if Argmax(net.Predict(in)) != int(targets[i]) {
			t.Fatalf("misclassified %v after training", in)
		}
	}
}

func TestSoftmaxIsNormalized(t *testing.T) {
	probs := Softmax([]float64{1000, 999, 998})
	var sum float64
	for _, p := range probs {
		if math.IsNaN(p) {
			t.Fatal("softmax overflowed on large logits")
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum to %f, want 1", sum)
	}
	if Argmax(probs) != 0 {
		t.Fatalf("argmax = %d, want 0", Argmax(probs))
	}
}

func TestCrossEntropyNaNOnBadTarget(t *testing.T) {
	loss := CrossEntropy()
	v := loss.Compute([][]float64{{0.5, 0.5}}, []float64{5})
	if !math.IsNaN(v) {
		t.Fatalf("expected NaN for out-of-range target, got %f", v)
	}
}

func TestOptimizerByNameFallsBackToAdam(t *testing.T) {
	cases := map[string]string{
		"sgd":      "sgd",
		"RMSProp":  "rmsprop",
		"adagrad":  "adagrad",
		"adam":     "adam",
		"":         "adam",
		"momentum": "adam",
	}
	for name, want := range cases {
		if got := ByName(name, 0.01).Name(); got != want {
			t.Fatalf("ByName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestMSEGradientDirection(t *testing.T) {
	loss := MSE()
	outputs := [][]float64{{2.0}}
	targets := []float64{1.0}
	grad := loss.Gradient(outputs, targets)
	if grad[0][0] <= 0 {
		t.Fatalf("gradient should be positive when output exceeds target, got %f", grad[0][0])
	}
}
