package training

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mlpstudio/platform/pkg/datasets"
	"github.com/mlpstudio/platform/pkg/nn"
)

// nanDataset reports two classes but labels everything with an impossible
// class index, which drives the cross-entropy loss to NaN on the first batch.
type nanDataset struct{}

func (nanDataset) Meta() datasets.Metadata {
	return datasets.Metadata{
		ID:          "nan_inject",
		Name:        "NaN Injection Fixture",
		TaskType:    datasets.TaskClassification,
		NumFeatures: 2,
		NumSamples:  40,
		NumClasses:  2,
	}
}

func (nanDataset) Hyperparameters() datasets.Hyperparameters {
	return datasets.Hyperparameters{Epochs: 5, LearningRate: 0.01, BatchSize: 8, Optimizer: "sgd"}
}

func (nanDataset) Load(testSize float64) (datasets.Split, error) {
	X := make([][]float64, 40)
	y := make([]float64, 40)
	for i := range X {
		X[i] = []float64{float64(i), float64(i % 3)}
		y[i] = 7 // out of range for a 2-class problem
	}
	return datasets.Split{XTrain: X[:32], YTrain: y[:32], XTest: X[32:], YTest: y[32:]}, nil
}

func (nanDataset) Transform(inputs []float64) ([]float64, error) { return inputs, nil }

func init() {
	datasets.Register("nan_inject", func(datasets.Options) datasets.Dataset {
		return nanDataset{}
	})
}

func irisLayers() []nn.LayerSpec {
	return []nn.LayerSpec{
		{Kind: nn.LayerInput, Width: 4},
		{Kind: nn.LayerHidden, Width: 8, Activation: "relu"},
		{Kind: nn.LayerOutput, Width: 3, Activation: "softmax"},
	}
}

func syntheticLayers() []nn.LayerSpec {
	return []nn.LayerSpec{
		{Kind: nn.LayerInput, Width: 2},
		{Kind: nn.LayerHidden, Width: 8, Activation: "relu"},
		{Kind: nn.LayerOutput, Width: 2, Activation: "softmax"},
	}
}

func intPtr(v int) *int { return &v }

// waitUntil polls cond until it holds or the deadline expires.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestEngineCompletesIrisRun(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID: "iris",
		Layers:    irisLayers(),
		Epochs:    intPtr(3),
	})
	final := engine.Train("iris-model")

	if final.Status != StatusCompleted {
		t.Fatalf("status = %q (%s), want completed", final.Status, final.ErrorMessage)
	}
	if final.TotalEpochs != 3 || final.CurrentEpoch != 3 {
		t.Fatalf("epochs = %d/%d, want 3/3", final.CurrentEpoch, final.TotalEpochs)
	}
	if len(final.Metrics) != 3 {
		t.Fatalf("expected 3 metrics, got %d", len(final.Metrics))
	}
	for i, m := range final.Metrics {
		if m.Epoch != i+1 {
			t.Fatalf("metric %d has epoch %d, want %d", i, m.Epoch, i+1)
		}
		if m.Accuracy == nil {
			t.Fatalf("classification metric %d missing accuracy", i)
		}
		if math.IsNaN(m.Loss) {
			t.Fatalf("metric %d has NaN loss", i)
		}
	}
	if final.EndTime == nil {
		t.Fatal("terminal session missing end time")
	}
	if final.SessionID == "" {
		t.Fatal("missing session id")
	}
}

func TestEngineCompletesRegressionRun(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID: "california_housing",
		Layers: []nn.LayerSpec{
			{Kind: nn.LayerInput, Width: 8},
			{Kind: nn.LayerHidden, Width: 16, Activation: "relu"},
			{Kind: nn.LayerOutput, Width: 1, Activation: "linear"},
		},
		Epochs:     intPtr(2),
		MaxSamples: 500,
	})
	final := engine.Train("housing-model")

	if final.Status != StatusCompleted {
		t.Fatalf("status = %q (%s), want completed", final.Status, final.ErrorMessage)
	}
	if len(final.Metrics) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(final.Metrics))
	}
	for i, m := range final.Metrics {
		if m.Accuracy != nil {
			t.Fatalf("regression metric %d should not carry accuracy", i)
		}
	}
}

func TestEngineFailsOnNaNLoss(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID: "nan_inject",
		Layers:    syntheticLayers(),
		Epochs:    intPtr(5),
	})
	final := engine.Train("bad-model")

	if final.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", final.Status)
	}
	if final.CurrentEpoch != 1 {
		t.Fatalf("current epoch = %d, want 1", final.CurrentEpoch)
	}
	if len(final.Metrics) != 1 {
		t.Fatalf("expected exactly the failing epoch's metric, got %d", len(final.Metrics))
	}
	if !math.IsNaN(final.Metrics[0].Loss) {
		t.Fatalf("failing epoch loss = %f, want NaN", final.Metrics[0].Loss)
	}
	if final.ErrorMessage == "" {
		t.Fatal("failed session missing error message")
	}
}

func TestEngineFailsOnUnknownDataset(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID: "no_such_dataset",
		Layers:    syntheticLayers(),
	})
	final := engine.Train("m")

	if final.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Fatal("expected error message for unknown dataset")
	}
}

func TestEnginePredictBeforeTraining(t *testing.T) {
	engine := NewEngine(EngineConfig{DatasetID: "iris", Layers: irisLayers()})
	if _, err := engine.Predict([]float64{1, 2, 3, 4}); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
}

func TestEnginePredictAfterCompletion(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID: "iris",
		Layers:    irisLayers(),
		Epochs:    intPtr(5),
	})
	if final := engine.Train("iris-model"); final.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}

	result, err := engine.Predict([]float64{5.1, 3.5, 1.4, 0.2})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	class, ok := result.Prediction.(int)
	if !ok {
		t.Fatalf("classification prediction is %T, want int", result.Prediction)
	}
	if class < 0 || class > 2 {
		t.Fatalf("class %d out of range", class)
	}
	if len(result.Probabilities) != 3 {
		t.Fatalf("expected 3 probabilities, got %d", len(result.Probabilities))
	}
	var sum float64
	for _, p := range result.Probabilities {
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("probabilities sum to %f", sum)
	}
	if result.Confidence == nil || *result.Confidence != result.Probabilities[class] {
		t.Fatal("confidence must equal the predicted class probability")
	}
}

func TestEngineStopRetainsNetworkForPrediction(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID:  "synthetic",
		Layers:     syntheticLayers(),
		Epochs:     intPtr(100000),
		MaxSamples: 100,
	})
	done := make(chan *Session, 1)
	go func() { done <- engine.Train("long-model") }()

	<-engine.Published()
	waitUntil(t, 5*time.Second, func() bool {
		return engine.Snapshot().CurrentEpoch >= 1
	}, "first epoch")

	engine.RequestStop()
	final := <-done

	if final.Status != StatusStopped {
		t.Fatalf("status = %q, want stopped", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Fatal("stopped session should carry the stop message")
	}
	if final.CurrentEpoch >= final.TotalEpochs {
		t.Fatal("stop should interrupt before all epochs complete")
	}

	result, err := engine.Predict([]float64{0.5, -0.5})
	if err != nil {
		t.Fatalf("predict on stopped session failed: %v", err)
	}
	if class := result.Prediction.(int); class != 0 && class != 1 {
		t.Fatalf("class %d out of range", class)
	}
}

func TestEnginePauseAndResume(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID:  "synthetic",
		Layers:     syntheticLayers(),
		Epochs:     intPtr(100000),
		MaxSamples: 100,
	})
	done := make(chan *Session, 1)
	go func() { done <- engine.Train("pausable-model") }()

	<-engine.Published()
	engine.RequestPause()
	waitUntil(t, 5*time.Second, func() bool {
		return engine.Snapshot().Status == StatusPaused
	}, "paused status")

	frozen := engine.Snapshot().CurrentEpoch
	time.Sleep(20 * time.Millisecond)
	if got := engine.Snapshot().CurrentEpoch; got != frozen {
		t.Fatalf("epoch advanced from %d to %d while paused", frozen, got)
	}

	engine.Resume()
	waitUntil(t, 5*time.Second, func() bool {
		return engine.Snapshot().CurrentEpoch > frozen
	}, "progress after resume")

	engine.RequestStop()
	if final := <-done; final.Status != StatusStopped {
		t.Fatalf("status = %q, want stopped", final.Status)
	}
}

func TestEngineStopWhilePaused(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID:  "synthetic",
		Layers:     syntheticLayers(),
		Epochs:     intPtr(100000),
		MaxSamples: 100,
	})
	done := make(chan *Session, 1)
	go func() { done <- engine.Train("paused-then-stopped") }()

	<-engine.Published()
	engine.RequestPause()
	waitUntil(t, 5*time.Second, func() bool {
		return engine.Snapshot().Status == StatusPaused
	}, "paused status")

	engine.RequestStop()
	final := <-done
	if final.Status != StatusStopped {
		t.Fatalf("status = %q, want stopped", final.Status)
	}
}

// A stop request can land after the loop's final epoch; the optimistic
// stopped status must stick with its message instead of a half-applied
// terminal state.
func TestStopOverrideWinsOverLateCompletion(t *testing.T) {
	engine := NewEngine(EngineConfig{DatasetID: "synthetic", Layers: syntheticLayers()})
	engine.session = &Session{SessionID: engine.cfg.SessionID, Status: StatusRunning}

	engine.overrideStatus(StatusStopped, stoppedByUserMessage)
	engine.finish(StatusCompleted, "")

	snapshot := engine.Snapshot()
	if snapshot.Status != StatusStopped {
		t.Fatalf("status = %q, want stopped", snapshot.Status)
	}
	if snapshot.ErrorMessage != stoppedByUserMessage {
		t.Fatalf("error message = %q, want %q", snapshot.ErrorMessage, stoppedByUserMessage)
	}
}

func TestOverrideStatusNeverRevivesTerminalSession(t *testing.T) {
	engine := NewEngine(EngineConfig{DatasetID: "synthetic", Layers: syntheticLayers()})
	engine.session = &Session{SessionID: engine.cfg.SessionID, Status: StatusRunning}

	engine.finish(StatusFailed, "NaN loss detected")
	engine.overrideStatus(StatusStopped, stoppedByUserMessage)

	snapshot := engine.Snapshot()
	if snapshot.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", snapshot.Status)
	}
	if snapshot.ErrorMessage != "NaN loss detected" {
		t.Fatalf("error message = %q, want the failure preserved", snapshot.ErrorMessage)
	}
}

func TestSessionPollingIsIdempotent(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID: "iris",
		Layers:    irisLayers(),
		Epochs:    intPtr(2),
	})
	engine.Train("m")

	a := engine.Snapshot()
	b := engine.Snapshot()
	if a.Status != b.Status || a.CurrentEpoch != b.CurrentEpoch || len(a.Metrics) != len(b.Metrics) {
		t.Fatal("consecutive snapshots differ without training progress")
	}
	// Snapshots must be independent copies.
	a.Metrics[0].Loss = -1
	if b.Metrics[0].Loss == -1 {
		t.Fatal("snapshots share metric storage")
	}
}

func TestMetricsSinceReturnsSuffix(t *testing.T) {
	engine := NewEngine(EngineConfig{
		DatasetID: "iris",
		Layers:    irisLayers(),
		Epochs:    intPtr(4),
	})
	final := engine.Train("m")

	tail := final.MetricsSince(2)
	if len(tail) != 2 {
		t.Fatalf("expected 2 metrics after epoch 2, got %d", len(tail))
	}
	if tail[0].Epoch != 3 || tail[1].Epoch != 4 {
		t.Fatalf("unexpected suffix epochs: %d, %d", tail[0].Epoch, tail[1].Epoch)
	}
	if got := final.MetricsSince(10); len(got) != 0 {
		t.Fatalf("expected empty suffix, got %d", len(got))
	}
}
