package training

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlpstudio/platform/pkg/common/logger"
	"github.com/mlpstudio/platform/pkg/datasets"
	"github.com/mlpstudio/platform/pkg/nn"
)

const stoppedByUserMessage = "Training stopped by user"

// EngineConfig configures one training run. Nil override fields fall back
// to the dataset's suggested hyperparameters; MaxSamples truncates the
// dataset when positive. SessionID is generated when empty; the manager
// assigns it up front so the run is identifiable before the session is
// published.
type EngineConfig struct {
	SessionID    string
	DatasetID    string
	Layers       []nn.LayerSpec
	Epochs       *int
	LearningRate *float64
	BatchSize    *int
	Optimizer    string
	MaxSamples   int
	Seed         int64
}

// Engine owns one model's training run: it prepares data, builds the
// network, runs the epoch loop, and retains the trained network plus the
// dataset's preprocessing for later prediction. Train runs on a worker
// goroutine; all other methods are safe to call from any goroutine.
type Engine struct {
	cfg       EngineConfig
	ctl       *control
	published chan struct{}

	mu      sync.RWMutex
	session *Session
	net     *nn.Network
	dataset datasets.Dataset
	task    string
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	return &Engine{
		cfg:       cfg,
		ctl:       newControl(),
		published: make(chan struct{}),
	}
}

// Published is closed once the initial session is visible to other
// goroutines; the manager's bounded init wait selects on it.
func (e *Engine) Published() <-chan struct{} {
	return e.published
}

// Snapshot returns a deep copy of the current session, or nil before Train
// has published one.
func (e *Engine) Snapshot() *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return nil
	}
	return e.session.Clone()
}

// RequestStop asks the loop to stop at the next epoch boundary. Idempotent;
// wakes a paused loop.
func (e *Engine) RequestStop() { e.ctl.requestStop() }

// RequestPause asks the loop to pause after the current epoch.
func (e *Engine) RequestPause() { e.ctl.requestPause() }

// Resume releases a paused loop.
func (e *Engine) Resume() { e.ctl.resume() }

// Train runs the session to a terminal status and returns the final
// snapshot. Total epochs start at the override value (or zero) and are
// corrected once the dataset's suggested value is known, so early status
// reads must tolerate zero.
func (e *Engine) Train(modelID string) *Session {
	totalEpochs := 0
	if e.cfg.Epochs != nil {
		totalEpochs = *e.cfg.Epochs
	}

	session := &Session{
		SessionID:   e.cfg.SessionID,
		ModelID:     modelID,
		DatasetID:   e.cfg.DatasetID,
		Status:      StatusRunning,
		StartTime:   time.Now().UTC(),
		TotalEpochs: totalEpochs,
		Metrics:     []Metric{},
	}
	e.mu.Lock()
	e.session = session
	e.mu.Unlock()
	close(e.published)

	if err := e.run(modelID); err != nil {
		e.finish(StatusFailed, err.Error())
	}
	e.setEndTime()
	return e.Snapshot()
}

func (e *Engine) run(modelID string) error {
	ds, err := datasets.Open(e.cfg.DatasetID, datasets.Options{
		MaxSamples: e.cfg.MaxSamples,
		Seed:       e.cfg.Seed,
	})
	if err != nil {
		return err
	}
	split, err := ds.Load(0.2)
	if err != nil {
		return err
	}
	// Retain the dataset instance so predictions reuse the fitted
	// preprocessing.
	e.mu.Lock()
	e.dataset = ds
	e.mu.Unlock()

	meta := ds.Meta()
	hp := ds.Hyperparameters()

	epochs := hp.Epochs
	if e.cfg.Epochs != nil {
		epochs = *e.cfg.Epochs
	}
	lr := hp.LearningRate
	if e.cfg.LearningRate != nil {
		lr = *e.cfg.LearningRate
	}
	batchSize := hp.BatchSize
	if e.cfg.BatchSize != nil {
		batchSize = *e.cfg.BatchSize
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	optimizerName := e.cfg.Optimizer
	if optimizerName == "" {
		optimizerName = hp.Optimizer
	}

	e.update(func(s *Session) { s.TotalEpochs = epochs })

	if len(e.cfg.Layers) == 0 {
		return errors.New("layer specification must not be empty")
	}
	outputDim := e.cfg.Layers[len(e.cfg.Layers)-1].Width
	net, err := nn.Build(e.cfg.Layers, meta.NumFeatures, outputDim, meta.TaskType, e.cfg.Seed)
	if err != nil {
		return err
	}
	loss := nn.LossFor(meta.TaskType)
	optimizer := nn.ByName(optimizerName, lr)

	logger.Log.WithFields(map[string]interface{}{
		"session_id": e.sessionID(),
		"model_id":   modelID,
		"dataset_id": e.cfg.DatasetID,
		"epochs":     epochs,
		"lr":         lr,
		"batch_size": batchSize,
		"optimizer":  optimizer.Name(),
	}).Info("Training started")

	rng := rand.New(rand.NewSource(e.cfg.Seed))
	for epoch := 1; epoch <= epochs; epoch++ {
		if e.ctl.stopRequested() {
			e.retain(net, meta.TaskType)
			e.finish(StatusStopped, stoppedByUserMessage)
			return nil
		}

		avgLoss, accuracy := trainOneEpoch(net, optimizer, loss, split, batchSize, meta.TaskType, rng)
		e.recordEpoch(epoch, avgLoss, accuracy)

		if math.IsNaN(avgLoss) {
			e.finish(StatusFailed, "NaN loss detected")
			return nil
		}

		if e.ctl.pauseRequested() {
			e.setStatus(StatusPaused)
			if e.ctl.waitWhilePaused() {
				e.retain(net, meta.TaskType)
				e.finish(StatusStopped, stoppedByUserMessage)
				return nil
			}
			e.setStatus(StatusRunning)
		}
	}

	e.retain(net, meta.TaskType)
	e.finish(StatusCompleted, "")
	return nil
}

// trainOneEpoch runs one shuffled pass over the training set and returns
// the batch-size-weighted average loss plus accuracy for classification.
// A NaN batch loss aborts the pass immediately; the NaN propagates through
// the epoch average so the caller records it before failing the session.
func trainOneEpoch(net *nn.Network, optimizer nn.Optimizer, loss nn.Loss, split datasets.Split, batchSize int, task string, rng *rand.Rand) (float64, *float64) {
	n := len(split.XTrain)
	idx := rng.Perm(n)

	var runningLoss float64
	var correct int
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		batchX := make([][]float64, 0, end-start)
		batchY := make([]float64, 0, end-start)
		for _, k := range idx[start:end] {
			batchX = append(batchX, split.XTrain[k])
			batchY = append(batchY, split.YTrain[k])
		}

		outputs := net.Forward(batchX, true)
		batchLoss := loss.Compute(outputs, batchY)
		if math.IsNaN(batchLoss) {
			return math.NaN(), nil
		}
		runningLoss += batchLoss * float64(len(batchX))

		net.Backward(loss.Gradient(outputs, batchY))
		optimizer.Step(net.Parameters(), net.Gradients())

		if task == datasets.TaskClassification {
			for i, row := range outputs {
				if nn.Argmax(row) == int(batchY[i]) {
					correct++
				}
			}
		}
	}

	avgLoss := runningLoss / float64(n)
	if task == datasets.TaskClassification {
		accuracy := float64(correct) / float64(n)
		return avgLoss, &accuracy
	}
	return avgLoss, nil
}

// Prediction is the result of a post-training forward pass. Prediction is a
// class index (int) for classification and a scalar (float64) for
// regression; Probabilities and Confidence are classification-only.
type Prediction struct {
	Prediction    interface{} `json:"prediction"`
	Probabilities []float64   `json:"probabilities,omitempty"`
	Confidence    *float64    `json:"confidence,omitempty"`
}

// Predict runs a single raw input through the retained network after
// applying the dataset's training-time preprocessing.
func (e *Engine) Predict(inputs []float64) (*Prediction, error) {
	e.mu.RLock()
	net := e.net
	ds := e.dataset
	task := e.task
	e.mu.RUnlock()

	if net == nil {
		return nil, ErrModelNotTrained
	}
	if ds == nil {
		return nil, errors.New("dataset context missing; cannot preprocess inputs")
	}

	processed, err := ds.Transform(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess inputs: %w", err)
	}
	outputs := net.Predict(processed)

	if task == datasets.TaskClassification {
		probabilities := nn.Softmax(outputs)
		class := nn.Argmax(outputs)
		confidence := probabilities[class]
		return &Prediction{
			Prediction:    class,
			Probabilities: probabilities,
			Confidence:    &confidence,
		}, nil
	}
	return &Prediction{Prediction: outputs[0]}, nil
}

func (e *Engine) sessionID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return ""
	}
	return e.session.SessionID
}

func (e *Engine) update(fn func(*Session)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		fn(e.session)
	}
}

func (e *Engine) recordEpoch(epoch int, loss float64, accuracy *float64) {
	e.update(func(s *Session) {
		s.CurrentEpoch = epoch
		s.Metrics = append(s.Metrics, Metric{
			Epoch:     epoch,
			Loss:      loss,
			Accuracy:  accuracy,
			Timestamp: time.Now().UTC(),
		})
	})
}

func (e *Engine) setStatus(status string) {
	e.update(func(s *Session) { s.Status = status })
}

// overrideStatus applies the manager's optimistic status update; it never
// overwrites a terminal status the loop has already committed. The message
// is set alongside so an optimistic stop that races the loop's own
// completion still carries its explanation.
func (e *Engine) overrideStatus(status, message string) {
	e.update(func(s *Session) {
		if !IsTerminal(s.Status) {
			s.Status = status
			if message != "" {
				s.ErrorMessage = message
			}
		}
	})
}

// finish commits a terminal status. A matching status already applied
// optimistically by the manager is completed with the loop's message.
func (e *Engine) finish(status, errorMessage string) {
	e.update(func(s *Session) {
		if IsTerminal(s.Status) && s.Status != status {
			return
		}
		s.Status = status
		s.ErrorMessage = errorMessage
	})
}

func (e *Engine) setEndTime() {
	now := time.Now().UTC()
	e.update(func(s *Session) { s.EndTime = &now })
}

func (e *Engine) retain(net *nn.Network, task string) {
	e.mu.Lock()
	e.net = net
	e.task = task
	e.mu.Unlock()
}
