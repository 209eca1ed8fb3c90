package training

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlpstudio/platform/pkg/common/logger"
	"github.com/mlpstudio/platform/pkg/datasets"
	"github.com/mlpstudio/platform/pkg/nn"
)

// Store persists terminal sessions and serves them back after the live job
// is gone.
type Store interface {
	SaveTerminal(ctx context.Context, session *Session, layers []nn.LayerSpec) error
	Get(ctx context.Context, sessionID string) (*Session, error)
}

// Publisher emits lifecycle events for terminal sessions. *kafka.Producer
// satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error
}

// Job is one live training run tracked by the manager. Done is closed after
// the run reaches a terminal status and reconciliation finishes.
type Job struct {
	SessionID string
	ModelID   string
	DatasetID string
	Engine    *Engine
	Done      chan struct{}

	// registered is closed once the manager has indexed the job (or given
	// up on it); the worker holds reconciliation until then so a fast run
	// cannot release a model lock that was never taken.
	registered chan struct{}
}

// StartRequest describes one training run. Nil hyperparameter fields defer
// to the dataset's suggested values.
type StartRequest struct {
	ModelID      string
	DatasetID    string
	Layers       []nn.LayerSpec
	Epochs       *int
	LearningRate *float64
	BatchSize    *int
	Optimizer    string
	MaxSamples   int
	Seed         int64
}

// Manager runs training sessions on a bounded worker pool, enforces one
// active run per model, and reconciles finished runs into the store.
type Manager struct {
	mu            sync.Mutex
	jobs          map[string]*Job
	modelSessions map[string]string

	store       Store
	events      Publisher
	sem         chan struct{}
	initTimeout time.Duration
	wg          sync.WaitGroup
}

// NewManager builds a manager with maxWorkers concurrent training slots.
// events may be nil when event publishing is disabled.
func NewManager(store Store, events Publisher, maxWorkers int, initTimeout time.Duration) *Manager {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	if initTimeout <= 0 {
		initTimeout = 5 * time.Second
	}
	return &Manager{
		jobs:          make(map[string]*Job),
		modelSessions: make(map[string]string),
		store:         store,
		events:        events,
		sem:           make(chan struct{}, maxWorkers),
		initTimeout:   initTimeout,
	}
}

// StartTraining validates the request, claims the model's training slot, and
// launches the run on the worker pool. It waits up to the init timeout for
// the session to become observable and returns its first snapshot.
func (m *Manager) StartTraining(ctx context.Context, req StartRequest) (*Session, error) {
	meta, err := datasets.Lookup(req.DatasetID)
	if err != nil {
		return nil, err
	}
	if err := nn.ValidateSpec(req.Layers, meta.NumFeatures, outputDimFor(meta), meta.TaskType); err != nil {
		return nil, err
	}

	modelID := req.ModelID
	if modelID == "" || strings.EqualFold(modelID, "new") {
		modelID = "temp-" + uuid.New().String()
	}

	// The session id is assigned before submission so the model lock always
	// names the blocking run, even while it waits for a worker slot.
	sessionID := uuid.New().String()
	engine := NewEngine(EngineConfig{
		SessionID:    sessionID,
		DatasetID:    req.DatasetID,
		Layers:       req.Layers,
		Epochs:       req.Epochs,
		LearningRate: req.LearningRate,
		BatchSize:    req.BatchSize,
		Optimizer:    req.Optimizer,
		MaxSamples:   req.MaxSamples,
		Seed:         req.Seed,
	})
	job := &Job{
		SessionID:  sessionID,
		ModelID:    modelID,
		DatasetID:  req.DatasetID,
		Engine:     engine,
		Done:       make(chan struct{}),
		registered: make(chan struct{}),
	}

	m.mu.Lock()
	if liveID, busy := m.modelSessions[modelID]; busy {
		m.mu.Unlock()
		return nil, &AlreadyTrainingError{ModelID: modelID, SessionID: liveID}
	}
	m.modelSessions[modelID] = sessionID
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runJob(job)

	select {
	case <-engine.Published():
	case <-time.After(m.initTimeout):
		m.abandon(job)
		return nil, ErrInitTimeout
	case <-ctx.Done():
		m.abandon(job)
		engine.RequestStop()
		return nil, ctx.Err()
	}

	snapshot := engine.Snapshot()

	m.mu.Lock()
	m.jobs[job.SessionID] = job
	m.mu.Unlock()
	close(job.registered)

	logger.Log.WithFields(map[string]interface{}{
		"session_id": snapshot.SessionID,
		"model_id":   modelID,
		"dataset_id": req.DatasetID,
	}).Info("Training session started")
	return snapshot, nil
}

func (m *Manager) runJob(job *Job) {
	defer m.wg.Done()
	defer close(job.Done)

	m.sem <- struct{}{}
	final := job.Engine.Train(job.ModelID)
	<-m.sem

	<-job.registered
	m.reconcile(job, final)
}

// abandon releases the model reservation for a run that never published in
// time. The worker may still be executing; closing registered lets it
// reconcile on its own whenever it finishes.
func (m *Manager) abandon(job *Job) {
	m.mu.Lock()
	if m.modelSessions[job.ModelID] == job.SessionID {
		delete(m.modelSessions, job.ModelID)
	}
	m.mu.Unlock()
	close(job.registered)
	logger.Log.WithField("model_id", job.ModelID).Warn("Training session abandoned before initialization")
}

// reconcile persists the terminal session, emits its lifecycle event, and
// releases the model lock. The job itself stays live so its retained network
// can keep serving predictions.
func (m *Manager) reconcile(job *Job, final *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if m.store != nil {
		if err := m.store.SaveTerminal(ctx, final, job.Engine.cfg.Layers); err != nil {
			logger.Log.WithError(err).WithField("session_id", final.SessionID).Error("Failed to persist terminal session")
		}
	}
	if m.events != nil {
		err := m.events.PublishEvent(ctx, "training."+final.Status, "training-service", map[string]interface{}{
			"session_id":    final.SessionID,
			"model_id":      final.ModelID,
			"dataset_id":    final.DatasetID,
			"status":        final.Status,
			"current_epoch": final.CurrentEpoch,
			"total_epochs":  final.TotalEpochs,
		})
		if err != nil {
			logger.Log.WithError(err).WithField("session_id", final.SessionID).Warn("Failed to publish training event")
		}
	}

	m.mu.Lock()
	if m.modelSessions[job.ModelID] == final.SessionID {
		delete(m.modelSessions, job.ModelID)
	}
	m.mu.Unlock()

	logger.Log.WithFields(map[string]interface{}{
		"session_id": final.SessionID,
		"model_id":   final.ModelID,
		"status":     final.Status,
		"epochs":     final.CurrentEpoch,
	}).Info("Training session reconciled")
}

func (m *Manager) liveJob(sessionID string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[sessionID]
	return job, ok
}

// GetSession returns the live snapshot when the job is still tracked, else
// the durable record.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if job, ok := m.liveJob(sessionID); ok {
		if snapshot := job.Engine.Snapshot(); snapshot != nil {
			return snapshot, nil
		}
	}
	if m.store == nil {
		return nil, ErrSessionNotFound
	}
	return m.store.Get(ctx, sessionID)
}

// GetJob returns the live job for a session. Prediction needs the job's
// engine; a session known only from durable storage has no job.
func (m *Manager) GetJob(sessionID string) (*Job, error) {
	job, ok := m.liveJob(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return job, nil
}

// Stop requests a stop for a live session. Valid from running or paused;
// other states are a no-op returning the unchanged session.
func (m *Manager) Stop(sessionID string) (*Session, error) {
	return m.transition(sessionID, []string{StatusRunning, StatusPaused}, func(job *Job) {
		job.Engine.RequestStop()
		job.Engine.overrideStatus(StatusStopped, stoppedByUserMessage)
	})
}

// Pause requests a pause at the next epoch boundary. Valid only from
// running.
func (m *Manager) Pause(sessionID string) (*Session, error) {
	return m.transition(sessionID, []string{StatusRunning}, func(job *Job) {
		job.Engine.RequestPause()
		job.Engine.overrideStatus(StatusPaused, "")
	})
}

// Resume releases a paused session. Valid only from paused.
func (m *Manager) Resume(sessionID string) (*Session, error) {
	return m.transition(sessionID, []string{StatusPaused}, func(job *Job) {
		job.Engine.Resume()
		job.Engine.overrideStatus(StatusRunning, "")
	})
}

// transition applies a lifecycle signal when the live status allows it;
// an incompatible status is a no-op returning the unchanged snapshot.
func (m *Manager) transition(sessionID string, validFrom []string, apply func(*Job)) (*Session, error) {
	job, err := m.GetJob(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot := job.Engine.Snapshot()
	if snapshot == nil {
		return nil, ErrSessionNotFound
	}
	for _, s := range validFrom {
		if snapshot.Status == s {
			apply(job)
			return job.Engine.Snapshot(), nil
		}
	}
	return snapshot, nil
}

// Predict runs inference against a live session's retained network. Only
// completed and stopped sessions are predictable.
func (m *Manager) Predict(sessionID string, inputs []float64) (*Prediction, error) {
	job, err := m.GetJob(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot := job.Engine.Snapshot()
	if snapshot == nil {
		return nil, ErrSessionNotFound
	}
	if snapshot.Status != StatusCompleted && snapshot.Status != StatusStopped {
		return nil, &NotPredictableError{Status: snapshot.Status}
	}
	return job.Engine.Predict(inputs)
}

// Shutdown stops all live runs and waits for their workers to reconcile,
// bounded by the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, job := range m.jobs {
		job.Engine.RequestStop()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("shutdown deadline exceeded with training workers still active")
	}
}

// outputDimFor gives the expected final layer width for a dataset.
func outputDimFor(meta datasets.Metadata) int {
	if meta.TaskType == datasets.TaskRegression {
		return 1
	}
	return meta.NumClasses
}
