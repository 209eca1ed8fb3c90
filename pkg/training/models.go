package training

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusRunning   = "running"
	StatusPaused    = "paused"
	StatusStopped   = "stopped"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// Metric is one row per completed epoch. Accuracy is only set for
// classification runs.
type Metric struct {
	Epoch     int       `json:"epoch"`
	Loss      float64   `json:"loss"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the observable lifecycle record of one training run. The
// engine's worker goroutine is the only writer; everyone else reads deep
// snapshots.
type Session struct {
	SessionID    string     `json:"session_id"`
	ModelID      string     `json:"model_id,omitempty"`
	DatasetID    string     `json:"dataset_id"`
	Status       string     `json:"status"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	TotalEpochs  int        `json:"total_epochs"`
	CurrentEpoch int        `json:"current_epoch"`
	Metrics      []Metric   `json:"metrics"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// MetricsSince returns the suffix of the metric sequence with epoch greater
// than the given value. Metrics append in strictly increasing epoch order,
// so the result is always a contiguous suffix.
func (s *Session) MetricsSince(epoch int) []Metric {
	for i, m := range s.Metrics {
		if m.Epoch > epoch {
			return s.Metrics[i:]
		}
	}
	return []Metric{}
}

// Progress reports completion as a fraction in [0, 1].
func (s *Session) Progress() float64 {
	if s.TotalEpochs <= 0 {
		return 0
	}
	progress := float64(s.CurrentEpoch) / float64(s.TotalEpochs)
	if progress > 1 {
		return 1
	}
	if progress < 0 {
		return 0
	}
	return progress
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	out := *s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Metrics = make([]Metric, len(s.Metrics))
	for i, m := range s.Metrics {
		out.Metrics[i] = m
		if m.Accuracy != nil {
			acc := *m.Accuracy
			out.Metrics[i].Accuracy = &acc
		}
	}
	return &out
}

// SessionModel is the durable row for a terminal session. Layers captures
// the architecture snapshot that was trained.
type SessionModel struct {
	SessionID    string         `gorm:"primaryKey;column:session_id"`
	ModelID      string         `gorm:"column:model_id"`
	DatasetID    string         `gorm:"column:dataset_id"`
	Status       string         `gorm:"column:status"`
	Layers       datatypes.JSON `gorm:"column:layers"`
	TotalEpochs  int            `gorm:"column:total_epochs"`
	CurrentEpoch int            `gorm:"column:current_epoch"`
	StartTime    time.Time      `gorm:"column:start_time"`
	EndTime      *time.Time     `gorm:"column:end_time"`
	ErrorMessage string         `gorm:"column:error_message"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
}

func (SessionModel) TableName() string {
	return "training_sessions"
}

type MetricModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement;column:id"`
	SessionID string    `gorm:"column:session_id;index"`
	Epoch     int       `gorm:"column:epoch"`
	Loss      float64   `gorm:"column:loss"`
	Accuracy  *float64  `gorm:"column:accuracy"`
	Timestamp time.Time `gorm:"column:timestamp"`
}

func (MetricModel) TableName() string {
	return "training_metrics"
}

func toSessionModel(s *Session, layers datatypes.JSON) *SessionModel {
	return &SessionModel{
		SessionID:    s.SessionID,
		ModelID:      s.ModelID,
		DatasetID:    s.DatasetID,
		Status:       s.Status,
		Layers:       layers,
		TotalEpochs:  s.TotalEpochs,
		CurrentEpoch: s.CurrentEpoch,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		ErrorMessage: s.ErrorMessage,
		CreatedAt:    time.Now().UTC(),
	}
}

func toDomain(row *SessionModel, metricRows []MetricModel) *Session {
	metrics := make([]Metric, 0, len(metricRows))
	for _, m := range metricRows {
		metrics = append(metrics, Metric{
			Epoch:     m.Epoch,
			Loss:      m.Loss,
			Accuracy:  m.Accuracy,
			Timestamp: m.Timestamp,
		})
	}
	return &Session{
		SessionID:    row.SessionID,
		ModelID:      row.ModelID,
		DatasetID:    row.DatasetID,
		Status:       row.Status,
		StartTime:    row.StartTime,
		EndTime:      row.EndTime,
		TotalEpochs:  row.TotalEpochs,
		CurrentEpoch: row.CurrentEpoch,
		Metrics:      metrics,
		ErrorMessage: row.ErrorMessage,
	}
}
