package training

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mlpstudio/platform/pkg/catalog"
	"github.com/mlpstudio/platform/pkg/common/logger"
	"github.com/mlpstudio/platform/pkg/datasets"
	"github.com/mlpstudio/platform/pkg/nn"
)

type HTTPHandler struct {
	manager *Manager
	models  *catalog.Registry
	maxBody int64
}

func NewHTTPHandler(manager *Manager, models *catalog.Registry, maxBody int64) *HTTPHandler {
	return &HTTPHandler{manager: manager, models: models, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/models", h.handleCreateModel).Methods(http.MethodPost)
	router.HandleFunc("/models/{id}", h.handleGetModel).Methods(http.MethodGet)
	router.HandleFunc("/models/{id}/train", h.handleTrain).Methods(http.MethodPost)
	router.HandleFunc("/training/{session_id}/status", h.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/training/{session_id}/stop", h.handleStop).Methods(http.MethodPost)
	router.HandleFunc("/training/{session_id}/pause", h.handlePause).Methods(http.MethodPost)
	router.HandleFunc("/training/{session_id}/resume", h.handleResume).Methods(http.MethodPost)
	router.HandleFunc("/training/{session_id}/predict", h.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/datasets", h.handleListDatasets).Methods(http.MethodGet)
	router.HandleFunc("/datasets/{id}", h.handleGetDataset).Methods(http.MethodGet)
	router.HandleFunc("/datasets/{id}/preview", h.handleDatasetPreview).Methods(http.MethodGet)
	router.HandleFunc("/templates", h.handleListTemplates).Methods(http.MethodGet)
}

type modelCreateRequest struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	DatasetID   string         `json:"dataset_id"`
	Layers      []nn.LayerSpec `json:"layers"`
}

func (h *HTTPHandler) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req modelCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	meta, err := datasets.Lookup(req.DatasetID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := nn.ValidateSpec(req.Layers, meta.NumFeatures, outputDimFor(meta), meta.TaskType); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	definition := h.models.Register(catalog.ModelDefinition{
		Name:        req.Name,
		Description: req.Description,
		DatasetID:   req.DatasetID,
		Layers:      req.Layers,
	})

	logger.Log.WithFields(map[string]interface{}{
		"model_id":   definition.ModelID,
		"dataset_id": definition.DatasetID,
	}).Info("Model definition created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(definition)
}

func (h *HTTPHandler) handleGetModel(w http.ResponseWriter, r *http.Request) {
	definition, err := h.models.Get(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(definition)
}

type trainRequest struct {
	DatasetID    string         `json:"dataset_id,omitempty"`
	Layers       []nn.LayerSpec `json:"layers,omitempty"`
	Epochs       *int           `json:"epochs,omitempty"`
	LearningRate *float64       `json:"learning_rate,omitempty"`
	BatchSize    *int           `json:"batch_size,omitempty"`
	Optimizer    string         `json:"optimizer,omitempty"`
	MaxSamples   int            `json:"max_samples,omitempty"`
	Seed         int64          `json:"seed,omitempty"`
}

type statusResponse struct {
	*Session
	Progress        float64 `json:"progress"`
	NextPollSeconds int     `json:"next_poll_seconds"`
}

func (h *HTTPHandler) handleTrain(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	modelID := mux.Vars(r)["id"]

	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid training payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	datasetID := req.DatasetID
	layers := req.Layers
	if definition, err := h.models.Get(modelID); err == nil {
		if datasetID == "" {
			datasetID = definition.DatasetID
		}
		if len(layers) == 0 {
			layers = definition.Layers
		}
	} else if datasetID == "" || len(layers) == 0 {
		http.Error(w, "model not found", http.StatusNotFound)
		return
	}

	session, err := h.manager.StartTraining(r.Context(), StartRequest{
		ModelID:      modelID,
		DatasetID:    datasetID,
		Layers:       layers,
		Epochs:       req.Epochs,
		LearningRate: req.LearningRate,
		BatchSize:    req.BatchSize,
		Optimizer:    req.Optimizer,
		MaxSamples:   req.MaxSamples,
		Seed:         req.Seed,
	})
	if err != nil {
		h.writeStartError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(session)
}

func (h *HTTPHandler) writeStartError(w http.ResponseWriter, err error) {
	var conflict *AlreadyTrainingError
	var configErr *nn.ConfigError
	switch {
	case errors.As(err, &configErr):
		http.Error(w, configErr.Error(), http.StatusBadRequest)
	case errors.As(err, &conflict):
		http.Error(w, conflict.Error(), http.StatusConflict)
	case errors.Is(err, datasets.ErrUnknownDataset):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInitTimeout):
		logger.Log.WithError(err).Error("training session initialization timed out")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		logger.Log.WithError(err).Error("failed to start training")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	session, err := h.manager.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if since := r.URL.Query().Get("since_epoch"); since != "" {
		epoch, err := strconv.Atoi(since)
		if err != nil {
			http.Error(w, "since_epoch must be an integer", http.StatusBadRequest)
			return
		}
		session.Metrics = session.MetricsSince(epoch)
	}

	pollSeconds := 2
	if IsTerminal(session.Status) {
		pollSeconds = 0
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		Session:         session,
		Progress:        session.Progress(),
		NextPollSeconds: pollSeconds,
	})
}

func (h *HTTPHandler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.manager.Stop)
}

func (h *HTTPHandler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.manager.Pause)
}

func (h *HTTPHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.manager.Resume)
}

func (h *HTTPHandler) handleTransition(w http.ResponseWriter, r *http.Request, apply func(string) (*Session, error)) {
	sessionID := mux.Vars(r)["session_id"]

	session, err := apply(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to apply session transition")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

type predictRequest struct {
	Inputs []float64 `json:"inputs"`
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	sessionID := mux.Vars(r)["session_id"]

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		http.Error(w, "inputs must not be empty", http.StatusBadRequest)
		return
	}

	prediction, err := h.manager.Predict(sessionID, req.Inputs)
	if err != nil {
		var notPredictable *NotPredictableError
		switch {
		case errors.Is(err, ErrSessionNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
		case errors.As(err, &notPredictable):
			http.Error(w, notPredictable.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrModelNotTrained):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Log.WithError(err).Error("prediction failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prediction)
}

func (h *HTTPHandler) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(datasets.List())
}

func (h *HTTPHandler) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	meta, err := datasets.Lookup(id)
	if err != nil {
		http.Error(w, "dataset not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meta)
}

type datasetPreview struct {
	Features        [][]float64 `json:"features"`
	Labels          []float64   `json:"labels"`
	NumSamplesShown int         `json:"num_samples_shown"`
}

func (h *HTTPHandler) handleDatasetPreview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	numSamples := 10
	if raw := r.URL.Query().Get("num_samples"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			http.Error(w, "num_samples must be an integer between 1 and 100", http.StatusBadRequest)
			return
		}
		numSamples = parsed
	}

	// Load more than requested so the train/test split still leaves enough
	// training rows to preview from.
	maxSamples := numSamples * 10
	if maxSamples > 500 {
		maxSamples = 500
	}
	ds, err := datasets.Open(id, datasets.Options{MaxSamples: maxSamples})
	if err != nil {
		http.Error(w, "dataset not found", http.StatusNotFound)
		return
	}
	split, err := ds.Load(0.2)
	if err != nil {
		logger.Log.WithError(err).WithField("dataset_id", id).Error("failed to load dataset preview")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if numSamples > len(split.XTrain) {
		numSamples = len(split.XTrain)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(datasetPreview{
		Features:        split.XTrain[:numSamples],
		Labels:          split.YTrain[:numSamples],
		NumSamplesShown: numSamples,
	})
}

func (h *HTTPHandler) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.models.Templates())
}
