// Package api exposes the prediction engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"darkwatch/internal/predict"
	"darkwatch/internal/storage"
)

// Predictor produces a forecast for a request.
type Predictor interface {
	Predict(ctx context.Context, req predict.Request) (predict.Response, error)
}

// SequenceSource supplies recent track history for a vessel, used to
// backfill requests that omit a trajectory sequence.
type SequenceSource interface {
	RecentTrack(vesselID string, n int) ([]predict.TrackPoint, error)
}

// PredictionLog records issued predictions and looks up previous ones.
type PredictionLog interface {
	StorePrediction(resp predict.Response) error
	RecentPredictions(vesselID string, n int) ([]storage.PredictionRecord, error)
}

// Server provides the HTTP API for dark-interval predictions.
type Server struct {
	predictor Predictor
	sequences SequenceSource
	history   PredictionLog
	server    *http.Server
}

// errorResponse is the body returned for rejected requests.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// NewServer wires the prediction handler onto the given port.
// sequences and history may be nil when track ingest or persistence is
// disabled.
func NewServer(predictor Predictor, sequences SequenceSource, history PredictionLog, port int) *Server {
	s := &Server{
		predictor: predictor,
		sequences: sequences,
		history:   history,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/predict", s.handlePredict)
	mux.HandleFunc("/api/v1/predictions", s.handlePredictions)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req predict.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	// Backfill the trajectory from live track history when the caller
	// asked for the learned model without supplying a sequence.
	if req.ModelType == predict.ModelLSTM && len(req.Sequence) == 0 && s.sequences != nil {
		points, err := s.sequences.RecentTrack(req.VesselID, predict.SequenceLength)
		if err != nil {
			log.Warn().Err(err).Str("vessel_id", req.VesselID).Msg("track history lookup failed")
		} else {
			req.Sequence = points
		}
	}

	resp, err := s.predictor.Predict(r.Context(), req)
	if err != nil {
		var invalid *predict.InvalidRequestError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, errorResponse{Error: invalid.Error(), Field: invalid.Field})
			return
		}
		log.Error().Err(err).Str("vessel_id", req.VesselID).Msg("prediction failed")
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "prediction failed"})
		return
	}

	if s.history != nil {
		if err := s.history.StorePrediction(resp); err != nil {
			log.Warn().Err(err).Str("vessel_id", resp.VesselID).Msg("failed to persist prediction")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotFound, errorResponse{Error: "prediction history not enabled"})
		return
	}

	vesselID := r.URL.Query().Get("vessel_id")
	if vesselID == "" {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "vessel_id is required", Field: "vessel_id"})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer", Field: "limit"})
			return
		}
		limit = n
	}

	records, err := s.history.RecentPredictions(vesselID, limit)
	if err != nil {
		log.Error().Err(err).Str("vessel_id", vesselID).Msg("prediction history lookup failed")
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "history lookup failed"})
		return
	}
	if records == nil {
		records = []storage.PredictionRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
