package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

const maxTrainBody = 1 << 16

type trainRequest struct {
	Seasons []int `json:"seasons"`
}

// handleTrain serves POST /api/train. Seasons come from a JSON body or the
// seasons query parameter. Empty means the configured default.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleTrain"
	seasons, err := parseSeasons(r.URL.Query().Get("seasons"), op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(seasons) == 0 && r.Body != nil {
		var req trainRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxTrainBody))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.fail(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
		seasons = req.Seasons
	}
	job, err := s.deps.EnqueueTraining(r.Context(), seasons)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/train/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

// handleTrainingJob serves GET /api/train/{id}.
func (s *Server) handleTrainingJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.TrainingJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleLatestModel serves GET /api/prediction-models/latest.
func (s *Server) handleLatestModel(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.LatestModel(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleFeatureImportances serves GET /api/feature-importances.
func (s *Server) handleFeatureImportances(w http.ResponseWriter, r *http.Request) {
	imp, err := s.deps.FeatureImportances(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imp)
}

// handleFeatureCorrelations serves GET /api/feature-correlations?seasons=.
func (s *Server) handleFeatureCorrelations(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleFeatureCorrelations"
	seasons, err := parseSeasons(r.URL.Query().Get("seasons"), op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rep, err := s.deps.FeatureCorrelations(r.Context(), seasons)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
