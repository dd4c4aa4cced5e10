package api

import (
	"net/http"

	"github.com/okian/puckcast/internal/domain/model"
)

type predictResponse struct {
	Date        string              `json:"date"`
	Predictions []*model.Prediction `json:"predictions"`
}

// handlePredictToday serves POST /api/predict-games-today.
func (s *Server) handlePredictToday(w http.ResponseWriter, r *http.Request) {
	today := model.DateOnly(s.now())
	ps, err := s.deps.PredictDate(r.Context(), today)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ps == nil {
		ps = []*model.Prediction{}
	}
	writeJSON(w, http.StatusOK, predictResponse{Date: today.Format("2006-01-02"), Predictions: ps})
}

// handlePredictionsByDate serves GET /api/game-predictions/date?date=.
func (s *Server) handlePredictionsByDate(w http.ResponseWriter, r *http.Request) {
	date, err := s.queryDate(r, "api.handlePredictionsByDate", true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ps, err := s.deps.PredictionsByDate(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// handlePredictionsByGame serves GET /api/game-predictions/by-game/{game_id}.
func (s *Server) handlePredictionsByGame(w http.ResponseWriter, r *http.Request) {
	const op = "api.handlePredictionsByGame"
	id, err := pathID(r, "game_id", op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ps, err := s.deps.PredictionsByGame(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
