package api

import (
	"net/http"
)

// handleGame serves GET /api/games/{id}.
func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	const op = "api.handleGame"
	id, err := pathID(r, "id", op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	g, err := s.deps.Game(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleGamesByDate serves GET /api/games/date?date=.
func (s *Server) handleGamesByDate(w http.ResponseWriter, r *http.Request) {
	date, err := s.queryDate(r, "api.handleGamesByDate", true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	gs, err := s.deps.GamesByDate(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// handleFetchGames serves POST /api/games/fetch-from-nhl-api?date=. A missing
// date means today.
func (s *Server) handleFetchGames(w http.ResponseWriter, r *http.Request) {
	date, err := s.queryDate(r, "api.handleFetchGames", false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.FetchGames(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUpdateCompleted serves POST /api/update-completed-games.
func (s *Server) handleUpdateCompleted(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.UpdateCompletedGames(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
