// Package api exposes the prediction service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/puckcast/internal/config"
	"github.com/okian/puckcast/internal/domain/correlation"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
)

// Token headers guarding mutating endpoints.
const (
	PredictTokenHeader = "PREDICT-GAMES-TODAY-TOKEN"
	UpdateTokenHeader  = "UPDATE-COMPLETED-GAMES-TOKEN"
	TrainTokenHeader   = "TRAIN-MODEL-TOKEN"
)

// GameReader serves stored games and predictions.
type GameReader interface {
	Game(ctx context.Context, id int64) (*model.Game, error)
	GamesByDate(ctx context.Context, date time.Time) ([]*model.Game, error)
	PredictionsByDate(ctx context.Context, date time.Time) ([]*model.Prediction, error)
	PredictionsByGame(ctx context.Context, gameID int64) ([]*model.Prediction, error)
}

// Operator runs the mutating operations.
type Operator interface {
	PredictDate(ctx context.Context, date time.Time) ([]*model.Prediction, error)
	FetchGames(ctx context.Context, date time.Time) (model.IngestResult, error)
	UpdateCompletedGames(ctx context.Context, today time.Time) (model.IngestResult, error)
	EnqueueTraining(ctx context.Context, seasons []int) (model.TrainingJob, error)
	TrainingJob(ctx context.Context, id string) (model.TrainingJob, error)
}

// ModelReader serves model metadata and feature analysis.
type ModelReader interface {
	LatestModel(ctx context.Context) (*model.PredictionModel, error)
	FeatureImportances(ctx context.Context) (map[string]float64, error)
	FeatureCorrelations(ctx context.Context, seasons []int) (*correlation.Report, error)
}

// Dependencies is everything the handlers call.
type Dependencies interface {
	GameReader
	Operator
	ModelReader
}

// Tokens guard mutating endpoints. An empty token disables its check.
type Tokens struct {
	Predict string
	Update  string
	Train   string
}

// Option configures a Server.
type Option func(*Server)

// WithTokens sets the endpoint tokens.
func WithTokens(t Tokens) Option {
	return func(s *Server) { s.tokens = t }
}

// WithClock overrides time.Now for "today" endpoints.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the prediction API.
type Server struct {
	deps   Dependencies
	tokens Tokens
	now    func() time.Time
	logger logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		now:           time.Now,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Router returns a router with every route registered.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.Handle("/metrics", s.healthHandler.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	a := r.PathPrefix("/api").Subrouter()
	a.HandleFunc("/games/date", MetricsMiddleware(s.handleGamesByDate, "games_by_date")).Methods(http.MethodGet)
	a.HandleFunc("/games/fetch-from-nhl-api", MetricsMiddleware(s.handleFetchGames, "fetch_games")).Methods(http.MethodPost)
	a.HandleFunc("/games/{id:[0-9]+}", MetricsMiddleware(s.handleGame, "game")).Methods(http.MethodGet)

	a.HandleFunc("/game-predictions/date", MetricsMiddleware(s.handlePredictionsByDate, "predictions_by_date")).Methods(http.MethodGet)
	a.HandleFunc("/game-predictions/by-game/{game_id:[0-9]+}", MetricsMiddleware(s.handlePredictionsByGame, "predictions_by_game")).Methods(http.MethodGet)
	a.HandleFunc("/predict-games-today",
		MetricsMiddleware(s.requireToken(PredictTokenHeader, s.tokens.Predict, s.handlePredictToday), "predict_today")).Methods(http.MethodPost)
	a.HandleFunc("/update-completed-games",
		MetricsMiddleware(s.requireToken(UpdateTokenHeader, s.tokens.Update, s.handleUpdateCompleted), "update_completed")).Methods(http.MethodPost)

	a.HandleFunc("/train", MetricsMiddleware(s.requireToken(TrainTokenHeader, s.tokens.Train, s.handleTrain), "train")).Methods(http.MethodPost)
	a.HandleFunc("/train/{id}", MetricsMiddleware(s.handleTrainingJob, "training_job")).Methods(http.MethodGet)

	a.HandleFunc("/prediction-models/latest", MetricsMiddleware(s.handleLatestModel, "latest_model")).Methods(http.MethodGet)
	a.HandleFunc("/feature-importances", MetricsMiddleware(s.handleFeatureImportances, "feature_importances")).Methods(http.MethodGet)
	a.HandleFunc("/feature-correlations", MetricsMiddleware(s.handleFeatureCorrelations, "feature_correlations")).Methods(http.MethodGet)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err to a status. Server-side failures are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path), logger.Int("status", status), logger.Error(err))
	}
	if status == http.StatusConflict && code == "model_not_found" {
		writeError(w, status, code, model.ErrModelNotFound)
		return
	}
	writeError(w, status, code, err)
}

// queryDate reads ?date=YYYY-MM-DD, defaulting to today when allowed.
func (s *Server) queryDate(r *http.Request, op string, required bool) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		if required {
			return time.Time{}, WrapKind(op, ErrBadRequest, errMissingDate)
		}
		return model.DateOnly(s.now()), nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, WrapKind(op, ErrBadRequest, err)
	}
	return d, nil
}

// parseSeasons reads "20222023,20232024".
func parseSeasons(raw, op string) ([]int, error) {
	out, err := config.ParseSeasons(raw)
	if err != nil {
		return nil, WrapKind(op, ErrBadRequest, err)
	}
	return out, nil
}

func pathID(r *http.Request, key, op string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	if err != nil {
		return 0, WrapKind(op, ErrBadRequest, err)
	}
	return id, nil
}
