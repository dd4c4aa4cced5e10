package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/puckcast/internal/adapters/http/api"
	"github.com/okian/puckcast/internal/adapters/mq/queue"
	"github.com/okian/puckcast/internal/domain/correlation"
	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
)

func init() {
	_ = logger.Init()
}

var today = time.Date(2024, 10, 12, 15, 0, 0, 0, time.UTC)

type mockDeps struct {
	games       map[int64]*model.Game
	predictions []*model.Prediction
	latest      *model.PredictionModel
	jobs        map[string]model.TrainingJob

	predictErr error
	enqueueErr error
	fetchErr   error

	predictedOn  time.Time
	fetchedOn    time.Time
	updatedOn    time.Time
	trainSeasons []int
	corrSeasons  []int
}

func newMockDeps() *mockDeps {
	return &mockDeps{games: map[int64]*model.Game{}, jobs: map[string]model.TrainingJob{}}
}

func (m *mockDeps) Game(_ context.Context, id int64) (*model.Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, model.Kind("mock.Game", model.ErrNotFound, "game %d", id)
	}
	return g, nil
}

func (m *mockDeps) GamesByDate(_ context.Context, date time.Time) ([]*model.Game, error) {
	var out []*model.Game
	for _, g := range m.games {
		if g.Date.Equal(date) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockDeps) PredictionsByDate(context.Context, time.Time) ([]*model.Prediction, error) {
	return m.predictions, nil
}

func (m *mockDeps) PredictionsByGame(_ context.Context, gameID int64) ([]*model.Prediction, error) {
	if _, ok := m.games[gameID]; !ok {
		return nil, model.Kind("mock.PredictionsByGame", model.ErrNotFound, "game %d", gameID)
	}
	var out []*model.Prediction
	for _, p := range m.predictions {
		if p.GameID == gameID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockDeps) PredictDate(_ context.Context, date time.Time) ([]*model.Prediction, error) {
	m.predictedOn = date
	if m.predictErr != nil {
		return nil, m.predictErr
	}
	return m.predictions, nil
}

func (m *mockDeps) FetchGames(_ context.Context, date time.Time) (model.IngestResult, error) {
	m.fetchedOn = date
	if m.fetchErr != nil {
		return model.IngestResult{}, m.fetchErr
	}
	return model.IngestResult{Created: 3, Updated: 1}, nil
}

func (m *mockDeps) UpdateCompletedGames(_ context.Context, t time.Time) (model.IngestResult, error) {
	m.updatedOn = t
	return model.IngestResult{Updated: 2}, nil
}

func (m *mockDeps) EnqueueTraining(_ context.Context, seasons []int) (model.TrainingJob, error) {
	m.trainSeasons = seasons
	if m.enqueueErr != nil {
		return model.TrainingJob{}, m.enqueueErr
	}
	job := model.TrainingJob{ID: "job-1", Seasons: seasons, Status: model.JobQueued, EnqueuedAt: today}
	m.jobs[job.ID] = job
	return job, nil
}

func (m *mockDeps) TrainingJob(_ context.Context, id string) (model.TrainingJob, error) {
	j, ok := m.jobs[id]
	if !ok {
		return model.TrainingJob{}, model.Kind("mock.TrainingJob", model.ErrNotFound, "job %s", id)
	}
	return j, nil
}

func (m *mockDeps) LatestModel(context.Context) (*model.PredictionModel, error) {
	if m.latest == nil {
		return nil, model.Wrap("mock.LatestModel", model.ErrModelNotFound, model.ErrNotFound)
	}
	return m.latest, nil
}

func (m *mockDeps) FeatureImportances(ctx context.Context) (map[string]float64, error) {
	lm, err := m.LatestModel(ctx)
	if err != nil {
		return nil, err
	}
	return lm.FeatureImportances, nil
}

func (m *mockDeps) FeatureCorrelations(_ context.Context, seasons []int) (*correlation.Report, error) {
	m.corrSeasons = seasons
	return &correlation.Report{
		Coefficients: []correlation.Coefficient{{Feature: "home_team_win_percentage", Value: 0.21}},
		Threshold:    0.05,
	}, nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"queue_size": 0}
}

func newTestServer(deps *mockDeps, tokens api.Tokens) http.Handler {
	s := api.NewServer(deps, mockStats{},
		api.WithTokens(tokens),
		api.WithClock(func() time.Time { return today }))
	return s.Router()
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(rec *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given an API server", t, func() {
		h := newTestServer(newMockDeps(), api.Tokens{})

		Convey("When /healthz is requested", func() {
			rec := do(h, http.MethodGet, "/healthz", "", nil)
			Convey("Then it reports ok", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"ok"`)
			})
		})

		Convey("When /stats is requested", func() {
			rec := do(h, http.MethodGet, "/stats", "", nil)
			Convey("Then the provider's stats are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "queue_size")
			})
		})

		Convey("When /metrics is requested", func() {
			rec := do(h, http.MethodGet, "/metrics", "", nil)
			Convey("Then the registry is exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestGameEndpoints(t *testing.T) {
	Convey("Given a stored game", t, func() {
		deps := newMockDeps()
		day := time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC)
		deps.games[2024020010] = &model.Game{ID: 2024020010, Season: 20242025, Date: day, Type: model.RegularSeason}
		h := newTestServer(deps, api.Tokens{})

		Convey("When it is fetched by id", func() {
			rec := do(h, http.MethodGet, "/api/games/2024020010", "", nil)
			Convey("Then the game is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var g model.Game
				So(json.Unmarshal(rec.Body.Bytes(), &g), ShouldBeNil)
				So(g.ID, ShouldEqual, int64(2024020010))
			})
		})

		Convey("When an unknown id is fetched", func() {
			rec := do(h, http.MethodGet, "/api/games/1", "", nil)
			Convey("Then 404 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(rec)["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When games are listed by date", func() {
			rec := do(h, http.MethodGet, "/api/games/date?date=2024-10-11", "", nil)
			Convey("Then the day's games are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var gs []model.Game
				So(json.Unmarshal(rec.Body.Bytes(), &gs), ShouldBeNil)
				So(len(gs), ShouldEqual, 1)
			})
		})

		Convey("When the date is missing or malformed", func() {
			So(do(h, http.MethodGet, "/api/games/date", "", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/api/games/date?date=11-10-2024", "", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When games are fetched from upstream without a date", func() {
			rec := do(h, http.MethodPost, "/api/games/fetch-from-nhl-api", "", nil)
			Convey("Then today is used and the counts are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.fetchedOn.Equal(time.Date(2024, 10, 12, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(rec.Body.String(), ShouldContainSubstring, `"created":3`)
			})
		})

		Convey("When the upstream fails", func() {
			deps.fetchErr = model.Kind("nhl.Schedule", model.ErrUpstreamFetch, "status 503")
			rec := do(h, http.MethodPost, "/api/games/fetch-from-nhl-api?date=2024-10-11", "", nil)
			Convey("Then 502 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusBadGateway)
			})
		})
	})
}

func TestPredictionEndpoints(t *testing.T) {
	Convey("Given predictions for a game", t, func() {
		deps := newMockDeps()
		deps.games[7] = &model.Game{ID: 7}
		deps.predictions = []*model.Prediction{{
			ID: "p1", GameID: 7, ModelID: 1, ModelVersion: "1.0",
			PredictedHomeTeamWin: true, ConfidenceScore: 0.64,
			TopFeatures: model.Contributions{{Feature: "home_team", Value: 1, Importance: 0.08}},
		}}
		h := newTestServer(deps, api.Tokens{Predict: "secret"})

		Convey("When predictions are listed by game", func() {
			rec := do(h, http.MethodGet, "/api/game-predictions/by-game/7", "", nil)
			Convey("Then the prediction carries its top features", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"home_team":[1,0.08]`)
			})
		})

		Convey("When predictions are listed by date", func() {
			rec := do(h, http.MethodGet, "/api/game-predictions/date?date=2024-10-12", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When today's prediction is requested without a token", func() {
			rec := do(h, http.MethodPost, "/api/predict-games-today", "", nil)
			Convey("Then it is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusUnauthorized)
				So(deps.predictedOn.IsZero(), ShouldBeTrue)
			})
		})

		Convey("When today's prediction is requested with the token", func() {
			rec := do(h, http.MethodPost, "/api/predict-games-today", "",
				map[string]string{api.PredictTokenHeader: "secret"})
			Convey("Then today's games are predicted", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"date":"2024-10-12"`)
				So(deps.predictedOn.Equal(time.Date(2024, 10, 12, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When no model has been trained", func() {
			deps.predictErr = model.Wrap("service.latest", model.ErrModelNotFound, model.ErrNotFound)
			rec := do(h, http.MethodPost, "/api/predict-games-today", "",
				map[string]string{api.PredictTokenHeader: "secret"})
			Convey("Then the client is told to train first", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(rec)["message"], ShouldContainSubstring, "train a model first")
			})
		})
	})
}

func TestTrainingEndpoints(t *testing.T) {
	Convey("Given a server guarding training with a token", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps, api.Tokens{Train: "t", Update: "u"})
		auth := map[string]string{api.TrainTokenHeader: "t"}

		Convey("When seasons come in the body", func() {
			rec := do(h, http.MethodPost, "/api/train", `{"seasons":[20222023,20232024]}`, auth)
			Convey("Then a job is accepted", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(rec.Header().Get("Location"), ShouldEqual, "/api/train/job-1")
				So(deps.trainSeasons, ShouldResemble, []int{20222023, 20232024})
			})

			Convey("And the job can be polled", func() {
				rec := do(h, http.MethodGet, "/api/train/job-1", "", nil)
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "queued")
			})
		})

		Convey("When seasons come in the query", func() {
			rec := do(h, http.MethodPost, "/api/train?seasons=20232024", "", auth)
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			So(deps.trainSeasons, ShouldResemble, []int{20232024})
		})

		Convey("When the body is malformed", func() {
			rec := do(h, http.MethodPost, "/api/train", `{"seasons":`, auth)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the queue is full", func() {
			deps.enqueueErr = fmt.Errorf("enqueue: %w", queue.ErrFull)
			rec := do(h, http.MethodPost, "/api/train", "", auth)
			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("When the token is wrong", func() {
			rec := do(h, http.MethodPost, "/api/train", "", map[string]string{api.TrainTokenHeader: "x"})
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When an unknown job is polled", func() {
			So(do(h, http.MethodGet, "/api/train/nope", "", nil).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When completed games are updated with the token", func() {
			rec := do(h, http.MethodPost, "/api/update-completed-games", "",
				map[string]string{api.UpdateTokenHeader: "u"})
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.updatedOn.Equal(today), ShouldBeTrue)
		})
	})
}

func TestModelEndpoints(t *testing.T) {
	Convey("Given no trained model", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps, api.Tokens{})

		Convey("Then latest and importances report a missing model", func() {
			So(do(h, http.MethodGet, "/api/prediction-models/latest", "", nil).Code, ShouldEqual, http.StatusConflict)
			So(do(h, http.MethodGet, "/api/feature-importances", "", nil).Code, ShouldEqual, http.StatusConflict)
		})

		Convey("When a model exists", func() {
			deps.latest = &model.PredictionModel{
				ID: 1, Name: "Random Forest", Version: "1.0",
				FeatureImportances: map[string]float64{"home_team": 0.4, "away_team": 0.6},
			}
			rec := do(h, http.MethodGet, "/api/prediction-models/latest", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"version":"1.0"`)

			rec = do(h, http.MethodGet, "/api/feature-importances", "", nil)
			So(rec.Body.String(), ShouldContainSubstring, `"away_team":0.6`)
		})

		Convey("When correlations are requested for seasons", func() {
			rec := do(h, http.MethodGet, "/api/feature-correlations?seasons=20222023,20232024", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.corrSeasons, ShouldResemble, []int{20222023, 20232024})
			So(rec.Body.String(), ShouldContainSubstring, "home_team_win_percentage")
		})

		Convey("When a season is not numeric", func() {
			rec := do(h, http.MethodGet, "/api/feature-correlations?seasons=abc", "", nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
