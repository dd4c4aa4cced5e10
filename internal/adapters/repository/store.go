// Package repository persists teams, games, standings snapshots, trained
// models and predictions.
package repository

import (
	"context"
	"time"

	"github.com/okian/puckcast/internal/domain/model"
)

// TeamStore holds franchises and teams.
type TeamStore interface {
	UpsertFranchises(ctx context.Context, fs []model.Franchise) error
	UpsertTeams(ctx context.Context, ts []model.Team) error
	Teams(ctx context.Context) ([]model.Team, error)
	// Team returns ErrNotFound for unknown ids.
	Team(ctx context.Context, id int) (model.Team, error)
}

// GameStore holds games. Returned games carry their teams and, where
// referenced, both snapshots.
type GameStore interface {
	// CreateGames inserts games, skipping any whose id or
	// (home, away, date) already exists.
	CreateGames(ctx context.Context, gs []*model.Game) error
	// UpdateGames writes scores, type, state, payload, winner and snapshot
	// references in one batch. A stored winner or snapshot reference is
	// never cleared.
	UpdateGames(ctx context.Context, gs []*model.Game) error
	// Game returns ErrNotFound for unknown ids.
	Game(ctx context.Context, id int64) (*model.Game, error)
	GamesByDate(ctx context.Context, date time.Time) ([]*model.Game, error)
	GamesBySeasons(ctx context.Context, seasons []int) ([]*model.Game, error)
	// UndecidedGamesBefore returns games without a winner dated before date.
	UndecidedGamesBefore(ctx context.Context, date time.Time) ([]*model.Game, error)
	ParticipatingFranchises(ctx context.Context) ([]int, error)
}

// TeamDataStore holds standings snapshots, at most one per (team, date).
type TeamDataStore interface {
	// TeamData returns ErrNotFound when no snapshot exists.
	TeamData(ctx context.Context, teamID int, date time.Time) (*model.TeamData, error)
	// CreateTeamData inserts snapshots and sets their ids. A snapshot whose
	// (team, date) already exists takes the stored id instead.
	CreateTeamData(ctx context.Context, ds []*model.TeamData) error
}

// ModelStore is the trained-model registry.
type ModelStore interface {
	// CreateModel assigns the id. Duplicate (name, version) is ErrConflict.
	CreateModel(ctx context.Context, m *model.PredictionModel) error
	// LatestModel orders by numeric version; ErrNotFound when empty.
	LatestModel(ctx context.Context) (*model.PredictionModel, error)
	Models(ctx context.Context) ([]*model.PredictionModel, error)
}

// PredictionStore holds at most one prediction per (game, model).
type PredictionStore interface {
	// CreatePrediction stores p unless a prediction for the same
	// (game, model) exists, in which case the stored one is returned and
	// created is false.
	CreatePrediction(ctx context.Context, p *model.Prediction) (stored *model.Prediction, created bool, err error)
	// Prediction returns ErrNotFound when absent.
	Prediction(ctx context.Context, gameID, modelID int64) (*model.Prediction, error)
	PredictionsByGame(ctx context.Context, gameID int64) ([]*model.Prediction, error)
	PredictionsByDate(ctx context.Context, date time.Time) ([]*model.Prediction, error)
}

// Store is the full persistence surface.
type Store interface {
	TeamStore
	GameStore
	TeamDataStore
	ModelStore
	PredictionStore
	Close() error
}
