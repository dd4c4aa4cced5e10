package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) PostgresOption {
	return func(s *PostgresStore) {
		if n > 0 {
			s.maxOpen = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if l != nil {
			s.log = l
		}
	}
}

// PostgresStore implements Store on database/sql with lib/pq.
type PostgresStore struct {
	db      *sql.DB
	maxOpen int
	log     logger.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens and pings the database at dsn.
func NewPostgresStore(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	const op = "repository.NewPostgresStore"
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	s := &PostgresStore{db: db, maxOpen: 10}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("postgres")
	}
	db.SetMaxOpenConns(s.maxOpen)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	return s, nil
}

// Migrate creates missing tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return model.Wrap("repository.Migrate", model.ErrStorage, err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Wrap(op, model.ErrStorage, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error(ctx, "rollback failed", logger.String("op", op), logger.Error(rbErr))
		}
		return mapErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Wrap(op, model.ErrStorage, err)
	}
	return nil
}

func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrStorage) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.Wrap(op, ErrNotFound, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return model.Wrap(op, ErrConflict, err)
	}
	return model.Wrap(op, model.ErrStorage, err)
}

// UpsertFranchises implements TeamStore.
func (s *PostgresStore) UpsertFranchises(ctx context.Context, fs []model.Franchise) error {
	return s.inTx(ctx, "repository.UpsertFranchises", func(tx *sql.Tx) error {
		for _, f := range fs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO franchises (id, name) VALUES ($1, $2)
				 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, f.ID, f.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertTeams implements TeamStore.
func (s *PostgresStore) UpsertTeams(ctx context.Context, ts []model.Team) error {
	return s.inTx(ctx, "repository.UpsertTeams", func(tx *sql.Tx) error {
		for _, t := range ts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO teams (id, franchise_id, name, abbreviation) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (id) DO UPDATE SET franchise_id = EXCLUDED.franchise_id,
				   name = EXCLUDED.name, abbreviation = EXCLUDED.abbreviation`,
				t.ID, t.FranchiseID, t.Name, t.Abbreviation); err != nil {
				return err
			}
		}
		return nil
	})
}

// Teams implements TeamStore.
func (s *PostgresStore) Teams(ctx context.Context) ([]model.Team, error) {
	const op = "repository.Teams"
	rows, err := s.db.QueryContext(ctx, `SELECT id, franchise_id, name, abbreviation FROM teams ORDER BY id`)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()
	var out []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.FranchiseID, &t.Name, &t.Abbreviation); err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, t)
	}
	return out, mapErr(op, rows.Err())
}

// Team implements TeamStore.
func (s *PostgresStore) Team(ctx context.Context, id int) (model.Team, error) {
	var t model.Team
	err := s.db.QueryRowContext(ctx,
		`SELECT id, franchise_id, name, abbreviation FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.FranchiseID, &t.Name, &t.Abbreviation)
	return t, mapErr("repository.Team", err)
}

// CreateGames implements GameStore.
func (s *PostgresStore) CreateGames(ctx context.Context, gs []*model.Game) error {
	return s.inTx(ctx, "repository.CreateGames", func(tx *sql.Tx) error {
		for _, g := range gs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO games (id, season, home_team_id, away_team_id, winning_team_id, date,
				   game_type, home_goals, away_goals, game_state, data, home_team_data_id, away_team_data_id)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				 ON CONFLICT DO NOTHING`,
				g.ID, g.Season, g.HomeTeam.ID, g.AwayTeam.ID, nullInt(g.WinningTeamID), model.DateOnly(g.Date),
				int(g.Type), g.HomeGoals, g.AwayGoals, g.State, jsonOrEmpty(g.Payload),
				nullInt64(dataID(g.HomeTeamData)), nullInt64(dataID(g.AwayTeamData))); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateGames implements GameStore.
func (s *PostgresStore) UpdateGames(ctx context.Context, gs []*model.Game) error {
	return s.inTx(ctx, "repository.UpdateGames", func(tx *sql.Tx) error {
		for _, g := range gs {
			res, err := tx.ExecContext(ctx,
				`UPDATE games SET
				   home_goals = $2, away_goals = $3, game_type = $4, game_state = $5,
				   data = COALESCE($6::jsonb, data),
				   winning_team_id = COALESCE(winning_team_id, $7),
				   home_team_data_id = COALESCE($8, home_team_data_id),
				   away_team_data_id = COALESCE($9, away_team_data_id)
				 WHERE id = $1`,
				g.ID, g.HomeGoals, g.AwayGoals, int(g.Type), g.State, nullJSON(g.Payload),
				nullInt(g.WinningTeamID), nullInt64(dataID(g.HomeTeamData)), nullInt64(dataID(g.AwayTeamData)))
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return model.Kind("repository.UpdateGames", ErrNotFound, "game %d", g.ID)
			}
		}
		return nil
	})
}

const gameColumns = `
	g.id, g.season, g.winning_team_id, g.date, g.game_type, g.home_goals, g.away_goals, g.game_state, g.data,
	ht.id, ht.franchise_id, ht.name, ht.abbreviation,
	at.id, at.franchise_id, at.name, at.abbreviation,
	hd.id, hd.date, hd.data,
	ad.id, ad.date, ad.data
FROM games g
JOIN teams ht ON ht.id = g.home_team_id
JOIN teams at ON at.id = g.away_team_id
LEFT JOIN team_data hd ON hd.id = g.home_team_data_id
LEFT JOIN team_data ad ON ad.id = g.away_team_data_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(r scanner) (*model.Game, error) {
	var (
		g              model.Game
		winner         sql.NullInt64
		gameType       int
		payload        []byte
		hdID, adID     sql.NullInt64
		hdDate, adDate sql.NullTime
		hdData, adData []byte
	)
	if err := r.Scan(&g.ID, &g.Season, &winner, &g.Date, &gameType, &g.HomeGoals, &g.AwayGoals, &g.State, &payload,
		&g.HomeTeam.ID, &g.HomeTeam.FranchiseID, &g.HomeTeam.Name, &g.HomeTeam.Abbreviation,
		&g.AwayTeam.ID, &g.AwayTeam.FranchiseID, &g.AwayTeam.Name, &g.AwayTeam.Abbreviation,
		&hdID, &hdDate, &hdData, &adID, &adDate, &adData); err != nil {
		return nil, err
	}
	g.Type = model.GameType(gameType)
	g.Date = model.DateOnly(g.Date)
	g.Payload = json.RawMessage(payload)
	if winner.Valid {
		w := int(winner.Int64)
		g.WinningTeamID = &w
	}
	if hdID.Valid {
		g.HomeTeamData = &model.TeamData{ID: hdID.Int64, TeamID: g.HomeTeam.ID, Date: model.DateOnly(hdDate.Time), Payload: hdData}
	}
	if adID.Valid {
		g.AwayTeamData = &model.TeamData{ID: adID.Int64, TeamID: g.AwayTeam.ID, Date: model.DateOnly(adDate.Time), Payload: adData}
	}
	return &g, nil
}

func (s *PostgresStore) queryGames(ctx context.Context, op, where string, args ...any) ([]*model.Game, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+gameColumns+" WHERE "+where+" ORDER BY g.date, g.id", args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()
	var out []*model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, g)
	}
	return out, mapErr(op, rows.Err())
}

// Game implements GameStore.
func (s *PostgresStore) Game(ctx context.Context, id int64) (*model.Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, "SELECT "+gameColumns+" WHERE g.id = $1", id))
	if err != nil {
		return nil, mapErr("repository.Game", err)
	}
	return g, nil
}

// GamesByDate implements GameStore.
func (s *PostgresStore) GamesByDate(ctx context.Context, date time.Time) ([]*model.Game, error) {
	return s.queryGames(ctx, "repository.GamesByDate", "g.date = $1", model.DateOnly(date))
}

// GamesBySeasons implements GameStore.
func (s *PostgresStore) GamesBySeasons(ctx context.Context, seasons []int) ([]*model.Game, error) {
	return s.queryGames(ctx, "repository.GamesBySeasons", "g.season = ANY($1)", pq.Array(toInt64s(seasons)))
}

// UndecidedGamesBefore implements GameStore.
func (s *PostgresStore) UndecidedGamesBefore(ctx context.Context, date time.Time) ([]*model.Game, error) {
	return s.queryGames(ctx, "repository.UndecidedGamesBefore",
		"g.winning_team_id IS NULL AND g.date < $1", model.DateOnly(date))
}

// ParticipatingFranchises implements GameStore.
func (s *PostgresStore) ParticipatingFranchises(ctx context.Context) ([]int, error) {
	const op = "repository.ParticipatingFranchises"
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT t.franchise_id FROM teams t
		WHERE EXISTS (SELECT 1 FROM games g WHERE g.home_team_id = t.id OR g.away_team_id = t.id)
		ORDER BY 1`)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, id)
	}
	return out, mapErr(op, rows.Err())
}

// TeamData implements TeamDataStore.
func (s *PostgresStore) TeamData(ctx context.Context, teamID int, date time.Time) (*model.TeamData, error) {
	d := &model.TeamData{}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, date, data FROM team_data WHERE team_id = $1 AND date = $2`,
		teamID, model.DateOnly(date)).Scan(&d.ID, &d.TeamID, &d.Date, &data)
	if err != nil {
		return nil, mapErr("repository.TeamData", err)
	}
	d.Date = model.DateOnly(d.Date)
	d.Payload = data
	return d, nil
}

// CreateTeamData implements TeamDataStore. Conflicting rows resolve to the
// stored id with a follow-up read.
func (s *PostgresStore) CreateTeamData(ctx context.Context, ds []*model.TeamData) error {
	return s.inTx(ctx, "repository.CreateTeamData", func(tx *sql.Tx) error {
		for _, d := range ds {
			err := tx.QueryRowContext(ctx,
				`INSERT INTO team_data (team_id, date, data) VALUES ($1, $2, $3)
				 ON CONFLICT (team_id, date) DO NOTHING RETURNING id`,
				d.TeamID, model.DateOnly(d.Date), jsonOrEmpty(d.Payload)).Scan(&d.ID)
			if errors.Is(err, sql.ErrNoRows) {
				err = tx.QueryRowContext(ctx,
					`SELECT id FROM team_data WHERE team_id = $1 AND date = $2`,
					d.TeamID, model.DateOnly(d.Date)).Scan(&d.ID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateModel implements ModelStore.
func (s *PostgresStore) CreateModel(ctx context.Context, m *model.PredictionModel) error {
	const op = "repository.CreateModel"
	v, err := model.ParseVersion(m.Version)
	if err != nil {
		return err
	}
	imps, err := json.Marshal(m.FeatureImportances)
	if err != nil {
		return model.Wrap(op, model.ErrStorage, err)
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO prediction_models (name, version, major, minor, trained_seasons, feature_importances,
		   accuracy, trained_rows, file)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`,
		m.Name, m.Version, v.Major, v.Minor, pq.Array(toInt64s(m.TrainedSeasons)), string(imps),
		m.Accuracy, m.TrainedRows, m.ArtifactPath).Scan(&m.ID, &m.CreatedAt)
	return mapErr(op, err)
}

const modelColumns = `id, name, version, trained_seasons, feature_importances, accuracy, trained_rows, file, created_at`

func scanModel(r scanner) (*model.PredictionModel, error) {
	var (
		m       model.PredictionModel
		seasons pq.Int64Array
		imps    []byte
	)
	if err := r.Scan(&m.ID, &m.Name, &m.Version, &seasons, &imps, &m.Accuracy, &m.TrainedRows, &m.ArtifactPath, &m.CreatedAt); err != nil {
		return nil, err
	}
	for _, se := range seasons {
		m.TrainedSeasons = append(m.TrainedSeasons, int(se))
	}
	if len(imps) > 0 {
		if err := json.Unmarshal(imps, &m.FeatureImportances); err != nil {
			return nil, fmt.Errorf("decode feature importances: %w", err)
		}
	}
	return &m, nil
}

// LatestModel implements ModelStore.
func (s *PostgresStore) LatestModel(ctx context.Context) (*model.PredictionModel, error) {
	m, err := scanModel(s.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM prediction_models ORDER BY major DESC, minor DESC, id DESC LIMIT 1`))
	if err != nil {
		return nil, mapErr("repository.LatestModel", err)
	}
	return m, nil
}

// Models implements ModelStore.
func (s *PostgresStore) Models(ctx context.Context) ([]*model.PredictionModel, error) {
	const op = "repository.Models"
	rows, err := s.db.QueryContext(ctx, `SELECT `+modelColumns+` FROM prediction_models ORDER BY major, minor, id`)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()
	var out []*model.PredictionModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, m)
	}
	return out, mapErr(op, rows.Err())
}

const predictionColumns = `p.id, p.game_id, p.model_id, m.version, p.predicted_home_team_win, p.confidence_score,
	p.top_features, p.created_at
FROM predictions p JOIN prediction_models m ON m.id = p.model_id`

func scanPrediction(r scanner) (*model.Prediction, error) {
	var (
		p   model.Prediction
		top []byte
	)
	if err := r.Scan(&p.ID, &p.GameID, &p.ModelID, &p.ModelVersion, &p.PredictedHomeTeamWin,
		&p.ConfidenceScore, &top, &p.CreatedAt); err != nil {
		return nil, err
	}
	if len(top) > 0 {
		if err := json.Unmarshal(top, &p.TopFeatures); err != nil {
			return nil, fmt.Errorf("decode top features: %w", err)
		}
	}
	return &p, nil
}

// CreatePrediction implements PredictionStore. A conflicting writer reads
// back the stored row.
func (s *PostgresStore) CreatePrediction(ctx context.Context, p *model.Prediction) (*model.Prediction, bool, error) {
	const op = "repository.CreatePrediction"
	top, err := json.Marshal(p.TopFeatures)
	if err != nil {
		return nil, false, model.Wrap(op, model.ErrStorage, err)
	}
	var id string
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO predictions (id, game_id, model_id, predicted_home_team_win, confidence_score, top_features)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (game_id, model_id) DO NOTHING RETURNING id`,
		p.ID, p.GameID, p.ModelID, p.PredictedHomeTeamWin, p.ConfidenceScore, string(top)).Scan(&id)
	created := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, mapErr(op, err)
	}
	stored, err := s.Prediction(ctx, p.GameID, p.ModelID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Prediction implements PredictionStore.
func (s *PostgresStore) Prediction(ctx context.Context, gameID, modelID int64) (*model.Prediction, error) {
	p, err := scanPrediction(s.db.QueryRowContext(ctx,
		`SELECT `+predictionColumns+` WHERE p.game_id = $1 AND p.model_id = $2`, gameID, modelID))
	if err != nil {
		return nil, mapErr("repository.Prediction", err)
	}
	return p, nil
}

func (s *PostgresStore) queryPredictions(ctx context.Context, op, query string, args ...any) ([]*model.Prediction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()
	var out []*model.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		out = append(out, p)
	}
	return out, mapErr(op, rows.Err())
}

// PredictionsByGame implements PredictionStore.
func (s *PostgresStore) PredictionsByGame(ctx context.Context, gameID int64) ([]*model.Prediction, error) {
	return s.queryPredictions(ctx, "repository.PredictionsByGame",
		`SELECT `+predictionColumns+` WHERE p.game_id = $1 ORDER BY p.model_id`, gameID)
}

// PredictionsByDate implements PredictionStore.
func (s *PostgresStore) PredictionsByDate(ctx context.Context, date time.Time) ([]*model.Prediction, error) {
	return s.queryPredictions(ctx, "repository.PredictionsByDate",
		`SELECT `+predictionColumns+` JOIN games g ON g.id = p.game_id
		 WHERE g.date = $1 ORDER BY p.game_id, p.model_id`, model.DateOnly(date))
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// JSONB parameters travel as text; lib/pq would send []byte as bytea.
func jsonOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func toInt64s(xs []int) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = int64(x)
	}
	return out
}
