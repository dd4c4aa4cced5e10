package repository

// schema is applied by PostgresStore.Migrate. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS franchises (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS teams (
	id           INTEGER PRIMARY KEY,
	franchise_id INTEGER NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	abbreviation TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS team_data (
	id      BIGSERIAL PRIMARY KEY,
	team_id INTEGER NOT NULL REFERENCES teams (id),
	date    DATE NOT NULL,
	data    JSONB NOT NULL DEFAULT '{}'::jsonb,
	UNIQUE (team_id, date)
);

CREATE TABLE IF NOT EXISTS games (
	id                BIGINT PRIMARY KEY,
	season            INTEGER NOT NULL,
	home_team_id      INTEGER NOT NULL REFERENCES teams (id),
	away_team_id      INTEGER NOT NULL REFERENCES teams (id),
	winning_team_id   INTEGER REFERENCES teams (id),
	date              DATE NOT NULL,
	game_type         INTEGER NOT NULL DEFAULT 1,
	home_goals        INTEGER NOT NULL DEFAULT 0,
	away_goals        INTEGER NOT NULL DEFAULT 0,
	game_state        TEXT NOT NULL DEFAULT '',
	data              JSONB NOT NULL DEFAULT '{}'::jsonb,
	home_team_data_id BIGINT REFERENCES team_data (id),
	away_team_data_id BIGINT REFERENCES team_data (id),
	UNIQUE (home_team_id, away_team_id, date)
);

CREATE INDEX IF NOT EXISTS games_season_idx ON games (season);
CREATE INDEX IF NOT EXISTS games_date_idx ON games (date);

CREATE TABLE IF NOT EXISTS prediction_models (
	id                  BIGSERIAL PRIMARY KEY,
	name                TEXT NOT NULL,
	version             TEXT NOT NULL,
	major               INTEGER NOT NULL,
	minor               INTEGER NOT NULL,
	trained_seasons     INTEGER[] NOT NULL DEFAULT '{}',
	feature_importances JSONB NOT NULL DEFAULT '{}'::jsonb,
	accuracy            DOUBLE PRECISION NOT NULL DEFAULT 0,
	trained_rows        INTEGER NOT NULL DEFAULT 0,
	file                TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (name, version)
);

CREATE TABLE IF NOT EXISTS predictions (
	id                      UUID PRIMARY KEY,
	game_id                 BIGINT NOT NULL REFERENCES games (id),
	model_id                BIGINT NOT NULL REFERENCES prediction_models (id),
	predicted_home_team_win BOOLEAN NOT NULL,
	confidence_score        DOUBLE PRECISION NOT NULL,
	top_features            JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (game_id, model_id)
);
`
