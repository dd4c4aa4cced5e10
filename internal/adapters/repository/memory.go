package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/puckcast/internal/domain/model"
)

type gameKey struct {
	home, away int
	date       time.Time
}

type teamDateKey struct {
	team int
	date time.Time
}

type predictionKey struct {
	game, model int64
}

type gameRow struct {
	game   model.Game
	homeID *int64
	awayID *int64
}

// MemoryStore is an in-process Store guarded by one RWMutex.
type MemoryStore struct {
	mu sync.RWMutex

	franchises map[int]model.Franchise
	teams      map[int]model.Team

	games    map[int64]*gameRow
	gameKeys map[gameKey]int64

	teamData     map[int64]*model.TeamData
	teamDataKeys map[teamDateKey]int64
	nextDataID   int64

	models      []*model.PredictionModel
	nextModelID int64

	predictions map[predictionKey]*model.Prediction

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		franchises:   make(map[int]model.Franchise),
		teams:        make(map[int]model.Team),
		games:        make(map[int64]*gameRow),
		gameKeys:     make(map[gameKey]int64),
		teamData:     make(map[int64]*model.TeamData),
		teamDataKeys: make(map[teamDateKey]int64),
		predictions:  make(map[predictionKey]*model.Prediction),
		now:          time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// UpsertFranchises implements TeamStore.
func (s *MemoryStore) UpsertFranchises(_ context.Context, fs []model.Franchise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fs {
		s.franchises[f.ID] = f
	}
	return nil
}

// UpsertTeams implements TeamStore.
func (s *MemoryStore) UpsertTeams(_ context.Context, ts []model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range ts {
		s.teams[t.ID] = t
	}
	return nil
}

// Teams implements TeamStore.
func (s *MemoryStore) Teams(_ context.Context) ([]model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Team implements TeamStore.
func (s *MemoryStore) Team(_ context.Context, id int) (model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return model.Team{}, ErrNotFound
	}
	return t, nil
}

// CreateGames implements GameStore.
func (s *MemoryStore) CreateGames(_ context.Context, gs []*model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range gs {
		k := gameKey{g.HomeTeam.ID, g.AwayTeam.ID, model.DateOnly(g.Date)}
		if _, ok := s.games[g.ID]; ok {
			continue
		}
		if _, ok := s.gameKeys[k]; ok {
			continue
		}
		row := &gameRow{game: *g}
		row.game.Date = k.date
		row.game.HomeTeamData, row.game.AwayTeamData = nil, nil
		row.homeID, row.awayID = dataID(g.HomeTeamData), dataID(g.AwayTeamData)
		row.game.WinningTeamID = copyInt(g.WinningTeamID)
		s.games[g.ID] = row
		s.gameKeys[k] = g.ID
	}
	return nil
}

// UpdateGames implements GameStore.
func (s *MemoryStore) UpdateGames(_ context.Context, gs []*model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range gs {
		row, ok := s.games[g.ID]
		if !ok {
			return model.Kind("repository.UpdateGames", ErrNotFound, "game %d", g.ID)
		}
		row.game.HomeGoals, row.game.AwayGoals = g.HomeGoals, g.AwayGoals
		row.game.Type = g.Type
		row.game.State = g.State
		if len(g.Payload) > 0 {
			row.game.Payload = g.Payload
		}
		if row.game.WinningTeamID == nil {
			row.game.WinningTeamID = copyInt(g.WinningTeamID)
		}
		if id := dataID(g.HomeTeamData); id != nil {
			row.homeID = id
		}
		if id := dataID(g.AwayTeamData); id != nil {
			row.awayID = id
		}
	}
	return nil
}

// Game implements GameStore.
func (s *MemoryStore) Game(_ context.Context, id int64) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.hydrate(row), nil
}

// GamesByDate implements GameStore.
func (s *MemoryStore) GamesByDate(_ context.Context, date time.Time) ([]*model.Game, error) {
	day := model.DateOnly(date)
	return s.filterGames(func(g *model.Game) bool { return g.Date.Equal(day) }), nil
}

// GamesBySeasons implements GameStore.
func (s *MemoryStore) GamesBySeasons(_ context.Context, seasons []int) ([]*model.Game, error) {
	want := make(map[int]bool, len(seasons))
	for _, se := range seasons {
		want[se] = true
	}
	return s.filterGames(func(g *model.Game) bool { return want[g.Season] }), nil
}

// UndecidedGamesBefore implements GameStore.
func (s *MemoryStore) UndecidedGamesBefore(_ context.Context, date time.Time) ([]*model.Game, error) {
	day := model.DateOnly(date)
	return s.filterGames(func(g *model.Game) bool { return g.WinningTeamID == nil && g.Date.Before(day) }), nil
}

// ParticipatingFranchises implements GameStore.
func (s *MemoryStore) ParticipatingFranchises(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int]bool)
	for _, row := range s.games {
		for _, id := range []int{row.game.HomeTeam.ID, row.game.AwayTeam.ID} {
			if t, ok := s.teams[id]; ok {
				seen[t.FranchiseID] = true
			} else if f := teamFranchise(row, id); f != 0 {
				seen[f] = true
			}
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

func teamFranchise(row *gameRow, id int) int {
	if row.game.HomeTeam.ID == id {
		return row.game.HomeTeam.FranchiseID
	}
	return row.game.AwayTeam.FranchiseID
}

func (s *MemoryStore) filterGames(keep func(*model.Game) bool) []*model.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Game
	for _, row := range s.games {
		if keep(&row.game) {
			out = append(out, s.hydrate(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// hydrate copies a row and resolves its teams and snapshots. Callers hold mu.
func (s *MemoryStore) hydrate(row *gameRow) *model.Game {
	g := row.game
	g.WinningTeamID = copyInt(row.game.WinningTeamID)
	if t, ok := s.teams[g.HomeTeam.ID]; ok {
		g.HomeTeam = t
	}
	if t, ok := s.teams[g.AwayTeam.ID]; ok {
		g.AwayTeam = t
	}
	if row.homeID != nil {
		g.HomeTeamData = copyData(s.teamData[*row.homeID])
	}
	if row.awayID != nil {
		g.AwayTeamData = copyData(s.teamData[*row.awayID])
	}
	return &g
}

// TeamData implements TeamDataStore.
func (s *MemoryStore) TeamData(_ context.Context, teamID int, date time.Time) (*model.TeamData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.teamDataKeys[teamDateKey{teamID, model.DateOnly(date)}]
	if !ok {
		return nil, ErrNotFound
	}
	return copyData(s.teamData[id]), nil
}

// CreateTeamData implements TeamDataStore.
func (s *MemoryStore) CreateTeamData(_ context.Context, ds []*model.TeamData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range ds {
		k := teamDateKey{d.TeamID, model.DateOnly(d.Date)}
		if id, ok := s.teamDataKeys[k]; ok {
			d.ID = id
			continue
		}
		s.nextDataID++
		d.ID = s.nextDataID
		d.Date = k.date
		s.teamData[d.ID] = copyData(d)
		s.teamDataKeys[k] = d.ID
	}
	return nil
}

// CreateModel implements ModelStore.
func (s *MemoryStore) CreateModel(_ context.Context, m *model.PredictionModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.models {
		if existing.Name == m.Name && existing.Version == m.Version {
			return model.Kind("repository.CreateModel", ErrConflict, "%s v%s", m.Name, m.Version)
		}
	}
	s.nextModelID++
	m.ID = s.nextModelID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	c := *m
	s.models = append(s.models, &c)
	return nil
}

// LatestModel implements ModelStore.
func (s *MemoryStore) LatestModel(_ context.Context) (*model.PredictionModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.PredictionModel
	for _, m := range s.models {
		if best == nil || best.ParsedVersion().Less(m.ParsedVersion()) {
			best = m
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	c := *best
	return &c, nil
}

// Models implements ModelStore.
func (s *MemoryStore) Models(_ context.Context) ([]*model.PredictionModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.PredictionModel, len(s.models))
	for i, m := range s.models {
		c := *m
		out[i] = &c
	}
	return out, nil
}

// CreatePrediction implements PredictionStore.
func (s *MemoryStore) CreatePrediction(_ context.Context, p *model.Prediction) (*model.Prediction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := predictionKey{p.GameID, p.ModelID}
	if existing, ok := s.predictions[k]; ok {
		c := *existing
		return &c, false, nil
	}
	c := *p
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	s.predictions[k] = &c
	out := c
	return &out, true, nil
}

// Prediction implements PredictionStore.
func (s *MemoryStore) Prediction(_ context.Context, gameID, modelID int64) (*model.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.predictions[predictionKey{gameID, modelID}]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

// PredictionsByGame implements PredictionStore.
func (s *MemoryStore) PredictionsByGame(_ context.Context, gameID int64) ([]*model.Prediction, error) {
	return s.filterPredictions(func(p *model.Prediction) bool { return p.GameID == gameID }), nil
}

// PredictionsByDate implements PredictionStore.
func (s *MemoryStore) PredictionsByDate(_ context.Context, date time.Time) ([]*model.Prediction, error) {
	day := model.DateOnly(date)
	s.mu.RLock()
	ids := make(map[int64]bool)
	for id, row := range s.games {
		if row.game.Date.Equal(day) {
			ids[id] = true
		}
	}
	s.mu.RUnlock()
	return s.filterPredictions(func(p *model.Prediction) bool { return ids[p.GameID] }), nil
}

func (s *MemoryStore) filterPredictions(keep func(*model.Prediction) bool) []*model.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Prediction
	for _, p := range s.predictions {
		if keep(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GameID != out[j].GameID {
			return out[i].GameID < out[j].GameID
		}
		return out[i].ModelID < out[j].ModelID
	})
	return out
}

func dataID(d *model.TeamData) *int64 {
	if d == nil || d.ID == 0 {
		return nil
	}
	id := d.ID
	return &id
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyData(d *model.TeamData) *model.TeamData {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
