package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Version is a major.minor model version.
type Version struct {
	Major int
	Minor int
}

// FirstVersion is assigned when no prior model exists.
var FirstVersion = Version{Major: 1, Minor: 0}

// ParseVersion parses "major.minor" numerically.
func ParseVersion(s string) (Version, error) {
	const op = "model.ParseVersion"
	major, minor, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, Kind(op, ErrData, "version %q is not major.minor", s)
	}
	ma, err := strconv.Atoi(major)
	if err != nil || ma < 0 {
		return Version{}, Kind(op, ErrData, "version %q has a bad major part", s)
	}
	mi, err := strconv.Atoi(minor)
	if err != nil || mi < 0 {
		return Version{}, Kind(op, ErrData, "version %q has a bad minor part", s)
	}
	return Version{Major: ma, Minor: mi}, nil
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Next bumps the minor part.
func (v Version) Next() Version { return Version{Major: v.Major, Minor: v.Minor + 1} }

// Less orders versions numerically, so 1.10 follows 1.9.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// PredictionModel is a trained, immutable model record.
type PredictionModel struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	Version            string             `json:"version"`
	TrainedSeasons     []int              `json:"trained_seasons"`
	FeatureImportances map[string]float64 `json:"feature_importances"`
	Accuracy           float64            `json:"accuracy"`
	TrainedRows        int                `json:"trained_rows"`
	ArtifactPath       string             `json:"file"`
	CreatedAt          time.Time          `json:"created_at"`
}

// ParsedVersion returns the numeric version, or the zero version when the
// stored string is malformed.
func (m *PredictionModel) ParsedVersion() Version {
	v, err := ParseVersion(m.Version)
	if err != nil {
		return Version{}
	}
	return v
}

// Contribution is one collapsed explanation entry.
type Contribution struct {
	Feature    string  `json:"feature"`
	Value      float64 `json:"value"`
	Importance float64 `json:"importance"`
}

// Contributions keeps ranking order while serializing as
// {feature: [value, importance]}.
type Contributions []Contribution

// MarshalJSON implements json.Marshaler.
func (c Contributions) MarshalJSON() ([]byte, error) {
	m := make(map[string][2]float64, len(c))
	for _, e := range c {
		m[e.Feature] = [2]float64{e.Value, e.Importance}
	}
	return json.Marshal(m)
}

// UnmarshalJSON implements json.Unmarshaler. Entries come back ordered by
// descending absolute importance.
func (c *Contributions) UnmarshalJSON(b []byte) error {
	var m map[string][2]float64
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := make(Contributions, 0, len(m))
	for k, v := range m {
		out = append(out, Contribution{Feature: k, Value: v[0], Importance: v[1]})
	}
	SortContributions(out)
	*c = out
	return nil
}

// SortContributions orders by |importance| desc, then feature name.
func SortContributions(c []Contribution) {
	sort.SliceStable(c, func(i, j int) bool {
		ai, aj := abs(c[i].Importance), abs(c[j].Importance)
		if ai != aj {
			return ai > aj
		}
		return c[i].Feature < c[j].Feature
	})
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Prediction is the cached outcome of one model on one game.
type Prediction struct {
	ID                      string        `json:"id"`
	GameID                  int64         `json:"game"`
	ModelID                 int64         `json:"model"`
	ModelVersion            string        `json:"model_version"`
	PredictedHomeTeamWin    bool          `json:"predicted_home_team_win"`
	ConfidenceScore         float64       `json:"confidence_score"`
	TopFeatures             Contributions `json:"top_features"`
	TopFeaturesDescriptions []string      `json:"top_features_descriptions,omitempty"`
	CreatedAt               time.Time     `json:"created_at"`
}
